package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
environment: test
taapi:
  secret: abc
scanner:
  symbols: [BTC/USDT]
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.RateLimit.MaxRequests != 5 {
		t.Fatalf("max_requests = %d, want 5", c.RateLimit.MaxRequests)
	}
	if c.RateLimit.Window != 15*time.Second {
		t.Fatalf("window = %v, want 15s", c.RateLimit.Window)
	}
	if c.Scanner.Timeframe != "mid_term" {
		t.Fatalf("timeframe = %q, want mid_term", c.Scanner.Timeframe)
	}
	if c.Scanner.BatchSize != 10 {
		t.Fatalf("batch_size = %d, want 10", c.Scanner.BatchSize)
	}
	if c.Scanner.MaxStocks != 20 {
		t.Fatalf("max_stocks = %d, want 20", c.Scanner.MaxStocks)
	}
	if c.Taapi.MaxRetries != 3 {
		t.Fatalf("max_retries = %d, want 3", c.Taapi.MaxRetries)
	}
	if c.Aggregator.StrengthDivisor != 20 {
		t.Fatalf("strength_divisor = %v, want 20", c.Aggregator.StrengthDivisor)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
environment: test
taapi:
  secret: abc
scanner:
  symbols: [BTC/USDT, ETH/USDT]
  timeframe: long_term
  batch_size: 3
rate_limit:
  max_requests: 2
  window: 1s
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Scanner.Timeframe != "long_term" {
		t.Fatalf("timeframe = %q", c.Scanner.Timeframe)
	}
	if c.Scanner.BatchSize != 3 {
		t.Fatalf("batch_size = %d", c.Scanner.BatchSize)
	}
	if c.RateLimit.MaxRequests != 2 || c.RateLimit.Window != time.Second {
		t.Fatalf("rate limit not overridden: %+v", c.RateLimit)
	}
}

func TestValidateRejectsBadTimeframe(t *testing.T) {
	path := writeConfig(t, `
environment: test
taapi:
  secret: abc
scanner:
  symbols: [BTC/USDT]
  timeframe: weekly
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for invalid timeframe")
	}
}

func TestValidateRequiresSecret(t *testing.T) {
	path := writeConfig(t, `
environment: test
scanner:
  symbols: [BTC/USDT]
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for missing secret")
	}
}

func TestLoadWithEnvOverride(t *testing.T) {
	path := writeConfig(t, `
environment: test
taapi:
  secret: abc
scanner:
  symbols: [BTC/USDT]
`)
	t.Setenv("SYMBOLS", "AAPL,MSFT")
	t.Setenv("SCAN_TIMEFRAME", "short_term")
	c, err := LoadWithEnv(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Scanner.Symbols) != 2 || c.Scanner.Symbols[0] != "AAPL" {
		t.Fatalf("symbols = %v", c.Scanner.Symbols)
	}
	if c.Scanner.Timeframe != "short_term" {
		t.Fatalf("timeframe = %q", c.Scanner.Timeframe)
	}
}
