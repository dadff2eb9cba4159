package taapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	drepo "SignalScan/internal/domain/repository"
	"SignalScan/internal/service/ratelimit"
	"SignalScan/pkg/config"
	"SignalScan/pkg/logger"
)

type nopMetrics struct{}

func (nopMetrics) RecordSignal(string, string)        {}
func (nopMetrics) RecordSkip(string)                  {}
func (nopMetrics) RecordProviderRequest(string)       {}
func (nopMetrics) RecordPublished(string, string)     {}
func (nopMetrics) RecordError(string)                 {}
func (nopMetrics) RecordLatency(string, float64)      {}
func (nopMetrics) RecordScanDuration(string, float64) {}
func (nopMetrics) RecordLastStrength(string, float64) {}
func (nopMetrics) RecordLastPrice(string, float64)    {}

func testClient(t *testing.T, url string) *Client {
	t.Helper()
	cfg := &config.Config{}
	cfg.Taapi.APIURL = url
	cfg.Taapi.Secret = "test-secret"
	cfg.Taapi.Exchange = "binance"
	cfg.Taapi.RequestTimeout = 2 * time.Second
	cfg.Taapi.MaxRetries = 3
	cfg.Taapi.RateLimitRetryDelay = time.Millisecond
	cfg.Taapi.TimeoutRetryDelay = time.Millisecond

	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	limiter := ratelimit.New(1000, time.Second, 0)
	return New(cfg, limiter, log, nopMetrics{}).(*Client)
}

const bulkOK = `{"data":[
	{"id":"rsi","indicator":"rsi","result":{"value":28.5}},
	{"id":"macd","indicator":"macd","result":{"valueMACD":1.2,"valueMACDSignal":0.8,"valueMACDHist":0.4}},
	{"id":"bbands","indicator":"bbands","result":{"valueUpperBand":110,"valueMiddleBand":100,"valueLowerBand":90}},
	{"id":"ema50","indicator":"ema","result":{"value":102}},
	{"id":"ema200","indicator":"ema","result":{"value":98}},
	{"id":"adx","indicator":"adx","result":{"value":30}},
	{"id":"atr","indicator":"atr","result":{"value":2.5}},
	{"id":"price","indicator":"price","result":{"value":101}}
]}`

func TestFetchIndicatorsParsesBundle(t *testing.T) {
	var gotBody bulkRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(bulkOK))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	b, err := c.FetchIndicators(context.Background(), "BTC/USDT", drepo.TFMid)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if gotBody.Secret != "test-secret" {
		t.Fatalf("secret = %q", gotBody.Secret)
	}
	if gotBody.Construct.Interval != "4h" {
		t.Fatalf("interval = %q, want 4h", gotBody.Construct.Interval)
	}
	if gotBody.Construct.Symbol != "BTC/USDT" {
		t.Fatalf("symbol = %q", gotBody.Construct.Symbol)
	}

	if b.RSI == nil || *b.RSI != 28.5 {
		t.Fatalf("rsi = %v", b.RSI)
	}
	if b.MACD == nil || b.MACD.Histogram != 0.4 {
		t.Fatalf("macd = %+v", b.MACD)
	}
	if b.Bollinger == nil || b.Bollinger.Lower != 90 {
		t.Fatalf("bollinger = %+v", b.Bollinger)
	}
	if b.EMA50 == nil || b.EMA200 == nil || *b.EMA50 != 102 || *b.EMA200 != 98 {
		t.Fatalf("ema = %v %v", b.EMA50, b.EMA200)
	}
	if b.ATR == nil || *b.ATR != 2.5 {
		t.Fatalf("atr = %v", b.ATR)
	}
	if b.Price == nil || *b.Price != 101 {
		t.Fatalf("price = %v", b.Price)
	}
}

func TestFetchIndicatorsPartialBundle(t *testing.T) {
	body := `{"data":[
		{"id":"rsi","indicator":"rsi","result":{"value":55}},
		{"id":"atr","indicator":"atr","errors":["insufficient data"],"result":{}},
		{"id":"price","indicator":"price","result":{"value":50}}
	]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	b, err := c.FetchIndicators(context.Background(), "ETH/USDT", drepo.TFShort)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if b.RSI == nil || b.Price == nil {
		t.Fatalf("expected rsi and price present")
	}
	if b.ATR != nil || b.MACD != nil || b.EMA50 != nil {
		t.Fatalf("expected missing indicators to stay nil")
	}
}

func TestFetchIndicatorsRetriesRateLimit(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(bulkOK))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	b, err := c.FetchIndicators(context.Background(), "BTC/USDT", drepo.TFMid)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if b.RSI == nil {
		t.Fatalf("expected bundle after retries")
	}
	if got := atomic.LoadInt32(&hits); got != 3 {
		t.Fatalf("hits = %d, want 3", got)
	}
}

func TestFetchIndicatorsExhaustsRetries(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	_, err := c.FetchIndicators(context.Background(), "BTC/USDT", drepo.TFMid)
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fe.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", fe.Attempts)
	}
	if !IsRateLimited(fe.Err) {
		t.Fatalf("cause = %v, want rate limited", fe.Err)
	}
	if got := atomic.LoadInt32(&hits); got != 3 {
		t.Fatalf("hits = %d, want 3", got)
	}
}

func TestFetchIndicatorsFailsFastOnProviderError(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("unknown exchange"))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	_, err := c.FetchIndicators(context.Background(), "BTC/USDT", drepo.TFMid)
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	var pe *ProviderError
	if !errors.As(fe.Err, &pe) || pe.Status != http.StatusBadRequest {
		t.Fatalf("cause = %v, want provider 400", fe.Err)
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("hits = %d, want 1 (no retry)", got)
	}
}
