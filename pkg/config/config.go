package config

import (
	"fmt"
	"os"
	"time"

	"SignalScan/pkg/util"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"15s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		RateLimitRPS    float64       `yaml:"rate_limit_rps" default:"10"`
		RateLimitBurst  int           `yaml:"rate_limit_burst" default:"20"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"json"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"logging"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Backend struct {
		Type         string        `yaml:"type" default:"clickhouse"`
		BatchSize    int           `yaml:"batch_size" default:"50"`
		BatchTimeout time.Duration `yaml:"batch_timeout" default:"5s"`
	} `yaml:"backend"`
	RateLimit struct {
		MaxRequests  int           `yaml:"max_requests" default:"5"`
		Window       time.Duration `yaml:"window" default:"15s"`
		SafetyBuffer time.Duration `yaml:"safety_buffer" default:"500ms"`
	} `yaml:"rate_limit"`
	Taapi struct {
		APIURL              string        `yaml:"api_url" default:"https://api.taapi.io"`
		Secret              string        `yaml:"secret"`
		Exchange            string        `yaml:"exchange" default:"binance"`
		RequestTimeout      time.Duration `yaml:"request_timeout" default:"10s"`
		MaxRetries          int           `yaml:"max_retries" default:"3"`
		RateLimitRetryDelay time.Duration `yaml:"rate_limit_retry_delay" default:"15s"`
		TimeoutRetryDelay   time.Duration `yaml:"timeout_retry_delay" default:"5s"`
	} `yaml:"taapi"`
	Scanner struct {
		Symbols           []string      `yaml:"symbols"`
		Timeframe         string        `yaml:"timeframe" default:"mid_term"`
		MaxStocks         int           `yaml:"max_stocks" default:"20"`
		BatchSize         int           `yaml:"batch_size" default:"10"`
		BatchDelay        time.Duration `yaml:"batch_delay" default:"2s"`
		MinSignalStrength float64       `yaml:"min_signal_strength" default:"2"`
		TopResults        int           `yaml:"top_results" default:"10"`
		Schedule          struct {
			Enabled  bool          `yaml:"enabled"`
			Interval time.Duration `yaml:"interval" default:"1h"`
		} `yaml:"schedule"`
	} `yaml:"scanner"`
	Aggregator struct {
		VoteFull        float64 `yaml:"vote_full" default:"1"`
		VoteLean        float64 `yaml:"vote_lean" default:"0.5"`
		StrengthDivisor float64 `yaml:"strength_divisor" default:"20"`
		RSIOversold     float64 `yaml:"rsi_oversold" default:"30"`
		RSIOverbought   float64 `yaml:"rsi_overbought" default:"70"`
		RSILeanLow      float64 `yaml:"rsi_lean_low" default:"40"`
		RSILeanHigh     float64 `yaml:"rsi_lean_high" default:"60"`
		ADXTrend        float64 `yaml:"adx_trend" default:"25"`
	} `yaml:"aggregator"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"scanner.signals"`
		LogsTopic    string   `yaml:"logs_topic" default:"scanner.logs"`
		RequiredAcks int      `yaml:"required_acks" default:"1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"100ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"signalscan-sink"`
			Workers    int           `yaml:"workers" default:"2"`
			BufferSize int           `yaml:"buffer_size" default:"256"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"500ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"10s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"signalscan"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Finnhub struct {
		Enabled        bool          `yaml:"enabled"`
		APIKey         string        `yaml:"api_key"`
		WebSocketURL   string        `yaml:"websocket_url" default:"wss://ws.finnhub.io"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
		QuoteTTL       time.Duration `yaml:"quote_ttl" default:"30s"`
	} `yaml:"finnhub"`
	Cache struct {
		Enabled   bool          `yaml:"enabled"`
		Addr      string        `yaml:"addr" default:"localhost:6379"`
		Password  string        `yaml:"password"`
		DB        int           `yaml:"db"`
		ReportTTL time.Duration `yaml:"report_ttl" default:"5m"`
	} `yaml:"cache"`
}

// Load reads and parses a YAML configuration file. Defaults are applied
// first so the file only needs to override what differs.
func Load(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func parse(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment
// variables. Overrides are applied before validation so secrets can
// come from the environment instead of the file.
func LoadWithEnv(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables
	if v := os.Getenv("TAAPI_SECRET"); v != "" {
		c.Taapi.Secret = v
	}
	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		c.Finnhub.APIKey = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Scanner.Symbols = util.SplitList(v)
	}
	if v := os.Getenv("SCAN_TIMEFRAME"); v != "" {
		c.Scanner.Timeframe = v
	}
	if v := os.Getenv("MAX_STOCKS"); v != "" {
		c.Scanner.MaxStocks = util.ParseIntDefault(v, c.Scanner.MaxStocks)
	}
	if v := os.Getenv("BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitList(v)
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Addr = v
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Backend.Type != "kafka" && c.Backend.Type != "clickhouse" {
		return fmt.Errorf("backend.type must be 'kafka' or 'clickhouse', got '%s'", c.Backend.Type)
	}
	if c.Backend.Type == "kafka" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when backend.type is 'kafka'")
	}
	if c.Taapi.Secret == "" {
		return fmt.Errorf("taapi.secret is required")
	}
	if len(c.Scanner.Symbols) == 0 {
		return fmt.Errorf("scanner.symbols cannot be empty")
	}
	switch c.Scanner.Timeframe {
	case "short_term", "mid_term", "long_term":
	default:
		return fmt.Errorf("scanner.timeframe must be one of short_term, mid_term, long_term, got '%s'", c.Scanner.Timeframe)
	}
	if c.RateLimit.MaxRequests < 1 {
		return fmt.Errorf("rate_limit.max_requests must be >= 1")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit.window must be positive")
	}
	if c.Finnhub.Enabled && c.Finnhub.APIKey == "" {
		return fmt.Errorf("finnhub.api_key is required when finnhub is enabled")
	}
	return nil
}
