package taapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"SignalScan/internal/domain/models"
	drepo "SignalScan/internal/domain/repository"
	dservice "SignalScan/internal/domain/service"
	"SignalScan/internal/service/ratelimit"
	"SignalScan/pkg/config"
	xhttp "SignalScan/pkg/http"
	"SignalScan/pkg/logger"
)

// Client fetches indicator bundles from the taapi bulk endpoint. Every
// attempt is paced through the shared rate-limit window first; 429 and
// timeout answers are retried with class-specific delays, anything else
// fails the symbol fast.
type Client struct {
	http    *xhttp.Client
	log     *logger.Logger
	limiter *ratelimit.Window
	metrics drepo.Metrics

	apiURL              string
	secret              string
	exchange            string
	maxRetries          int
	rateLimitRetryDelay time.Duration
	timeoutRetryDelay   time.Duration
}

// New creates an IndicatorProvider backed by taapi.
func New(cfg *config.Config, limiter *ratelimit.Window, log *logger.Logger, m drepo.Metrics) dservice.IndicatorProvider {
	return &Client{
		http:                xhttp.NewClient(xhttp.WithTimeout(cfg.Taapi.RequestTimeout)),
		log:                 log,
		limiter:             limiter,
		metrics:             m,
		apiURL:              strings.TrimRight(cfg.Taapi.APIURL, "/"),
		secret:              cfg.Taapi.Secret,
		exchange:            cfg.Taapi.Exchange,
		maxRetries:          cfg.Taapi.MaxRetries,
		rateLimitRetryDelay: cfg.Taapi.RateLimitRetryDelay,
		timeoutRetryDelay:   cfg.Taapi.TimeoutRetryDelay,
	}
}

type bulkIndicator struct {
	ID        string `json:"id,omitempty"`
	Indicator string `json:"indicator"`
	Period    int    `json:"period,omitempty"`
}

type bulkConstruct struct {
	Exchange   string          `json:"exchange"`
	Symbol     string          `json:"symbol"`
	Interval   string          `json:"interval"`
	Indicators []bulkIndicator `json:"indicators"`
}

type bulkRequest struct {
	Secret    string        `json:"secret"`
	Construct bulkConstruct `json:"construct"`
}

type bulkResult struct {
	ID        string          `json:"id"`
	Indicator string          `json:"indicator"`
	Result    json.RawMessage `json:"result"`
	Errors    []string        `json:"errors,omitempty"`
}

type bulkResponse struct {
	Data []bulkResult `json:"data"`
}

func requestedIndicators() []bulkIndicator {
	return []bulkIndicator{
		{ID: "rsi", Indicator: "rsi", Period: 14},
		{ID: "macd", Indicator: "macd"},
		{ID: "bbands", Indicator: "bbands", Period: 20},
		{ID: "ema50", Indicator: "ema", Period: 50},
		{ID: "ema200", Indicator: "ema", Period: 200},
		{ID: "adx", Indicator: "adx", Period: 14},
		{ID: "atr", Indicator: "atr", Period: 14},
		{ID: "price", Indicator: "price"},
	}
}

// FetchIndicators fetches the full bundle for one symbol, honoring the
// retry policy. A context error aborts immediately and is returned
// unwrapped so the caller can stop the whole scan.
func (c *Client) FetchIndicators(ctx context.Context, symbol string, tf drepo.Timeframe) (*models.IndicatorBundle, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Acquire(ctx); err != nil {
			return nil, err
		}

		bundle, err := c.fetchOnce(ctx, symbol, tf)
		if err == nil {
			c.metrics.RecordProviderRequest("ok")
			return bundle, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err

		var delay time.Duration
		switch {
		case IsRateLimited(err):
			c.metrics.RecordProviderRequest("rate_limited")
			delay = c.rateLimitRetryDelay
		case IsTimeout(err):
			c.metrics.RecordProviderRequest("timeout")
			delay = c.timeoutRetryDelay
		default:
			c.metrics.RecordProviderRequest("error")
			return nil, &FetchError{Symbol: symbol, Attempts: attempt, Err: err}
		}

		if attempt == c.maxRetries {
			break
		}

		c.log.Warn("indicator fetch retry",
			logger.String("symbol", symbol),
			logger.Int("attempt", attempt),
			logger.Duration("delay_ms", delay),
			logger.Error(err),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, &FetchError{Symbol: symbol, Attempts: c.maxRetries, Err: lastErr}
}

// RequestsUsed returns the lifetime count of paced provider requests.
func (c *Client) RequestsUsed() int { return c.limiter.Total() }

func (c *Client) fetchOnce(ctx context.Context, symbol string, tf drepo.Timeframe) (*models.IndicatorBundle, error) {
	payload := bulkRequest{
		Secret: c.secret,
		Construct: bulkConstruct{
			Exchange:   c.exchange,
			Symbol:     symbol,
			Interval:   tf.ProviderInterval(),
			Indicators: requestedIndicators(),
		},
	}

	resp, err := c.http.SendRequest(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    c.apiURL + "/bulk",
		Body:   payload,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &ProviderError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	var br bulkResponse
	if err := json.NewDecoder(resp.Body).Decode(&br); err != nil {
		return nil, fmt.Errorf("decode bulk response: %w", err)
	}

	return parseBundle(symbol, tf, br.Data), nil
}

// parseBundle maps bulk results onto the optional-field bundle. Results
// with provider-side errors are dropped, leaving the field nil.
func parseBundle(symbol string, tf drepo.Timeframe, data []bulkResult) *models.IndicatorBundle {
	b := &models.IndicatorBundle{Symbol: symbol, Timeframe: string(tf)}
	for _, r := range data {
		if len(r.Errors) > 0 || len(r.Result) == 0 {
			continue
		}
		switch r.ID {
		case "rsi":
			if v, ok := decodeValue(r.Result); ok {
				b.RSI = &v
			}
		case "macd":
			var m struct {
				Line   *float64 `json:"valueMACD"`
				Signal *float64 `json:"valueMACDSignal"`
				Hist   *float64 `json:"valueMACDHist"`
			}
			if err := json.Unmarshal(r.Result, &m); err == nil && m.Line != nil && m.Signal != nil && m.Hist != nil {
				b.MACD = &models.MACDValue{Line: *m.Line, Signal: *m.Signal, Histogram: *m.Hist}
			}
		case "bbands":
			var bb struct {
				Upper  *float64 `json:"valueUpperBand"`
				Middle *float64 `json:"valueMiddleBand"`
				Lower  *float64 `json:"valueLowerBand"`
			}
			if err := json.Unmarshal(r.Result, &bb); err == nil && bb.Upper != nil && bb.Middle != nil && bb.Lower != nil {
				b.Bollinger = &models.BollingerBands{Upper: *bb.Upper, Middle: *bb.Middle, Lower: *bb.Lower}
			}
		case "ema50":
			if v, ok := decodeValue(r.Result); ok {
				b.EMA50 = &v
			}
		case "ema200":
			if v, ok := decodeValue(r.Result); ok {
				b.EMA200 = &v
			}
		case "adx":
			if v, ok := decodeValue(r.Result); ok {
				b.ADX = &v
			}
		case "atr":
			if v, ok := decodeValue(r.Result); ok {
				b.ATR = &v
			}
		case "price":
			if v, ok := decodeValue(r.Result); ok {
				b.Price = &v
			}
		}
	}
	return b
}

func decodeValue(raw json.RawMessage) (float64, bool) {
	var v struct {
		Value *float64 `json:"value"`
	}
	if err := json.Unmarshal(raw, &v); err != nil || v.Value == nil {
		return 0, false
	}
	return *v.Value, true
}
