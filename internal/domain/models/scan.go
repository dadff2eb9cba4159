package models

import "time"

// SkipReason classifies why a symbol produced no signal during a scan.
type SkipReason string

const (
	SkipRateLimited    SkipReason = "rate_limited"
	SkipTimeout        SkipReason = "timeout"
	SkipProviderError  SkipReason = "provider_error"
	SkipIncompleteData SkipReason = "incomplete_data"
)

// SkippedSymbol records one symbol the scan could not analyze.
type SkippedSymbol struct {
	Symbol string     `json:"symbol"`
	Reason SkipReason `json:"reason"`
	Detail string     `json:"detail,omitempty"`
}

// ScanReport summarizes one full pass over a symbol universe.
// RequestCount is the number of provider requests this scan consumed,
// not the lifetime total of the limiter.
type ScanReport struct {
	Timeframe    string          `json:"timeframe"`
	Results      []TradeSignal   `json:"results"`
	Skipped      []SkippedSymbol `json:"skipped,omitempty"`
	Scanned      int             `json:"scanned"`
	RequestCount int             `json:"request_count"`
	Elapsed      time.Duration   `json:"elapsed"`
	StartedAt    time.Time       `json:"started_at"`
}
