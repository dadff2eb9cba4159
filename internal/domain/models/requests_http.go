package models

// Requests for scanner HTTP endpoints. Defined in domain for consistency and reuse.

type ScanRequest struct {
	Symbols     []string `json:"symbols" validate:"omitempty,max=500,dive,required"`
	Timeframe   string   `json:"timeframe" default:"mid_term" validate:"oneof=short_term mid_term long_term"`
	MinStrength float64  `json:"min_strength" default:"-1" validate:"gte=-1,lte=5"`
	TopResults  int      `json:"top_results" default:"0" validate:"gte=0,lte=500"`
	MaxStocks   int      `json:"max_stocks" default:"0" validate:"gte=0,lte=500"`
}

type LatestSignalsRequest struct {
	Timeframe string `query:"timeframe" json:"timeframe" default:"mid_term" validate:"oneof=short_term mid_term long_term"`
	Limit     int    `query:"limit" json:"limit" default:"20" validate:"gte=1,lte=200"`
}

type SymbolSignalsRequest struct {
	Symbol    string `param:"symbol" json:"symbol" validate:"required"`
	Timeframe string `query:"timeframe" json:"timeframe" default:"" validate:"omitempty,oneof=short_term mid_term long_term"`
	From      string `query:"from" json:"from"` // RFC3339 or unix seconds
	To        string `query:"to" json:"to"`
	Limit     int    `query:"limit" json:"limit" default:"20" validate:"gte=1,lte=200"`
}

type QuoteRequest struct {
	Symbol string `param:"symbol" json:"symbol" validate:"required"`
}
