package models

import "time"

// Sentiment is the aggregate direction read from a symbol's indicators.
type Sentiment string

const (
	SentimentBullish Sentiment = "bullish"
	SentimentBearish Sentiment = "bearish"
	SentimentNeutral Sentiment = "neutral"
)

// TradingAction is the suggested position change for a signal.
type TradingAction string

const (
	ActionBuy  TradingAction = "buy"
	ActionSell TradingAction = "sell"
	ActionHold TradingAction = "hold"
)

// KeyLevels carries the support and resistance prices observed while voting.
type KeyLevels struct {
	Support    float64 `json:"support"`
	Resistance float64 `json:"resistance"`
}

// SignalAnalysis is the outcome of aggregating one symbol's indicator votes.
// Strength is 0..5, Confidence is 0..100.
type SignalAnalysis struct {
	Sentiment       Sentiment     `json:"sentiment"`
	Strength        float64       `json:"strength"`
	Confidence      float64       `json:"confidence"`
	Action          TradingAction `json:"action"`
	EntryPrice      *float64      `json:"entry_price,omitempty"`
	StopLoss        *float64      `json:"stop_loss,omitempty"`
	TakeProfit      *float64      `json:"take_profit,omitempty"`
	RiskRewardRatio *float64      `json:"risk_reward_ratio,omitempty"`
	Reasoning       []string      `json:"reasoning"`
	KeyLevels       *KeyLevels    `json:"key_levels,omitempty"`
}

// TradeSignal is the consumer-facing record for one scanned symbol.
// Price levels are computed once at generation time; consumers take them
// as-is instead of re-deriving from the raw indicators.
type TradeSignal struct {
	Symbol      string          `json:"symbol"`
	Timeframe   string          `json:"timeframe"`
	Price       float64         `json:"price"`
	Analysis    SignalAnalysis  `json:"analysis"`
	Indicators  IndicatorBundle `json:"indicators"`
	GeneratedAt time.Time       `json:"generated_at"`
}
