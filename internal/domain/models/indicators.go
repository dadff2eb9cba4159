package models

// MACDValue holds the three MACD series values for the latest bar.
type MACDValue struct {
	Line      float64 `json:"line"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// BollingerBands holds the three band values for the latest bar.
type BollingerBands struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// IndicatorBundle is one provider response for a (symbol, timeframe) pair.
// Every field is optional: an indicator the provider failed to compute stays
// nil and the aggregator degrades to fewer votes instead of failing.
type IndicatorBundle struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`

	RSI       *float64        `json:"rsi,omitempty"`
	MACD      *MACDValue      `json:"macd,omitempty"`
	Bollinger *BollingerBands `json:"bollinger,omitempty"`
	EMA50     *float64        `json:"ema50,omitempty"`
	EMA200    *float64        `json:"ema200,omitempty"`
	ADX       *float64        `json:"adx,omitempty"`
	ATR       *float64        `json:"atr,omitempty"`

	// Price is the provider's close-price snapshot taken with the bundle.
	Price *float64 `json:"price,omitempty"`
}

// HasDirectional reports whether at least one direction-voting indicator
// family is present (ADX alone carries no direction).
func (b *IndicatorBundle) HasDirectional() bool {
	if b == nil {
		return false
	}
	return b.RSI != nil || b.MACD != nil || b.Bollinger != nil ||
		(b.EMA50 != nil && b.EMA200 != nil)
}
