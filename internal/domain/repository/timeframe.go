package repository

// Timeframe represents the trading horizon a scan targets.
type Timeframe string

const (
	TFShort Timeframe = "short_term"
	TFMid   Timeframe = "mid_term"
	TFLong  Timeframe = "long_term"
)

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	switch tf {
	case TFShort, TFMid, TFLong:
		return true
	default:
		return false
	}
}

// DefaultTimeframe returns the default timeframe.
func DefaultTimeframe() Timeframe { return TFMid }

// NormalizeTimeframe converts raw string to a valid timeframe (or default).
func NormalizeTimeframe(s string) Timeframe {
	if s == "" {
		return DefaultTimeframe()
	}
	tf := Timeframe(s)
	if IsValidTimeframe(tf) {
		return tf
	}
	return DefaultTimeframe()
}

// ProviderInterval maps a timeframe to the candle interval requested
// from the indicator provider.
func (tf Timeframe) ProviderInterval() string {
	switch tf {
	case TFShort:
		return "1h"
	case TFLong:
		return "1d"
	default:
		return "4h"
	}
}
