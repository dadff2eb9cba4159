package usecase

import (
	"fmt"
	"math"

	"SignalScan/internal/domain/models"
)

// AggregatorWeights names the vote scheme constants so the aggregation
// algorithm stays general over different weight sets.
type AggregatorWeights struct {
	VoteFull        float64
	VoteLean        float64
	StrengthDivisor float64
	RSIOversold     float64
	RSIOverbought   float64
	RSILeanLow      float64
	RSILeanHigh     float64
	ADXTrend        float64
}

// DefaultWeights returns the stock vote scheme.
func DefaultWeights() AggregatorWeights {
	return AggregatorWeights{
		VoteFull:        1,
		VoteLean:        0.5,
		StrengthDivisor: 20,
		RSIOversold:     30,
		RSIOverbought:   70,
		RSILeanLow:      40,
		RSILeanHigh:     60,
		ADXTrend:        25,
	}
}

// SignalAggregator turns one symbol's indicator bundle plus a reference
// price into a directional analysis. Each present indicator family votes
// once; ADX is informational only and never votes.
type SignalAggregator struct {
	w AggregatorWeights
}

func NewSignalAggregator(w AggregatorWeights) *SignalAggregator {
	return &SignalAggregator{w: w}
}

// Aggregate votes over the bundle. Missing indicators shrink the voter
// pool instead of failing; an empty pool resolves to neutral/hold with
// zero strength and confidence.
func (a *SignalAggregator) Aggregate(bundle *models.IndicatorBundle, currentPrice float64) *models.SignalAnalysis {
	var bullish, bearish float64
	total := 0
	reasoning := make([]string, 0, 8)
	var key *models.KeyLevels

	if bundle.RSI != nil {
		total++
		r := *bundle.RSI
		switch {
		case r < a.w.RSIOversold:
			bullish += a.w.VoteFull
			reasoning = append(reasoning, fmt.Sprintf("RSI oversold at %.1f", r))
		case r < a.w.RSILeanLow:
			bullish += a.w.VoteLean
			reasoning = append(reasoning, fmt.Sprintf("RSI leaning bullish at %.1f", r))
		case r > a.w.RSIOverbought:
			bearish += a.w.VoteFull
			reasoning = append(reasoning, fmt.Sprintf("RSI overbought at %.1f", r))
		case r > a.w.RSILeanHigh:
			bearish += a.w.VoteLean
			reasoning = append(reasoning, fmt.Sprintf("RSI leaning bearish at %.1f", r))
		default:
			reasoning = append(reasoning, fmt.Sprintf("RSI neutral at %.1f", r))
		}
	}

	if bundle.MACD != nil {
		total++
		m := bundle.MACD
		switch {
		case m.Histogram > 0 && m.Line > m.Signal:
			bullish += a.w.VoteFull
			reasoning = append(reasoning, "MACD bullish crossover")
		case m.Histogram > 0:
			bullish += a.w.VoteLean
			reasoning = append(reasoning, "MACD histogram positive")
		case m.Histogram < 0 && m.Line < m.Signal:
			bearish += a.w.VoteFull
			reasoning = append(reasoning, "MACD bearish crossover")
		case m.Histogram < 0:
			bearish += a.w.VoteLean
			reasoning = append(reasoning, "MACD histogram negative")
		default:
			reasoning = append(reasoning, "MACD flat")
		}
	}

	if bundle.EMA50 != nil && bundle.EMA200 != nil {
		total++
		e50, e200 := *bundle.EMA50, *bundle.EMA200
		switch {
		case e50 > e200 && currentPrice > e50:
			bullish += a.w.VoteFull
			reasoning = append(reasoning, "uptrend: price above EMA50 above EMA200")
		case e50 > e200:
			bullish += a.w.VoteLean
			reasoning = append(reasoning, "golden cross: EMA50 above EMA200")
		case e50 < e200 && currentPrice < e50:
			bearish += a.w.VoteFull
			reasoning = append(reasoning, "downtrend: price below EMA50 below EMA200")
		case e50 < e200:
			bearish += a.w.VoteLean
			reasoning = append(reasoning, "death cross: EMA50 below EMA200")
		default:
			reasoning = append(reasoning, "EMA50 and EMA200 flat")
		}
	}

	// ADX carries no direction: it comments on trend strength only.
	if bundle.ADX != nil {
		if *bundle.ADX > a.w.ADXTrend {
			reasoning = append(reasoning, fmt.Sprintf("ADX %.1f confirms trend strength", *bundle.ADX))
		} else {
			reasoning = append(reasoning, fmt.Sprintf("ADX %.1f shows weak trend", *bundle.ADX))
		}
	}

	if bundle.Bollinger != nil {
		total++
		bb := bundle.Bollinger
		switch {
		case currentPrice < bb.Lower:
			bullish += a.w.VoteLean
			reasoning = append(reasoning, "price below lower Bollinger band")
		case currentPrice > bb.Upper:
			bearish += a.w.VoteLean
			reasoning = append(reasoning, "price above upper Bollinger band")
		default:
			reasoning = append(reasoning, "price inside Bollinger bands")
		}
		key = &models.KeyLevels{Support: bb.Lower, Resistance: bb.Upper}
	}

	analysis := &models.SignalAnalysis{
		Sentiment: models.SentimentNeutral,
		Action:    models.ActionHold,
		Reasoning: reasoning,
		KeyLevels: key,
	}
	if total == 0 {
		return analysis
	}

	bullishPct := bullish / float64(total) * 100
	bearishPct := bearish / float64(total) * 100

	// The bullish branch is evaluated first, so an exact 50/50 split
	// resolves to bullish. Kept as documented behavior.
	switch {
	case bullishPct >= 50:
		analysis.Sentiment = models.SentimentBullish
		analysis.Action = models.ActionBuy
		analysis.Strength = math.Min(5, bullishPct/a.w.StrengthDivisor)
	case bearishPct >= 50:
		analysis.Sentiment = models.SentimentBearish
		analysis.Action = models.ActionSell
		analysis.Strength = math.Min(5, bearishPct/a.w.StrengthDivisor)
	}
	analysis.Confidence = math.Max(bullishPct, bearishPct)

	return analysis
}
