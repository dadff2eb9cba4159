package usecase

import (
	"math"
	"strings"
	"testing"

	"SignalScan/internal/domain/models"
)

func f64(v float64) *float64 { return &v }

func TestAggregateStrongBullish(t *testing.T) {
	agg := NewSignalAggregator(DefaultWeights())
	bundle := &models.IndicatorBundle{
		Symbol:    "BTC/USDT",
		RSI:       f64(20),
		MACD:      &models.MACDValue{Line: 1.2, Signal: 0.8, Histogram: 0.4},
		EMA50:     f64(90),
		EMA200:    f64(85),
		Bollinger: &models.BollingerBands{Upper: 112, Middle: 106, Lower: 100},
	}

	analysis := agg.Aggregate(bundle, 95)

	if analysis.Sentiment != models.SentimentBullish {
		t.Fatalf("expected bullish sentiment, got %s", analysis.Sentiment)
	}
	if analysis.Action != models.ActionBuy {
		t.Fatalf("expected buy action, got %s", analysis.Action)
	}
	// 3.5 votes out of 4 voters: 87.5% confidence, strength 4.375
	if math.Abs(analysis.Strength-4.375) > 1e-9 {
		t.Errorf("expected strength 4.375, got %v", analysis.Strength)
	}
	if math.Abs(analysis.Confidence-87.5) > 1e-9 {
		t.Errorf("expected confidence 87.5, got %v", analysis.Confidence)
	}
	if analysis.KeyLevels == nil {
		t.Fatal("expected key levels from Bollinger bands")
	}
	if analysis.KeyLevels.Support != 100 || analysis.KeyLevels.Resistance != 112 {
		t.Errorf("unexpected key levels: %+v", analysis.KeyLevels)
	}
	if len(analysis.Reasoning) != 4 {
		t.Errorf("expected 4 reasoning entries, got %v", analysis.Reasoning)
	}
}

func TestAggregateStrongBearish(t *testing.T) {
	agg := NewSignalAggregator(DefaultWeights())
	bundle := &models.IndicatorBundle{
		Symbol:    "ETH/USDT",
		RSI:       f64(80),
		MACD:      &models.MACDValue{Line: -1.2, Signal: -0.8, Histogram: -0.4},
		EMA50:     f64(110),
		EMA200:    f64(115),
		Bollinger: &models.BollingerBands{Upper: 104, Middle: 100, Lower: 96},
	}

	analysis := agg.Aggregate(bundle, 105)

	if analysis.Sentiment != models.SentimentBearish {
		t.Fatalf("expected bearish sentiment, got %s", analysis.Sentiment)
	}
	if analysis.Action != models.ActionSell {
		t.Fatalf("expected sell action, got %s", analysis.Action)
	}
	if math.Abs(analysis.Strength-4.375) > 1e-9 {
		t.Errorf("expected strength 4.375, got %v", analysis.Strength)
	}
	if math.Abs(analysis.Confidence-87.5) > 1e-9 {
		t.Errorf("expected confidence 87.5, got %v", analysis.Confidence)
	}
}

func TestAggregateEmptyBundle(t *testing.T) {
	agg := NewSignalAggregator(DefaultWeights())

	analysis := agg.Aggregate(&models.IndicatorBundle{Symbol: "SOL/USDT"}, 100)

	if analysis.Sentiment != models.SentimentNeutral {
		t.Fatalf("expected neutral sentiment, got %s", analysis.Sentiment)
	}
	if analysis.Action != models.ActionHold {
		t.Fatalf("expected hold action, got %s", analysis.Action)
	}
	if analysis.Strength != 0 || analysis.Confidence != 0 {
		t.Errorf("expected zero strength and confidence, got %v/%v", analysis.Strength, analysis.Confidence)
	}
	if analysis.KeyLevels != nil {
		t.Errorf("expected no key levels, got %+v", analysis.KeyLevels)
	}
}

func TestAggregateTieResolvesBullish(t *testing.T) {
	agg := NewSignalAggregator(DefaultWeights())
	// one full bullish vote against one full bearish vote
	bundle := &models.IndicatorBundle{
		RSI:  f64(20),
		MACD: &models.MACDValue{Line: -1.0, Signal: -0.5, Histogram: -0.2},
	}

	analysis := agg.Aggregate(bundle, 100)

	if analysis.Sentiment != models.SentimentBullish {
		t.Fatalf("expected a 50/50 split to resolve bullish, got %s", analysis.Sentiment)
	}
	if analysis.Action != models.ActionBuy {
		t.Fatalf("expected buy action, got %s", analysis.Action)
	}
	if math.Abs(analysis.Strength-2.5) > 1e-9 {
		t.Errorf("expected strength 2.5, got %v", analysis.Strength)
	}
	if math.Abs(analysis.Confidence-50) > 1e-9 {
		t.Errorf("expected confidence 50, got %v", analysis.Confidence)
	}
}

func TestAggregateADXDoesNotVote(t *testing.T) {
	agg := NewSignalAggregator(DefaultWeights())

	analysis := agg.Aggregate(&models.IndicatorBundle{ADX: f64(40)}, 100)

	// ADX alone leaves the voter pool empty
	if analysis.Sentiment != models.SentimentNeutral || analysis.Action != models.ActionHold {
		t.Fatalf("expected neutral/hold, got %s/%s", analysis.Sentiment, analysis.Action)
	}
	if analysis.Strength != 0 || analysis.Confidence != 0 {
		t.Errorf("expected zero strength and confidence, got %v/%v", analysis.Strength, analysis.Confidence)
	}
	if len(analysis.Reasoning) != 1 || !strings.Contains(analysis.Reasoning[0], "trend strength") {
		t.Errorf("expected an ADX trend note, got %v", analysis.Reasoning)
	}
}

func TestAggregateNeutralVotersDilute(t *testing.T) {
	agg := NewSignalAggregator(DefaultWeights())
	// MACD votes bullish but RSI and the EMA pair sit on the fence,
	// leaving one vote out of three voters
	bundle := &models.IndicatorBundle{
		RSI:    f64(50),
		EMA50:  f64(100),
		EMA200: f64(100),
		MACD:   &models.MACDValue{Line: 1.0, Signal: 0.5, Histogram: 0.2},
	}

	analysis := agg.Aggregate(bundle, 100)

	if analysis.Sentiment != models.SentimentNeutral {
		t.Fatalf("expected neutral sentiment, got %s", analysis.Sentiment)
	}
	if analysis.Action != models.ActionHold {
		t.Fatalf("expected hold action, got %s", analysis.Action)
	}
	if math.Abs(analysis.Confidence-100.0/3) > 1e-9 {
		t.Errorf("expected confidence 33.3, got %v", analysis.Confidence)
	}
	if analysis.Strength != 0 {
		t.Errorf("expected zero strength below the 50%% bar, got %v", analysis.Strength)
	}
}

func TestAggregateMACDLeanVote(t *testing.T) {
	agg := NewSignalAggregator(DefaultWeights())
	// positive histogram without a line crossover is only a lean
	bundle := &models.IndicatorBundle{
		MACD: &models.MACDValue{Line: 0.3, Signal: 0.5, Histogram: 0.1},
	}

	analysis := agg.Aggregate(bundle, 100)

	if analysis.Sentiment != models.SentimentBullish {
		t.Fatalf("expected bullish sentiment, got %s", analysis.Sentiment)
	}
	if math.Abs(analysis.Strength-2.5) > 1e-9 {
		t.Errorf("expected strength 2.5 from a lone lean vote, got %v", analysis.Strength)
	}
	if len(analysis.Reasoning) != 1 || analysis.Reasoning[0] != "MACD histogram positive" {
		t.Errorf("unexpected reasoning: %v", analysis.Reasoning)
	}
}
