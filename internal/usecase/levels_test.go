package usecase

import (
	"math"
	"strings"
	"testing"

	"SignalScan/internal/domain/models"
	drepo "SignalScan/internal/domain/repository"
)

func buyAnalysis(levels *models.KeyLevels) *models.SignalAnalysis {
	return &models.SignalAnalysis{
		Sentiment: models.SentimentBullish,
		Action:    models.ActionBuy,
		KeyLevels: levels,
	}
}

func TestComputeLevelsBuyDefaultATR(t *testing.T) {
	calc := NewLevelCalculator()
	analysis := buyAnalysis(&models.KeyLevels{Support: 101, Resistance: 112})

	// no ATR reading: volatility falls back to 2% of price
	calc.ComputeLevels(analysis, &models.IndicatorBundle{}, 100, drepo.TFMid)

	if analysis.EntryPrice == nil || *analysis.EntryPrice != 100 {
		t.Fatalf("expected entry 100, got %v", analysis.EntryPrice)
	}
	if math.Abs(*analysis.StopLoss-96) > 1e-9 {
		t.Errorf("expected stop 96, got %v", *analysis.StopLoss)
	}
	if math.Abs(*analysis.TakeProfit-108) > 1e-9 {
		t.Errorf("expected target 108, got %v", *analysis.TakeProfit)
	}
	if math.Abs(*analysis.RiskRewardRatio-2.0) > 1e-9 {
		t.Errorf("expected risk/reward 2.0, got %v", *analysis.RiskRewardRatio)
	}
	if n := len(analysis.Reasoning); n == 0 || !strings.Contains(analysis.Reasoning[n-1], "risk/reward") {
		t.Errorf("expected a risk/reward note, got %v", analysis.Reasoning)
	}
}

func TestComputeLevelsHoldKeepsNilLevels(t *testing.T) {
	calc := NewLevelCalculator()
	analysis := &models.SignalAnalysis{Sentiment: models.SentimentNeutral, Action: models.ActionHold}

	calc.ComputeLevels(analysis, &models.IndicatorBundle{}, 100, drepo.TFMid)

	if analysis.EntryPrice != nil || analysis.StopLoss != nil || analysis.TakeProfit != nil || analysis.RiskRewardRatio != nil {
		t.Fatalf("hold must not get price levels: %+v", analysis)
	}

	// nil analysis must be a no-op
	calc.ComputeLevels(nil, nil, 100, drepo.TFMid)
}

func TestComputeLevelsBuySnapsToKeyLevels(t *testing.T) {
	calc := NewLevelCalculator()
	analysis := buyAnalysis(&models.KeyLevels{Support: 85, Resistance: 110})

	calc.ComputeLevels(analysis, &models.IndicatorBundle{ATR: f64(5)}, 100, drepo.TFMid)

	// raw stop 90 moves below the known support, raw target 120 caps
	// just under the resistance
	if math.Abs(*analysis.StopLoss-84.15) > 1e-9 {
		t.Errorf("expected stop 84.15, got %v", *analysis.StopLoss)
	}
	if math.Abs(*analysis.TakeProfit-108.9) > 1e-9 {
		t.Errorf("expected target 108.9, got %v", *analysis.TakeProfit)
	}
	if !(*analysis.StopLoss < *analysis.EntryPrice && *analysis.EntryPrice < *analysis.TakeProfit) {
		t.Fatalf("buy invariant violated: stop %v entry %v target %v",
			*analysis.StopLoss, *analysis.EntryPrice, *analysis.TakeProfit)
	}
}

func TestComputeLevelsSellMirrors(t *testing.T) {
	calc := NewLevelCalculator()
	analysis := &models.SignalAnalysis{
		Sentiment: models.SentimentBearish,
		Action:    models.ActionSell,
		KeyLevels: &models.KeyLevels{Support: 98, Resistance: 105},
	}

	calc.ComputeLevels(analysis, &models.IndicatorBundle{ATR: f64(2)}, 100, drepo.TFShort)

	// raw stop 103 moves above the resistance, raw target 95 lifts to
	// just above the support
	if math.Abs(*analysis.StopLoss-106.05) > 1e-9 {
		t.Errorf("expected stop 106.05, got %v", *analysis.StopLoss)
	}
	if math.Abs(*analysis.TakeProfit-98.98) > 1e-9 {
		t.Errorf("expected target 98.98, got %v", *analysis.TakeProfit)
	}
	if !(*analysis.TakeProfit < *analysis.EntryPrice && *analysis.EntryPrice < *analysis.StopLoss) {
		t.Fatalf("sell invariant violated: target %v entry %v stop %v",
			*analysis.TakeProfit, *analysis.EntryPrice, *analysis.StopLoss)
	}
}

func TestComputeLevelsBuyIgnoresResistanceBelowEntry(t *testing.T) {
	calc := NewLevelCalculator()
	analysis := buyAnalysis(&models.KeyLevels{Resistance: 100.5})

	calc.ComputeLevels(analysis, &models.IndicatorBundle{ATR: f64(5)}, 100, drepo.TFMid)

	// resistance*0.99 lands below the entry; capping there would invert
	// the trade, so the raw target stands
	if math.Abs(*analysis.TakeProfit-120) > 1e-9 {
		t.Errorf("expected target 120, got %v", *analysis.TakeProfit)
	}
	if !(*analysis.StopLoss < 100 && 100 < *analysis.TakeProfit) {
		t.Fatalf("buy invariant violated: stop %v target %v", *analysis.StopLoss, *analysis.TakeProfit)
	}
}

func TestComputeLevelsFloorsTinyATR(t *testing.T) {
	calc := NewLevelCalculator()
	analysis := buyAnalysis(nil)

	calc.ComputeLevels(analysis, &models.IndicatorBundle{ATR: f64(0.0001)}, 100, drepo.TFMid)

	// ATR floors at 0.1% of price so the stop distance never collapses
	if math.Abs(*analysis.StopLoss-99.8) > 1e-9 {
		t.Errorf("expected stop 99.8, got %v", *analysis.StopLoss)
	}
	if math.Abs(*analysis.TakeProfit-100.4) > 1e-9 {
		t.Errorf("expected target 100.4, got %v", *analysis.TakeProfit)
	}
}

func TestComputeLevelsHorizonMultipliers(t *testing.T) {
	cases := []struct {
		tf     drepo.Timeframe
		stop   float64
		target float64
	}{
		{drepo.TFShort, 98.5, 102.5},
		{drepo.TFMid, 98, 104},
		{drepo.TFLong, 97, 106},
		{drepo.Timeframe("weird"), 98, 104}, // unknown horizon uses mid multipliers
	}

	calc := NewLevelCalculator()
	for _, tc := range cases {
		analysis := buyAnalysis(nil)
		calc.ComputeLevels(analysis, &models.IndicatorBundle{ATR: f64(1)}, 100, tc.tf)
		if math.Abs(*analysis.StopLoss-tc.stop) > 1e-9 || math.Abs(*analysis.TakeProfit-tc.target) > 1e-9 {
			t.Errorf("%s: got stop %v target %v, want %v/%v",
				tc.tf, *analysis.StopLoss, *analysis.TakeProfit, tc.stop, tc.target)
		}
	}
}
