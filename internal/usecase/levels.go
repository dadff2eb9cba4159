package usecase

import (
	"fmt"
	"math"

	"SignalScan/internal/domain/models"
	drepo "SignalScan/internal/domain/repository"
)

// riskMultipliers are stop/target distances in ATR units per horizon.
type riskMultipliers struct {
	stop   float64
	target float64
}

func multipliersFor(tf drepo.Timeframe) riskMultipliers {
	switch tf {
	case drepo.TFShort:
		return riskMultipliers{stop: 1.5, target: 2.5}
	case drepo.TFLong:
		return riskMultipliers{stop: 3.0, target: 6.0}
	default:
		return riskMultipliers{stop: 2.0, target: 4.0}
	}
}

const (
	// defaultATRFraction substitutes for a missing ATR reading.
	defaultATRFraction = 0.02
	// minATRFraction floors the volatility base so risk never degenerates
	// to zero and the reward/risk division stays safe.
	minATRFraction = 0.001
)

// LevelCalculator derives entry, stop-loss and take-profit prices from an
// analysis and its volatility context.
type LevelCalculator struct{}

func NewLevelCalculator() *LevelCalculator { return &LevelCalculator{} }

// ComputeLevels mutates analysis in place. Hold actions keep every price
// level nil. For non-hold results the directional invariant holds:
// stop < entry < target for buys, target < entry < stop for sells.
func (l *LevelCalculator) ComputeLevels(analysis *models.SignalAnalysis, bundle *models.IndicatorBundle, currentPrice float64, tf drepo.Timeframe) {
	if analysis == nil || analysis.Action == models.ActionHold {
		return
	}

	atr := currentPrice * defaultATRFraction
	if bundle != nil && bundle.ATR != nil && *bundle.ATR > 0 {
		atr = *bundle.ATR
	}
	if floor := currentPrice * minATRFraction; atr < floor {
		atr = floor
	}

	m := multipliersFor(tf)
	entry := currentPrice
	var stop, target float64

	if analysis.Action == models.ActionBuy {
		stop = entry - atr*m.stop
		target = entry + atr*m.target
		if lv := analysis.KeyLevels; lv != nil {
			if lv.Support > 0 && lv.Support < stop {
				stop = lv.Support * 0.99
			}
			// The adjusted level must stay above entry, otherwise a
			// resistance near the current price would invert the trade.
			if adj := lv.Resistance * 0.99; lv.Resistance > 0 && adj < target && adj > entry {
				target = adj
			}
		}
	} else {
		stop = entry + atr*m.stop
		target = entry - atr*m.target
		if lv := analysis.KeyLevels; lv != nil {
			if lv.Resistance > stop {
				stop = lv.Resistance * 1.01
			}
			if adj := lv.Support * 1.01; lv.Support > 0 && adj > target && adj < entry {
				target = adj
			}
		}
	}

	risk := math.Abs(entry - stop)
	reward := math.Abs(target - entry)
	ratio := reward / risk

	analysis.EntryPrice = &entry
	analysis.StopLoss = &stop
	analysis.TakeProfit = &target
	analysis.RiskRewardRatio = &ratio
	analysis.Reasoning = append(analysis.Reasoning, fmt.Sprintf("risk/reward ratio %.2f", ratio))
}
