package indicator

import (
	"math"

	"voyager/pkg/model"
)

const (
	atrPeriod        = 14
	trendFastMA      = 20
	trendSlowMA      = 50
	trendMinBars     = 60
	momentumLookback = 6
	momentumATRRatio = 0.6
	swingRadius      = 2
	maxSwingLevels   = 8
)

// Compute derives the indicator bundle from raw candle series.
// Insufficient data degrades to zero/neutral values instead of erroring,
// so a thin history never blocks the pipeline.
func Compute(candles map[model.Timeframe][]model.Candle) model.IndicatorBundle {
	m15 := candles[model.TimeframeM15]
	h1 := candles[model.TimeframeH1]

	atrM15 := CalculateATR(m15, atrPeriod)

	return model.IndicatorBundle{
		ATRM15:      atrM15,
		ATRH1:       CalculateATR(h1, atrPeriod),
		SwingsM15:   DetectSwings(m15, swingRadius, maxSwingLevels),
		TrendH1:     ClassifyTrend(h1),
		MomentumM15: ClassifyMomentum(m15, atrM15),
	}
}

// CalculateATR calculates the Average True Range over the trailing period.
// Returns 0 if fewer than period+1 candles exist.
func CalculateATR(candles []model.Candle, period int) float64 {
	if len(candles) < period+1 {
		return 0
	}

	var sum float64
	for i := len(candles) - period; i < len(candles); i++ {
		c := candles[i]
		prevClose := candles[i-1].Close
		tr := c.High - c.Low
		if hc := math.Abs(c.High - prevClose); hc > tr {
			tr = hc
		}
		if lc := math.Abs(c.Low - prevClose); lc > tr {
			tr = lc
		}
		sum += tr
	}
	return sum / float64(period)
}

// CalculateMA calculates a simple moving average of closes ending at offset
// bars back from the most recent candle (offset 0 = latest).
func CalculateMA(candles []model.Candle, period, offset int) float64 {
	end := len(candles) - offset
	if end < period {
		return 0
	}

	var sum float64
	for i := end - period; i < end; i++ {
		sum += candles[i].Close
	}
	return sum / float64(period)
}

// ClassifyTrend compares the 20-bar and 50-bar SMA plus the one-bar slope
// of the 20-bar SMA. Requires at least 60 closes, otherwise RANGE.
func ClassifyTrend(candles []model.Candle) model.TrendState {
	if len(candles) < trendMinBars {
		return model.TrendRange
	}

	fast := CalculateMA(candles, trendFastMA, 0)
	slow := CalculateMA(candles, trendSlowMA, 0)
	fastPrev := CalculateMA(candles, trendFastMA, 1)

	spread := fast - slow
	slope := fast - fastPrev

	switch {
	case spread > 0 && slope > 0:
		return model.TrendBull
	case spread < 0 && slope < 0:
		return model.TrendBear
	default:
		return model.TrendRange
	}
}

// ClassifyMomentum compares the close 6 bars ago with the latest close,
// normalized against ATR. Requires ATR > 0 and at least 6 bars.
func ClassifyMomentum(candles []model.Candle, atr float64) model.MomentumState {
	if atr <= 0 || len(candles) < momentumLookback+1 {
		return model.MomentumNeutral
	}

	latest := candles[len(candles)-1].Close
	past := candles[len(candles)-1-momentumLookback].Close
	delta := latest - past

	switch {
	case delta >= momentumATRRatio*atr:
		return model.MomentumStrongUp
	case delta <= -momentumATRRatio*atr:
		return model.MomentumStrongDown
	default:
		return model.MomentumNeutral
	}
}

// DetectSwings finds local extrema: a bar is a swing high/low when its
// high/low strictly exceeds/undercuts every bar within the radius on both
// sides. Only the most recent maxKeep of each are returned.
func DetectSwings(candles []model.Candle, radius, maxKeep int) model.SwingLevels {
	var swings model.SwingLevels

	for i := radius; i < len(candles)-radius; i++ {
		isHigh, isLow := true, true
		for j := i - radius; j <= i+radius; j++ {
			if j == i {
				continue
			}
			if candles[j].High >= candles[i].High {
				isHigh = false
			}
			if candles[j].Low <= candles[i].Low {
				isLow = false
			}
			if !isHigh && !isLow {
				break
			}
		}
		if isHigh {
			swings.Highs = append(swings.Highs, candles[i].High)
		}
		if isLow {
			swings.Lows = append(swings.Lows, candles[i].Low)
		}
	}

	if len(swings.Highs) > maxKeep {
		swings.Highs = swings.Highs[len(swings.Highs)-maxKeep:]
	}
	if len(swings.Lows) > maxKeep {
		swings.Lows = swings.Lows[len(swings.Lows)-maxKeep:]
	}
	return swings
}

// CalculateRSI calculates RSI over the trailing period (simple averages).
// Returns 50 when there is not enough history to compute it.
func CalculateRSI(candles []model.Candle, period int) float64 {
	if len(candles) < period+1 {
		return 50
	}

	var gains, losses float64
	for i := len(candles) - period; i < len(candles); i++ {
		change := candles[i].Close - candles[i-1].Close
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	if avgLoss == 0 {
		return 100
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}
