package strategy

import (
	"fmt"
	"math"

	"voyager/pkg/model"
)

// TrendPullback implements the "pullback in H1 trend" strategy.
// Buy setup:
// 1. H1 trend is BULL (RANGE is always rejected)
// 2. No STRONG_DOWN momentum conflict on M15
// 3. A detectable pullback: 2 of the last 3 M15 candles bearish, or
//    retracement from the nearest swing high of at least pullback_atr_ratio x ATR
// 4. Price within zone_atr_tolerance x ATR of a support swing level
// Sell setup mirrors the above against a BEAR trend.
type TrendPullback struct{}

// NewTrendPullback creates the trend-pullback plugin
func NewTrendPullback() *TrendPullback {
	return &TrendPullback{}
}

func (s *TrendPullback) ID() string      { return "h1_trend_m15_pullback" }
func (s *TrendPullback) Name() string    { return "H1 Trend / M15 Pullback" }
func (s *TrendPullback) Version() string { return "1.2.0" }

func (s *TrendPullback) RequiredTimeframes() []model.Timeframe {
	return []model.Timeframe{model.TimeframeM15, model.TimeframeH1}
}

func (s *TrendPullback) ParamSchema() []ParamDef {
	return []ParamDef{
		{Name: "pullback_atr_ratio", Default: 0.5, Description: "min retracement from swing extreme, in ATR multiples"},
		{Name: "zone_atr_tolerance", Default: 0.35, Description: "max distance from swing level that counts as in-zone, in ATR multiples"},
		{Name: "stop_buffer_atr", Default: 0.25, Description: "stop buffer beyond the swing level, in ATR multiples"},
		{Name: "min_stop_atr", Default: 0.8, Description: "minimum stop distance floor, in ATR multiples"},
		{Name: "rr_target", Default: 2.0, Description: "take-profit distance as a multiple of risk"},
		{Name: "clearance_atr", Default: 0.3, Description: "required clearance between target and the nearest opposing swing, in ATR multiples"},
	}
}

// Evaluate maps a market snapshot plus parameters to a trade intent
func (s *TrendPullback) Evaluate(mctx *model.MarketContext, params Params) TradeIntent {
	ind := mctx.Indicators
	atr := ind.ATRM15

	if atr <= 0 {
		return NoTrade("INSUFFICIENT_DATA", "ATR(M15) unavailable, not enough candle history")
	}

	switch ind.TrendH1 {
	case model.TrendBull:
		return s.evaluateLong(mctx, params, atr)
	case model.TrendBear:
		return s.evaluateShort(mctx, params, atr)
	default:
		return NoTrade("NOT_TRENDING", "H1 trend is RANGE, strategy trades only with a directional trend")
	}
}

func (s *TrendPullback) evaluateLong(mctx *model.MarketContext, params Params, atr float64) TradeIntent {
	ind := mctx.Indicators
	m15 := mctx.Candles[model.TimeframeM15]

	if ind.MomentumM15 == model.MomentumStrongDown {
		return NoTrade("MOMENTUM_CONFLICT", "strong M15 downside momentum against the H1 bull trend")
	}

	price := mctx.Price.Ask
	metrics := map[string]float64{"atr_m15": atr}

	// Pullback detection: recent bearish pressure or measurable retracement
	// from the nearest swing high.
	bearish := recentBearishCount(m15, 3)
	metrics["bearish_last3"] = float64(bearish)

	retracement := 0.0
	if high, ok := nearestAbove(ind.SwingsM15.Highs, price); ok {
		retracement = high - price
	} else if n := len(ind.SwingsM15.Highs); n > 0 {
		retracement = ind.SwingsM15.Highs[n-1] - price
	}
	metrics["retracement_atr"] = retracement / atr

	if bearish < 2 && retracement < params.Get("pullback_atr_ratio", 0.5)*atr {
		return TradeIntent{
			Decision:   DecisionNoTrade,
			ReasonCode: "NO_PULLBACK",
			Rationale:  fmt.Sprintf("no pullback: %d/3 bearish bars, retracement %.2f ATR", bearish, retracement/atr),
			Metrics:    metrics,
		}
	}

	// Entry zone: price must sit near a support swing low
	support, ok := nearestBelow(ind.SwingsM15.Lows, price)
	if !ok {
		return NoTrade("NO_SUPPORT_LEVEL", "no swing low below price to anchor the entry zone")
	}
	zoneDist := price - support
	metrics["support"] = support
	metrics["zone_distance_atr"] = zoneDist / atr

	if zoneDist > params.Get("zone_atr_tolerance", 0.35)*atr {
		return TradeIntent{
			Decision:   DecisionNoTrade,
			ReasonCode: "NOT_AT_ZONE",
			Rationale:  fmt.Sprintf("price %.2f ATR above support %.5f, outside the entry zone", zoneDist/atr, support),
			Metrics:    metrics,
		}
	}

	// Stop below support minus a buffer, floored by a minimum ATR distance
	stop := support - params.Get("stop_buffer_atr", 0.25)*atr
	if minStop := params.Get("min_stop_atr", 0.8) * atr; price-stop < minStop {
		stop = price - minStop
	}
	risk := price - stop
	target := price + risk*params.Get("rr_target", 2.0)

	// The target needs breathing room before the nearest resistance
	if resistance, found := nearestAbove(ind.SwingsM15.Highs, price); found {
		if target > resistance-params.Get("clearance_atr", 0.3)*atr {
			metrics["resistance"] = resistance
			return TradeIntent{
				Decision:   DecisionNoTrade,
				ReasonCode: "TARGET_NEAR_RESISTANCE",
				Rationale:  fmt.Sprintf("target %.5f lacks clearance below resistance %.5f", target, resistance),
				Metrics:    metrics,
			}
		}
	}

	return TradeIntent{
		Decision:   DecisionBuy,
		EntryType:  EntryMarket,
		EntryPrice: price,
		StopLoss:   stop,
		TakeProfit: target,
		ReasonCode: "TREND_PULLBACK_LONG",
		Rationale:  fmt.Sprintf("H1 bull trend, pullback to support %.5f, stop %.5f, target %.5f", support, stop, target),
		Metrics:    metrics,
		Tags:       []string{TagH1Bull},
	}
}

func (s *TrendPullback) evaluateShort(mctx *model.MarketContext, params Params, atr float64) TradeIntent {
	ind := mctx.Indicators
	m15 := mctx.Candles[model.TimeframeM15]

	if ind.MomentumM15 == model.MomentumStrongUp {
		return NoTrade("MOMENTUM_CONFLICT", "strong M15 upside momentum against the H1 bear trend")
	}

	price := mctx.Price.Bid
	metrics := map[string]float64{"atr_m15": atr}

	bullish := recentBullishCount(m15, 3)
	metrics["bullish_last3"] = float64(bullish)

	retracement := 0.0
	if low, ok := nearestBelow(ind.SwingsM15.Lows, price); ok {
		retracement = price - low
	} else if n := len(ind.SwingsM15.Lows); n > 0 {
		retracement = price - ind.SwingsM15.Lows[n-1]
	}
	metrics["retracement_atr"] = retracement / atr

	if bullish < 2 && retracement < params.Get("pullback_atr_ratio", 0.5)*atr {
		return TradeIntent{
			Decision:   DecisionNoTrade,
			ReasonCode: "NO_PULLBACK",
			Rationale:  fmt.Sprintf("no pullback: %d/3 bullish bars, retracement %.2f ATR", bullish, retracement/atr),
			Metrics:    metrics,
		}
	}

	resistance, ok := nearestAbove(ind.SwingsM15.Highs, price)
	if !ok {
		return NoTrade("NO_RESISTANCE_LEVEL", "no swing high above price to anchor the entry zone")
	}
	zoneDist := resistance - price
	metrics["resistance"] = resistance
	metrics["zone_distance_atr"] = zoneDist / atr

	if zoneDist > params.Get("zone_atr_tolerance", 0.35)*atr {
		return TradeIntent{
			Decision:   DecisionNoTrade,
			ReasonCode: "NOT_AT_ZONE",
			Rationale:  fmt.Sprintf("price %.2f ATR below resistance %.5f, outside the entry zone", zoneDist/atr, resistance),
			Metrics:    metrics,
		}
	}

	stop := resistance + params.Get("stop_buffer_atr", 0.25)*atr
	if minStop := params.Get("min_stop_atr", 0.8) * atr; stop-price < minStop {
		stop = price + minStop
	}
	risk := stop - price
	target := price - risk*params.Get("rr_target", 2.0)

	if support, found := nearestBelow(ind.SwingsM15.Lows, price); found {
		if target < support+params.Get("clearance_atr", 0.3)*atr {
			metrics["support"] = support
			return TradeIntent{
				Decision:   DecisionNoTrade,
				ReasonCode: "TARGET_NEAR_SUPPORT",
				Rationale:  fmt.Sprintf("target %.5f lacks clearance above support %.5f", target, support),
				Metrics:    metrics,
			}
		}
	}

	return TradeIntent{
		Decision:   DecisionSell,
		EntryType:  EntryMarket,
		EntryPrice: price,
		StopLoss:   stop,
		TakeProfit: target,
		ReasonCode: "TREND_PULLBACK_SHORT",
		Rationale:  fmt.Sprintf("H1 bear trend, pullback to resistance %.5f, stop %.5f, target %.5f", resistance, stop, target),
		Metrics:    metrics,
		Tags:       []string{TagH1Bear},
	}
}

// recentBearishCount counts bearish candles among the last n bars
func recentBearishCount(candles []model.Candle, n int) int {
	count := 0
	for i := len(candles) - n; i < len(candles); i++ {
		if i >= 0 && candles[i].Close < candles[i].Open {
			count++
		}
	}
	return count
}

// recentBullishCount counts bullish candles among the last n bars
func recentBullishCount(candles []model.Candle, n int) int {
	count := 0
	for i := len(candles) - n; i < len(candles); i++ {
		if i >= 0 && candles[i].Close > candles[i].Open {
			count++
		}
	}
	return count
}

// nearestBelow returns the highest level strictly below the price
func nearestBelow(levels []float64, price float64) (float64, bool) {
	best, found := 0.0, false
	for _, lv := range levels {
		if lv < price && (!found || lv > best) {
			best, found = lv, true
		}
	}
	return best, found
}

// nearestAbove returns the lowest level strictly above the price
func nearestAbove(levels []float64, price float64) (float64, bool) {
	best, found := math.MaxFloat64, false
	for _, lv := range levels {
		if lv > price && lv < best {
			best, found = lv, true
		}
	}
	return best, found
}
