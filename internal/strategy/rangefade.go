package strategy

import (
	"fmt"
	"math"

	"voyager/internal/indicator"
	"voyager/pkg/model"
)

// RangeFade implements the "flat range fade" strategy: when a pair is
// stuck in a narrow horizontal range it sells the upper boundary and buys
// the lower one, targeting the midline.
//
// Regime detection requires all of:
//   - ATR(M15) below a pip ceiling
//   - the recent N-bar high/low range width within [min,max] pip bounds
//   - enough bar touches of each boundary within the tolerance band
//
// The strategy attaches normalized 0-1 diagnostic sub-scores (ATR
// stability, boundary proximity, touch density, RSI edge) to its metrics;
// the scoring engine reads them for the range-fade boost.
type RangeFade struct{}

// NewRangeFade creates the range-fade plugin
func NewRangeFade() *RangeFade {
	return &RangeFade{}
}

func (s *RangeFade) ID() string      { return "flat_range_v1" }
func (s *RangeFade) Name() string    { return "Flat Range Fade" }
func (s *RangeFade) Version() string { return "1.0.1" }

func (s *RangeFade) RequiredTimeframes() []model.Timeframe {
	return []model.Timeframe{model.TimeframeM15}
}

func (s *RangeFade) ParamSchema() []ParamDef {
	return []ParamDef{
		{Name: "range_lookback", Default: 24, Description: "bars used to measure the range"},
		{Name: "atr_ceiling_pips", Default: 10, Description: "max ATR(M15) in pips for a flat regime"},
		{Name: "min_range_pips", Default: 6, Description: "minimum range width in pips"},
		{Name: "max_range_pips", Default: 40, Description: "maximum range width in pips"},
		{Name: "touch_tolerance_pips", Default: 2, Description: "distance from a boundary that counts as a touch"},
		{Name: "min_touch_count", Default: 2, Description: "required touches per boundary"},
		{Name: "max_spread_pips", Default: 1.5, Description: "reject when the spread is wider than this"},
		{Name: "stop_buffer_pips", Default: 2, Description: "stop distance beyond the faded boundary"},
		{Name: "target_pips", Default: 0, Description: "fixed target distance in pips; 0 targets the midline"},
		{Name: "min_rr", Default: 1.0, Description: "minimum reward:risk for the fade"},
		{Name: "use_rsi_filter", Default: 0, Description: "require RSI agreement with the fade direction (0/1)"},
		{Name: "rsi_upper", Default: 60, Description: "RSI floor for fading the upper boundary"},
		{Name: "rsi_lower", Default: 40, Description: "RSI ceiling for fading the lower boundary"},
		{Name: "avoid_news", Default: 0, Description: "reject inside a news window (0/1)"},
		{Name: "news_window", Default: 0, Description: "news window flag injected by configuration (0/1)"},
	}
}

// Evaluate maps a market snapshot plus parameters to a trade intent
func (s *RangeFade) Evaluate(mctx *model.MarketContext, params Params) TradeIntent {
	m15 := mctx.Candles[model.TimeframeM15]
	pip := model.PipSize(mctx.Pair)
	lookback := int(params.Get("range_lookback", 24))

	if len(m15) < lookback {
		return NoTrade("INSUFFICIENT_DATA",
			fmt.Sprintf("need %d M15 candles, have %d", lookback, len(m15)))
	}

	if params.Bool("avoid_news", false) && params.Bool("news_window", false) {
		return NoTrade("NEWS_WINDOW", "inside a configured news window")
	}

	if spreadCap := params.Get("max_spread_pips", 1.5); mctx.SpreadPips > spreadCap {
		return NoTrade("SPREAD_TOO_WIDE",
			fmt.Sprintf("spread %.1f pips exceeds %.1f pip cap", mctx.SpreadPips, spreadCap))
	}

	atr := mctx.Indicators.ATRM15
	atrCeiling := params.Get("atr_ceiling_pips", 10) * pip
	if atr <= 0 || atr > atrCeiling {
		return NoTrade("NOT_RANGE_BOUND",
			fmt.Sprintf("ATR %.1f pips outside the flat-regime ceiling of %.1f pips", atr/pip, atrCeiling/pip))
	}

	// Range boundaries over the lookback window
	window := m15[len(m15)-lookback:]
	high, low := window[0].High, window[0].Low
	for _, c := range window[1:] {
		if c.High > high {
			high = c.High
		}
		if c.Low < low {
			low = c.Low
		}
	}

	widthPips := (high - low) / pip
	minWidth := params.Get("min_range_pips", 6)
	maxWidth := params.Get("max_range_pips", 40)
	if widthPips < minWidth || widthPips > maxWidth {
		return NoTrade("NOT_RANGE_BOUND",
			fmt.Sprintf("range width %.1f pips outside [%.0f, %.0f]", widthPips, minWidth, maxWidth))
	}

	// Boundary touches within the tolerance band
	tolerance := params.Get("touch_tolerance_pips", 2) * pip
	touchesHigh, touchesLow := 0, 0
	for _, c := range window {
		if high-c.High <= tolerance {
			touchesHigh++
		}
		if c.Low-low <= tolerance {
			touchesLow++
		}
	}
	minTouches := int(params.Get("min_touch_count", 2))
	if touchesHigh < minTouches || touchesLow < minTouches {
		return NoTrade("NOT_RANGE_BOUND",
			fmt.Sprintf("boundary touches %d/%d below the %d minimum", touchesHigh, touchesLow, minTouches))
	}

	// Side: fade the nearer boundary
	mid := (high + low) / 2
	price := mctx.Price.Mid
	fadeUpper := high-price < price-low

	rsi := indicator.CalculateRSI(m15, 14)
	if params.Bool("use_rsi_filter", false) {
		if fadeUpper && rsi < params.Get("rsi_upper", 60) {
			return NoTrade("RSI_FILTER",
				fmt.Sprintf("RSI %.1f below %.0f, no exhaustion at the upper boundary", rsi, params.Get("rsi_upper", 60)))
		}
		if !fadeUpper && rsi > params.Get("rsi_lower", 40) {
			return NoTrade("RSI_FILTER",
				fmt.Sprintf("RSI %.1f above %.0f, no exhaustion at the lower boundary", rsi, params.Get("rsi_lower", 40)))
		}
	}

	buffer := params.Get("stop_buffer_pips", 2) * pip
	targetPips := params.Get("target_pips", 0)

	var decision Decision
	var entry, stop, target float64
	if fadeUpper {
		decision = DecisionSell
		entry = mctx.Price.Bid
		stop = high + buffer
		if targetPips > 0 {
			target = entry - targetPips*pip
		} else {
			target = mid
		}
	} else {
		decision = DecisionBuy
		entry = mctx.Price.Ask
		stop = low - buffer
		if targetPips > 0 {
			target = entry + targetPips*pip
		} else {
			target = mid
		}
	}

	risk := math.Abs(entry - stop)
	reward := math.Abs(target - entry)
	if risk <= 0 {
		return NoTrade("INVALID_STOP", "zero stop distance for the fade")
	}
	rr := reward / risk
	if minRR := params.Get("min_rr", 1.0); rr < minRR {
		return NoTrade("RR_TOO_LOW",
			fmt.Sprintf("fade RR %.2f below the %.2f minimum", rr, minRR))
	}

	// Diagnostic sub-scores, all clamped to [0, 1]
	boundary := low
	if fadeUpper {
		boundary = high
	}
	halfWidth := (high - low) / 2
	touches := touchesHigh
	if !fadeUpper {
		touches = touchesLow
	}
	metrics := map[string]float64{
		"range_high":              high,
		"range_low":               low,
		"range_width_pips":        widthPips,
		"rsi":                     rsi,
		"fade_atr_stability":      clamp01(1 - atr/atrCeiling),
		"fade_boundary_proximity": clamp01(1 - math.Abs(price-boundary)/halfWidth),
		"fade_touch_density":      clamp01(float64(touches) / 4),
		"fade_rsi_edge":           rsiEdge(rsi, fadeUpper),
	}

	side := "lower"
	if fadeUpper {
		side = "upper"
	}
	return TradeIntent{
		Decision:   decision,
		EntryType:  EntryMarket,
		EntryPrice: entry,
		StopLoss:   stop,
		TakeProfit: target,
		ReasonCode: "RANGE_FADE",
		Rationale: fmt.Sprintf("fading the %s boundary of a %.1f pip range [%.5f, %.5f], RR %.2f",
			side, widthPips, low, high, rr),
		Metrics: metrics,
		Tags:    []string{TagRangeFade},
	}
}

// rsiEdge scores how far RSI leans toward exhaustion at the faded boundary
func rsiEdge(rsi float64, fadeUpper bool) float64 {
	if fadeUpper {
		return clamp01((rsi - 50) / 30)
	}
	return clamp01((50 - rsi) / 30)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
