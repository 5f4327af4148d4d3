package strategy

import (
	"testing"
	"time"

	"voyager/pkg/model"
)

// rangeBars builds bars alternating between the two boundaries of a
// flat range, touching each one on every other bar
func rangeBars(n int, high, low float64) []model.Candle {
	start := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	candles := make([]model.Candle, n)
	for i := range candles {
		c := model.Candle{
			Time:     start.Add(time.Duration(i) * 15 * time.Minute),
			Complete: true,
		}
		if i%2 == 0 {
			c.Open, c.High, c.Low, c.Close = high-0.0002, high, high-0.0004, high-0.0001
		} else {
			c.Open, c.High, c.Low, c.Close = low+0.0002, low+0.0004, low, low+0.0001
		}
		candles[i] = c
	}
	return candles
}

func fadeContext(bid, ask, atr float64, m15 []model.Candle) *model.MarketContext {
	price := model.NewPriceSnapshot(bid, ask)
	return &model.MarketContext{
		Pair:       "EUR_USD",
		Time:       time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC),
		Price:      price,
		SpreadPips: model.SpreadPips("EUR_USD", price),
		Candles:    map[model.Timeframe][]model.Candle{model.TimeframeM15: m15},
		Indicators: model.IndicatorBundle{ATRM15: atr},
	}
}

func TestRangeFade_FadesUpperBoundary(t *testing.T) {
	s := NewRangeFade()
	// 28 bars pinned inside a 9 pip range, price at the upper boundary
	m15 := rangeBars(28, 1.1002, 1.0993)
	mctx := fadeContext(1.1002, 1.10024, 0.0005, m15)

	intent := s.Evaluate(mctx, Params{})

	if intent.Decision != DecisionSell {
		t.Fatalf("Expected SELL at the upper boundary, got %s (%s: %s)",
			intent.Decision, intent.ReasonCode, intent.Rationale)
	}
	if !intent.HasTag(TagRangeFade) {
		t.Errorf("Expected %s tag, got %v", TagRangeFade, intent.Tags)
	}
	if intent.EntryPrice != 1.1002 {
		t.Errorf("Expected entry at bid 1.1002, got %f", intent.EntryPrice)
	}
	if intent.StopLoss <= 1.1002 {
		t.Errorf("Expected stop beyond the upper boundary, got %f", intent.StopLoss)
	}
	if intent.TakeProfit >= intent.EntryPrice {
		t.Errorf("Expected midline target below entry, got %f", intent.TakeProfit)
	}

	for _, key := range []string{"fade_atr_stability", "fade_boundary_proximity", "fade_touch_density", "fade_rsi_edge"} {
		v, ok := intent.Metrics[key]
		if !ok {
			t.Errorf("Expected metric %s to be set", key)
			continue
		}
		if v < 0 || v > 1 {
			t.Errorf("Expected %s within [0, 1], got %f", key, v)
		}
	}
}

func TestRangeFade_TrendingMarketRejected(t *testing.T) {
	s := NewRangeFade()
	// Steadily rising bars spanning far more than the range width ceiling
	start := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	m15 := make([]model.Candle, 28)
	for i := range m15 {
		base := 1.1000 + float64(i)*0.0005
		m15[i] = model.Candle{
			Time: start.Add(time.Duration(i) * 15 * time.Minute),
			Open: base, High: base + 0.0003, Low: base - 0.0003, Close: base + 0.0002,
			Complete: true,
		}
	}
	mctx := fadeContext(1.1135, 1.1136, 0.0005, m15)

	intent := s.Evaluate(mctx, Params{})

	if intent.Decision != DecisionNoTrade {
		t.Fatalf("Expected NO_TRADE in a trending market, got %s", intent.Decision)
	}
	if intent.ReasonCode != "NOT_RANGE_BOUND" {
		t.Errorf("Expected NOT_RANGE_BOUND, got %s (%s)", intent.ReasonCode, intent.Rationale)
	}
}

func TestRangeFade_VolatileRegimeRejected(t *testing.T) {
	s := NewRangeFade()
	m15 := rangeBars(28, 1.1002, 1.0993)
	// ATR of 12 pips breaks the 10 pip flat-regime ceiling
	mctx := fadeContext(1.1002, 1.10024, 0.0012, m15)

	intent := s.Evaluate(mctx, Params{})

	if intent.ReasonCode != "NOT_RANGE_BOUND" {
		t.Errorf("Expected NOT_RANGE_BOUND for a volatile regime, got %s", intent.ReasonCode)
	}
}

func TestRangeFade_SpreadTooWide(t *testing.T) {
	s := NewRangeFade()
	m15 := rangeBars(28, 1.1002, 1.0993)
	mctx := fadeContext(1.1000, 1.1002, 0.0005, m15) // 2 pip spread

	intent := s.Evaluate(mctx, Params{})

	if intent.ReasonCode != "SPREAD_TOO_WIDE" {
		t.Errorf("Expected SPREAD_TOO_WIDE, got %s", intent.ReasonCode)
	}
}

func TestRangeFade_InsufficientData(t *testing.T) {
	s := NewRangeFade()
	mctx := fadeContext(1.1002, 1.10024, 0.0005, rangeBars(10, 1.1002, 1.0993))

	intent := s.Evaluate(mctx, Params{})

	if intent.ReasonCode != "INSUFFICIENT_DATA" {
		t.Errorf("Expected INSUFFICIENT_DATA, got %s", intent.ReasonCode)
	}
}

func TestRangeFade_NewsWindow(t *testing.T) {
	s := NewRangeFade()
	m15 := rangeBars(28, 1.1002, 1.0993)
	mctx := fadeContext(1.1002, 1.10024, 0.0005, m15)

	intent := s.Evaluate(mctx, Params{"avoid_news": 1, "news_window": 1})

	if intent.ReasonCode != "NEWS_WINDOW" {
		t.Errorf("Expected NEWS_WINDOW, got %s", intent.ReasonCode)
	}
}

func TestRangeFade_RSIFilter(t *testing.T) {
	s := NewRangeFade()
	// Alternating closes keep RSI near 50, below the 60 needed to fade
	// the upper boundary
	m15 := rangeBars(28, 1.1002, 1.0993)
	mctx := fadeContext(1.1002, 1.10024, 0.0005, m15)

	intent := s.Evaluate(mctx, Params{"use_rsi_filter": 1})

	if intent.ReasonCode != "RSI_FILTER" {
		t.Errorf("Expected RSI_FILTER, got %s (%s)", intent.ReasonCode, intent.Rationale)
	}
}

func TestRangeFade_RRTooLow(t *testing.T) {
	s := NewRangeFade()
	// Price in the middle of the range: the midline target is too close
	// relative to the stop beyond the boundary
	m15 := rangeBars(28, 1.1002, 1.0993)
	mctx := fadeContext(1.0999, 1.09994, 0.0005, m15)

	intent := s.Evaluate(mctx, Params{})

	if intent.ReasonCode != "RR_TOO_LOW" {
		t.Errorf("Expected RR_TOO_LOW, got %s (%s)", intent.ReasonCode, intent.Rationale)
	}
}
