package strategy

import (
	"math"
	"testing"
	"time"

	"voyager/pkg/model"
)

// pullbackContext builds a market context with the indicator bundle set
// directly, so each gate can be exercised in isolation
func pullbackContext(trend model.TrendState, momentum model.MomentumState,
	atr float64, swings model.SwingLevels, bid, ask float64, m15 []model.Candle) *model.MarketContext {
	return &model.MarketContext{
		Pair:       "EUR_USD",
		Time:       time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC),
		Price:      model.NewPriceSnapshot(bid, ask),
		SpreadPips: model.SpreadPips("EUR_USD", model.NewPriceSnapshot(bid, ask)),
		Candles:    map[model.Timeframe][]model.Candle{model.TimeframeM15: m15},
		Indicators: model.IndicatorBundle{
			ATRM15:      atr,
			TrendH1:     trend,
			MomentumM15: momentum,
			SwingsM15:   swings,
		},
	}
}

// bearishBars builds n candles that all closed below their open
func bearishBars(n int, around float64) []model.Candle {
	candles := make([]model.Candle, n)
	for i := range candles {
		candles[i] = model.Candle{
			Open: around + 0.0003, High: around + 0.0005,
			Low: around - 0.0002, Close: around,
			Complete: true,
		}
	}
	return candles
}

// bullishBars builds n candles that all closed above their open
func bullishBars(n int, around float64) []model.Candle {
	candles := make([]model.Candle, n)
	for i := range candles {
		candles[i] = model.Candle{
			Open: around - 0.0003, High: around + 0.0002,
			Low: around - 0.0005, Close: around,
			Complete: true,
		}
	}
	return candles
}

func TestTrendPullback_RangeNeverTrades(t *testing.T) {
	s := NewTrendPullback()
	mctx := pullbackContext(model.TrendRange, model.MomentumNeutral, 0.0010,
		model.SwingLevels{Lows: []float64{1.0990}, Highs: []float64{1.1100}},
		1.0991, 1.0992, bearishBars(10, 1.0992))

	intent := s.Evaluate(mctx, Params{})

	if intent.Decision != DecisionNoTrade {
		t.Fatalf("Expected NO_TRADE in a RANGE, got %s", intent.Decision)
	}
	if intent.ReasonCode != "NOT_TRENDING" {
		t.Errorf("Expected NOT_TRENDING, got %s", intent.ReasonCode)
	}
}

func TestTrendPullback_InsufficientData(t *testing.T) {
	s := NewTrendPullback()
	mctx := pullbackContext(model.TrendBull, model.MomentumNeutral, 0,
		model.SwingLevels{}, 1.0991, 1.0992, nil)

	intent := s.Evaluate(mctx, Params{})

	if intent.ReasonCode != "INSUFFICIENT_DATA" {
		t.Errorf("Expected INSUFFICIENT_DATA with no ATR, got %s", intent.ReasonCode)
	}
}

func TestTrendPullback_MomentumConflict(t *testing.T) {
	s := NewTrendPullback()
	mctx := pullbackContext(model.TrendBull, model.MomentumStrongDown, 0.0010,
		model.SwingLevels{Lows: []float64{1.0990}, Highs: []float64{1.1100}},
		1.0991, 1.0992, bearishBars(10, 1.0992))

	intent := s.Evaluate(mctx, Params{})

	if intent.ReasonCode != "MOMENTUM_CONFLICT" {
		t.Errorf("Expected MOMENTUM_CONFLICT, got %s", intent.ReasonCode)
	}
}

func TestTrendPullback_LongSetup(t *testing.T) {
	s := NewTrendPullback()
	// Bull trend, price just above support, recent bearish pressure,
	// resistance far enough for the 2R target
	mctx := pullbackContext(model.TrendBull, model.MomentumNeutral, 0.0010,
		model.SwingLevels{Lows: []float64{1.0990}, Highs: []float64{1.1100}},
		1.0991, 1.0992, bearishBars(10, 1.0992))

	intent := s.Evaluate(mctx, Params{})

	if intent.Decision != DecisionBuy {
		t.Fatalf("Expected BUY, got %s (%s: %s)", intent.Decision, intent.ReasonCode, intent.Rationale)
	}
	if intent.EntryPrice != 1.0992 {
		t.Errorf("Expected entry at ask 1.0992, got %f", intent.EntryPrice)
	}

	// Stop below support minus buffer would be 0.45 ATR away, so the
	// 0.8 ATR floor takes over
	wantStop := 1.0992 - 0.0008
	if math.Abs(intent.StopLoss-wantStop) > 1e-9 {
		t.Errorf("Expected stop floored at %f, got %f", wantStop, intent.StopLoss)
	}

	risk := intent.EntryPrice - intent.StopLoss
	wantTarget := intent.EntryPrice + 2*risk
	if math.Abs(intent.TakeProfit-wantTarget) > 1e-9 {
		t.Errorf("Expected 2R target %f, got %f", wantTarget, intent.TakeProfit)
	}

	if !intent.HasTag(TagH1Bull) {
		t.Errorf("Expected %s tag, got %v", TagH1Bull, intent.Tags)
	}
}

func TestTrendPullback_NotAtZone(t *testing.T) {
	s := NewTrendPullback()
	// Support sits far beneath the price, outside the entry zone
	mctx := pullbackContext(model.TrendBull, model.MomentumNeutral, 0.0010,
		model.SwingLevels{Lows: []float64{1.0900}, Highs: []float64{1.1100}},
		1.0991, 1.0992, bearishBars(10, 1.0992))

	intent := s.Evaluate(mctx, Params{})

	if intent.ReasonCode != "NOT_AT_ZONE" {
		t.Errorf("Expected NOT_AT_ZONE, got %s (%s)", intent.ReasonCode, intent.Rationale)
	}
}

func TestTrendPullback_TargetNearResistance(t *testing.T) {
	s := NewTrendPullback()
	// Resistance at 1.1000 leaves no clearance for a 2R target from 1.0992
	mctx := pullbackContext(model.TrendBull, model.MomentumNeutral, 0.0010,
		model.SwingLevels{Lows: []float64{1.0990}, Highs: []float64{1.1000}},
		1.0991, 1.0992, bearishBars(10, 1.0992))

	intent := s.Evaluate(mctx, Params{})

	if intent.ReasonCode != "TARGET_NEAR_RESISTANCE" {
		t.Errorf("Expected TARGET_NEAR_RESISTANCE, got %s (%s)", intent.ReasonCode, intent.Rationale)
	}
}

func TestTrendPullback_NoPullback(t *testing.T) {
	s := NewTrendPullback()
	// Bullish recent bars and no retracement from the swing high
	mctx := pullbackContext(model.TrendBull, model.MomentumNeutral, 0.0010,
		model.SwingLevels{Lows: []float64{1.0990}, Highs: []float64{1.0993}},
		1.0991, 1.0992, bullishBars(10, 1.0992))

	intent := s.Evaluate(mctx, Params{})

	if intent.ReasonCode != "NO_PULLBACK" {
		t.Errorf("Expected NO_PULLBACK, got %s (%s)", intent.ReasonCode, intent.Rationale)
	}
}

func TestTrendPullback_ShortSetup(t *testing.T) {
	s := NewTrendPullback()
	// Bear trend, price just below resistance, recent bullish pressure,
	// support far enough for the 2R target
	mctx := pullbackContext(model.TrendBear, model.MomentumNeutral, 0.0010,
		model.SwingLevels{Lows: []float64{1.0900}, Highs: []float64{1.1010}},
		1.1008, 1.1009, bullishBars(10, 1.1008))

	intent := s.Evaluate(mctx, Params{})

	if intent.Decision != DecisionSell {
		t.Fatalf("Expected SELL, got %s (%s: %s)", intent.Decision, intent.ReasonCode, intent.Rationale)
	}
	if intent.EntryPrice != 1.1008 {
		t.Errorf("Expected entry at bid 1.1008, got %f", intent.EntryPrice)
	}
	if intent.StopLoss <= intent.EntryPrice {
		t.Errorf("Expected stop above entry for a short, got stop=%f entry=%f",
			intent.StopLoss, intent.EntryPrice)
	}
	if intent.TakeProfit >= intent.EntryPrice {
		t.Errorf("Expected target below entry for a short, got target=%f entry=%f",
			intent.TakeProfit, intent.EntryPrice)
	}
	if !intent.HasTag(TagH1Bear) {
		t.Errorf("Expected %s tag, got %v", TagH1Bear, intent.Tags)
	}
}

func TestTrendPullback_EvaluateIsPure(t *testing.T) {
	s := NewTrendPullback()
	mctx := pullbackContext(model.TrendBull, model.MomentumNeutral, 0.0010,
		model.SwingLevels{Lows: []float64{1.0990}, Highs: []float64{1.1100}},
		1.0991, 1.0992, bearishBars(10, 1.0992))

	first := s.Evaluate(mctx, Params{})
	second := s.Evaluate(mctx, Params{})

	if first.Decision != second.Decision || first.EntryPrice != second.EntryPrice ||
		first.StopLoss != second.StopLoss || first.TakeProfit != second.TakeProfit {
		t.Errorf("Expected identical intents on repeated evaluation, got %+v then %+v", first, second)
	}
}
