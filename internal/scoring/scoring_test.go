package scoring

import (
	"math"
	"testing"

	"voyager/internal/strategy"
	"voyager/pkg/model"
)

func buyIntent(entry, stop, target float64) strategy.TradeIntent {
	return strategy.TradeIntent{
		Decision:   strategy.DecisionBuy,
		EntryType:  strategy.EntryMarket,
		EntryPrice: entry,
		StopLoss:   stop,
		TakeProfit: target,
	}
}

// neutralContext has no trend, no swings and no ATR, so only the RR and
// spread components move the score
func neutralContext(spreadPips float64) *model.MarketContext {
	return &model.MarketContext{
		Pair:       "EUR_USD",
		SpreadPips: spreadPips,
		Indicators: model.IndicatorBundle{
			TrendH1:     model.TrendRange,
			MomentumM15: model.MomentumNeutral,
		},
	}
}

func TestCalculate_RRSteps(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	// With zero trend, full spread score and neutral S-R the score is
	// rrScore*0.4 + 0*0.3 + 1.0*0.2 + 0.5*0.1
	tests := []struct {
		name   string
		target float64 // against a 20 pip stop from 1.1000
		want   float64
	}{
		{"rr 2.0 scores the full step", 1.1040, 65.00},
		{"rr 1.6 scores the 0.8 step", 1.1032, 57.00},
		{"rr 1.3 scores the 0.5 step", 1.1026, 45.00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := engine.Calculate(buyIntent(1.1000, 1.0980, tt.target), neutralContext(0))
			if !result.Passed {
				t.Fatalf("Expected pass, got %v", result.RejectionReasons)
			}
			if result.Score != tt.want {
				t.Errorf("Expected score %.2f, got %.2f", tt.want, result.Score)
			}
		})
	}
}

func TestCalculate_RRFloor(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	// 22 pip target on a 20 pip stop is RR 1.1, under the floor
	result := engine.Calculate(buyIntent(1.1000, 1.0980, 1.1022), neutralContext(0))

	if result.Passed {
		t.Fatal("Expected rejection below the RR floor")
	}
	if math.Abs(result.RR-1.1) > 1e-6 {
		t.Errorf("Expected RR 1.1 reported on rejection, got %f", result.RR)
	}
}

func TestCalculate_HardRejects(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	cases := []struct {
		name   string
		intent strategy.TradeIntent
		spread float64
	}{
		{"no trade", strategy.NoTrade("NOT_TRENDING", "range"), 0},
		{"malformed entry", buyIntent(0, 1.0980, 1.1040), 0},
		{"zero stop distance", buyIntent(1.1000, 1.1000, 1.1040), 0},
		{"spread past ceiling", buyIntent(1.1000, 1.0980, 1.1040), 7}, // 35% of the stop
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := engine.Calculate(tc.intent, neutralContext(tc.spread))
			if result.Passed {
				t.Fatal("Expected rejection")
			}
			if len(result.RejectionReasons) == 0 {
				t.Error("Expected a rejection reason")
			}
		})
	}
}

func TestCalculate_SpreadBands(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	intent := buyIntent(1.1000, 1.0980, 1.1040) // rr 2.0, 20 pip stop

	// 2 pips is 10% of the stop, inside the tight band
	tight := engine.Calculate(intent, neutralContext(2))
	// 5 pips is 25%, in the acceptable band scoring 0.7
	loose := engine.Calculate(intent, neutralContext(5))

	if !tight.Passed || !loose.Passed {
		t.Fatal("Expected both spreads to pass")
	}
	if tight.Score != 65.00 {
		t.Errorf("Expected tight spread score 65.00, got %.2f", tight.Score)
	}
	if loose.Score != 59.00 {
		t.Errorf("Expected loose spread score 59.00, got %.2f", loose.Score)
	}
}

func TestCalculate_TrendClarity(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	intent := buyIntent(1.1000, 1.0980, 1.1040)

	aligned := neutralContext(0)
	aligned.Indicators.TrendH1 = model.TrendBull
	aligned.Indicators.MomentumM15 = model.MomentumStrongUp

	partial := neutralContext(0)
	partial.Indicators.TrendH1 = model.TrendBull

	alignedResult := engine.Calculate(intent, aligned)
	partialResult := engine.Calculate(intent, partial)

	if alignedResult.Score != 95.00 {
		t.Errorf("Expected aligned trend score 95.00, got %.2f", alignedResult.Score)
	}
	if partialResult.Score != 80.00 {
		t.Errorf("Expected partial trend score 80.00, got %.2f", partialResult.Score)
	}
}

func TestCalculate_SRQuality(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	intent := buyIntent(1.1000, 1.0985, 1.1040)

	// Swing low between stop and entry gives the stop half an ATR of room
	mctx := neutralContext(0)
	mctx.Indicators.ATRM15 = 0.0010
	mctx.Indicators.SwingsM15 = model.SwingLevels{Lows: []float64{1.0990}}

	result := engine.Calculate(intent, mctx)
	if !result.Passed {
		t.Fatalf("Expected pass, got %v", result.RejectionReasons)
	}
	// sr = clamp01(0.5 + (1.0990-1.0985)/0.0010) = 1.0, adding a full
	// 0.1 over the neutral baseline's 0.05
	if result.Score != 70.00 {
		t.Errorf("Expected score 70.00 with a protected stop, got %.2f", result.Score)
	}
}

func TestCalculate_RangeFadeBoost(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	intent := buyIntent(1.1000, 1.0980, 1.1040)
	intent.Tags = []string{strategy.TagRangeFade}
	intent.Metrics = map[string]float64{
		"fade_atr_stability":      1,
		"fade_boundary_proximity": 1,
		"fade_touch_density":      1,
		"fade_rsi_edge":           1,
	}

	boosted := engine.Calculate(intent, neutralContext(0))
	if boosted.Score != 90.00 {
		t.Errorf("Expected full boost score 90.00, got %.2f", boosted.Score)
	}

	intent.Metrics = map[string]float64{
		"fade_atr_stability":      0.5,
		"fade_boundary_proximity": 0.5,
		"fade_touch_density":      0.5,
		"fade_rsi_edge":           0.5,
	}
	half := engine.Calculate(intent, neutralContext(0))
	if half.Score != 77.50 {
		t.Errorf("Expected half boost score 77.50, got %.2f", half.Score)
	}

	// Out-of-range metrics clamp instead of inflating the boost
	intent.Metrics = map[string]float64{
		"fade_atr_stability":      5,
		"fade_boundary_proximity": 5,
		"fade_touch_density":      5,
		"fade_rsi_edge":           5,
	}
	clamped := engine.Calculate(intent, neutralContext(0))
	if clamped.Score != 90.00 {
		t.Errorf("Expected clamped boost score 90.00, got %.2f", clamped.Score)
	}

	// The boost never applies without the tag
	intent.Tags = nil
	plain := engine.Calculate(intent, neutralContext(0))
	if plain.Score != 65.00 {
		t.Errorf("Expected unboosted score 65.00, got %.2f", plain.Score)
	}
}
