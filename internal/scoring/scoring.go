package scoring

import (
	"fmt"
	"math"

	"voyager/internal/strategy"
	"voyager/pkg/model"
)

// Weights control how the four sub-scores combine into the final score
type Weights struct {
	RR     float64 `yaml:"rr"`
	Trend  float64 `yaml:"trend"`
	Spread float64 `yaml:"spread"`
	SR     float64 `yaml:"sr"`
}

// DefaultWeights returns the standard weighting
func DefaultWeights() Weights {
	return Weights{RR: 0.4, Trend: 0.3, Spread: 0.2, SR: 0.1}
}

// Config holds scoring thresholds separate from the risk engine's own
type Config struct {
	Weights           Weights `yaml:"weights"`
	MaxSpreadFraction float64 `yaml:"max_spread_fraction"` // hard-reject spread ceiling as fraction of stop distance
}

// DefaultConfig returns the default scoring configuration
func DefaultConfig() Config {
	return Config{
		Weights:           DefaultWeights(),
		MaxSpreadFraction: 0.30,
	}
}

// Result ranks one risk-approved intent by trade quality.
// Invariant: Passed == (len(RejectionReasons) == 0); Score is only
// meaningful when Passed.
type Result struct {
	Passed           bool     `json:"passed"`
	Score            float64  `json:"score"` // 0-100, 2 decimals
	RR               float64  `json:"rr"`
	RejectionReasons []string `json:"rejection_reasons,omitempty"`
}

// rangeFadeBoostCap bounds the additive boost for range-fade intents
const rangeFadeBoostCap = 0.25

// Engine computes the weighted quality score with hard rejection filters
type Engine struct {
	config Config
}

// NewEngine creates a scoring engine
func NewEngine(cfg Config) *Engine {
	return &Engine{config: cfg}
}

// Calculate scores one intent against its market context
func (e *Engine) Calculate(intent strategy.TradeIntent, mctx *model.MarketContext) Result {
	if intent.Decision == strategy.DecisionNoTrade {
		return reject("no trade decision from strategy")
	}
	if !validPrice(intent.EntryPrice) || !validPrice(intent.StopLoss) || !validPrice(intent.TakeProfit) {
		return reject(fmt.Sprintf("malformed prices: entry=%v stop=%v target=%v",
			intent.EntryPrice, intent.StopLoss, intent.TakeProfit))
	}

	stopDist := math.Abs(intent.EntryPrice - intent.StopLoss)
	if stopDist <= 0 {
		return reject("zero stop distance")
	}
	rr := math.Abs(intent.TakeProfit-intent.EntryPrice) / stopDist

	// Step-normalized RR; anything under 1.2 is not worth scoring
	var rrScore float64
	switch {
	case rr >= 2.0:
		rrScore = 1.0
	case rr >= 1.5:
		rrScore = 0.8
	case rr >= 1.2:
		rrScore = 0.5
	default:
		r := reject(fmt.Sprintf("reward:risk %.2f below the 1.2 scoring floor", rr))
		r.RR = rr
		return r
	}

	slPips := stopDist / model.PipSize(mctx.Pair)
	spreadRatio := 0.0
	if slPips > 0 {
		spreadRatio = mctx.SpreadPips / slPips
	}

	// Spread quality bands: tight spread scores full, acceptable scores
	// 0.7, anything past the ceiling is a hard reject
	var spreadScore float64
	switch {
	case spreadRatio <= e.config.MaxSpreadFraction/2:
		spreadScore = 1.0
	case spreadRatio <= e.config.MaxSpreadFraction:
		spreadScore = 0.7
	default:
		r := reject(fmt.Sprintf("spread is %.0f%% of the stop distance, past the %.0f%% ceiling",
			spreadRatio*100, e.config.MaxSpreadFraction*100))
		r.RR = rr
		return r
	}

	trendScore := trendClarity(mctx.Indicators, intent.Decision)
	srScore := srQuality(intent, mctx)

	w := e.config.Weights
	score := rrScore*w.RR + trendScore*w.Trend + spreadScore*w.Spread + srScore*w.SR

	if intent.HasTag(strategy.TagRangeFade) {
		score += rangeFadeBoost(intent.Metrics)
	}

	score = clamp01(score)
	return Result{
		Passed: true,
		Score:  math.Round(score*100*100) / 100,
		RR:     rr,
	}
}

// trendClarity scores agreement between the H1 trend and M15 momentum:
// strong agreement gets full marks, a RANGE trend none, everything else
// is neutral.
func trendClarity(ind model.IndicatorBundle, decision strategy.Decision) float64 {
	if ind.TrendH1 == model.TrendRange {
		return 0
	}
	bullAligned := ind.TrendH1 == model.TrendBull && ind.MomentumM15 == model.MomentumStrongUp &&
		decision == strategy.DecisionBuy
	bearAligned := ind.TrendH1 == model.TrendBear && ind.MomentumM15 == model.MomentumStrongDown &&
		decision == strategy.DecisionSell
	if bullAligned || bearAligned {
		return 1.0
	}
	return 0.5
}

// srQuality favors stops with breathing room beyond the nearest swing
// level on the stop side. A stop right at the level is neutral (0.5);
// each ATR of room beyond it adds, a stop inside the level subtracts.
func srQuality(intent strategy.TradeIntent, mctx *model.MarketContext) float64 {
	atr := mctx.Indicators.ATRM15
	if atr <= 0 {
		return 0.5
	}

	var level float64
	found := false
	if intent.Decision == strategy.DecisionBuy {
		for _, lv := range mctx.Indicators.SwingsM15.Lows {
			if lv < intent.EntryPrice && (!found || lv > level) {
				level, found = lv, true
			}
		}
		if !found {
			return 0.5
		}
		return clamp01(0.5 + (level-intent.StopLoss)/atr)
	}

	for _, lv := range mctx.Indicators.SwingsM15.Highs {
		if lv > intent.EntryPrice && (!found || lv < level) {
			level, found = lv, true
		}
	}
	if !found {
		return 0.5
	}
	return clamp01(0.5 + (intent.StopLoss-level)/atr)
}

// rangeFadeBoost reads the diagnostic sub-scores the range-fade strategy
// attached to its metrics and converts them into a bounded additive boost
func rangeFadeBoost(metrics map[string]float64) float64 {
	if metrics == nil {
		return 0
	}
	keys := []string{"fade_atr_stability", "fade_boundary_proximity", "fade_touch_density", "fade_rsi_edge"}
	var sum float64
	for _, k := range keys {
		sum += clamp01(metrics[k])
	}
	return rangeFadeBoostCap * sum / float64(len(keys))
}

func reject(reason string) Result {
	return Result{RejectionReasons: []string{reason}}
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

func validPrice(p float64) bool {
	return p > 0 && !math.IsInf(p, 0) && !math.IsNaN(p)
}
