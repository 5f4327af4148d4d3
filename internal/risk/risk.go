package risk

import (
	"fmt"
	"math"

	"voyager/internal/strategy"
	"voyager/pkg/model"
)

// Config holds the risk limits applied to every candidate trade
type Config struct {
	MaxRiskUSD          float64 `yaml:"max_risk_usd"`          // per-trade dollar risk cap
	MaxConcurrentTrades int     `yaml:"max_concurrent_trades"` // open trade ceiling
	MinRR               float64 `yaml:"min_rr"`                // minimum reward:risk
	MaxSpreadFraction   float64 `yaml:"max_spread_fraction"`   // spread ceiling as a fraction of stop distance
	DefaultUnits        float64 `yaml:"default_units"`         // unit size when the intent has no override
}

// DefaultConfig returns conservative default limits
func DefaultConfig() Config {
	return Config{
		MaxRiskUSD:          100,
		MaxConcurrentTrades: 3,
		MinRR:               1.2,
		MaxSpreadFraction:   0.25,
		DefaultUnits:        10000,
	}
}

// Result is the outcome of running all risk checks against one intent.
// Invariant: Passed == (len(Reasons) == 0). Numeric fields are always
// populated, 0 where undefined.
type Result struct {
	Passed  bool     `json:"passed"`
	Reasons []string `json:"reasons,omitempty"`
	SLPips  float64  `json:"sl_pips"`
	RR      float64  `json:"rr"`
	RiskUSD float64  `json:"risk_usd"`
}

// Engine validates trade intents against account state and configured
// limits. It accumulates every violated constraint instead of stopping at
// the first, so one cycle surfaces all problems at once.
type Engine struct {
	config Config
}

// NewEngine creates a risk engine
func NewEngine(cfg Config) *Engine {
	return &Engine{config: cfg}
}

// Check runs the full check sequence for one intent
func (e *Engine) Check(mctx *model.MarketContext, intent strategy.TradeIntent) Result {
	if intent.Decision == strategy.DecisionNoTrade {
		return Result{Reasons: []string{"no trade decision from strategy"}}
	}
	if !validPrice(intent.EntryPrice) || !validPrice(intent.StopLoss) || !validPrice(intent.TakeProfit) {
		return Result{Reasons: []string{fmt.Sprintf(
			"malformed prices: entry=%v stop=%v target=%v",
			intent.EntryPrice, intent.StopLoss, intent.TakeProfit)}}
	}

	pip := model.PipSize(mctx.Pair)
	stopDist := math.Abs(intent.EntryPrice - intent.StopLoss)
	slPips := stopDist / pip
	if stopDist <= 0 {
		return Result{Reasons: []string{"zero stop distance"}}
	}
	rr := math.Abs(intent.TakeProfit-intent.EntryPrice) / stopDist

	units := e.config.DefaultUnits
	if intent.Units > 0 {
		units = intent.Units
	}
	riskUSD := estimatePipValueUSD(mctx.Pair, intent.EntryPrice, units, pip) * slPips

	result := Result{SLPips: slPips, RR: rr, RiskUSD: riskUSD}

	if riskUSD > e.config.MaxRiskUSD {
		result.Reasons = append(result.Reasons, fmt.Sprintf(
			"estimated risk $%.2f exceeds the $%.2f per-trade cap", riskUSD, e.config.MaxRiskUSD))
	}

	if len(mctx.Account.OpenTrades) >= e.config.MaxConcurrentTrades {
		result.Reasons = append(result.Reasons, fmt.Sprintf(
			"open trade count %d at the %d concurrent limit",
			len(mctx.Account.OpenTrades), e.config.MaxConcurrentTrades))
	}

	if mctx.SpreadPips > e.config.MaxSpreadFraction*slPips {
		result.Reasons = append(result.Reasons, fmt.Sprintf(
			"spread %.1f pips exceeds %.0f%% of the %.1f pip stop distance",
			mctx.SpreadPips, e.config.MaxSpreadFraction*100, slPips))
	}

	if rr < e.config.MinRR {
		result.Reasons = append(result.Reasons, fmt.Sprintf(
			"reward:risk %.2f below the %.2f minimum", rr, e.config.MinRR))
	}

	candidateUnits := units
	if intent.Decision == strategy.DecisionSell {
		candidateUnits = -units
	}

	for _, trade := range mctx.Account.OpenTrades {
		if trade.Instrument != mctx.Pair {
			continue
		}
		if mctx.Account.FIFOConstraints && oppositeDirection(trade.Units, candidateUnits) {
			result.Reasons = append(result.Reasons, fmt.Sprintf(
				"FIFO conflict: opposite-direction trade %s already open on %s", trade.ID, mctx.Pair))
		}
		if math.Abs(trade.Units) == math.Abs(candidateUnits) && trade.HasRiskOrders {
			result.Reasons = append(result.Reasons, fmt.Sprintf(
				"FIFO size conflict: trade %s already uses %.0f units with live risk orders; try %.0f or %.0f",
				trade.ID, math.Abs(trade.Units), math.Abs(candidateUnits)-1, math.Abs(candidateUnits)+1))
		}
	}

	for _, pos := range mctx.Account.OpenPositions {
		if pos.Instrument == mctx.Pair && (pos.LongUnits != 0 || pos.ShortUnits != 0) {
			result.Reasons = append(result.Reasons, fmt.Sprintf(
				"position already open on %s (single position per pair)", mctx.Pair))
			break
		}
	}

	existing := usdExposureScore(mctx.Account.OpenTrades)
	candidate := tradeUSDExposure(mctx.Pair, candidateUnits)
	if existing > 0 && candidate > 0 {
		result.Reasons = append(result.Reasons, fmt.Sprintf(
			"correlated USD exposure: existing %+.0f, candidate %+.0f point the same direction",
			existing, candidate))
	}

	result.Passed = len(result.Reasons) == 0
	return result
}

// Units returns the signed unit size for an intent: the intent's
// override or the configured default, negative for SELL.
func (e *Engine) Units(intent strategy.TradeIntent) float64 {
	units := e.config.DefaultUnits
	if intent.Units > 0 {
		units = intent.Units
	}
	if intent.Decision == strategy.DecisionSell {
		return -units
	}
	return units
}

// estimatePipValueUSD approximates the dollar value of one pip for the
// given unit size. Pairs quoted in USD have a direct pip value; USD-base
// pairs divide through the price; crosses fall back to pip size x units.
// This is a known simplification kept on purpose: downstream thresholds
// were tuned against it.
func estimatePipValueUSD(pair string, price, units, pip float64) float64 {
	switch {
	case model.QuoteCurrency(pair) == "USD":
		return pip * units
	case model.BaseCurrency(pair) == "USD" && price > 0:
		return pip * units / price
	default:
		return pip * units
	}
}

// usdExposureScore sums a simple directional dollar-exposure score over
// open trades: +1 per USD-base long-equivalent, -1 per USD-quote
// exposure, signed by trade direction.
func usdExposureScore(trades []model.OpenTrade) float64 {
	var score float64
	for _, t := range trades {
		score += tradeUSDExposure(t.Instrument, t.Units)
	}
	return score
}

func tradeUSDExposure(pair string, units float64) float64 {
	sign := 1.0
	if units < 0 {
		sign = -1
	}
	switch {
	case model.BaseCurrency(pair) == "USD":
		return sign
	case model.QuoteCurrency(pair) == "USD":
		return -sign
	default:
		return 0
	}
}

func oppositeDirection(a, b float64) bool {
	return (a > 0 && b < 0) || (a < 0 && b > 0)
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsInf(p, 0) && !math.IsNaN(p)
}
