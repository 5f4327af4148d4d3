package strategy

import (
	"voyager/pkg/model"
)

// Decision is the three-way outcome of one strategy evaluation
type Decision string

const (
	DecisionBuy     Decision = "BUY"
	DecisionSell    Decision = "SELL"
	DecisionNoTrade Decision = "NO_TRADE"
)

// EntryType determines how the order is placed
type EntryType string

const (
	EntryMarket EntryType = "MARKET"
	EntryLimit  EntryType = "LIMIT"
)

// Common intent tags strategies attach to their output
const (
	TagRangeFade = "RANGE_FADE"
	TagH1Bull    = "H1_BULL"
	TagH1Bear    = "H1_BEAR"
)

// TradeIntent is what a strategy produces for one pair in one cycle.
// Entry, stop and target are required when the decision is not NO_TRADE.
type TradeIntent struct {
	Decision   Decision           `json:"decision"`
	EntryType  EntryType          `json:"entry_type,omitempty"`
	EntryPrice float64            `json:"entry_price,omitempty"`
	StopLoss   float64            `json:"stop_loss,omitempty"`
	TakeProfit float64            `json:"take_profit,omitempty"`
	Units      float64            `json:"units,omitempty"` // optional override
	ReasonCode string             `json:"reason_code"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
	Rationale  string             `json:"rationale"`
	Tags       []string           `json:"tags,omitempty"`
}

// HasTag reports whether the intent carries the given tag
func (t TradeIntent) HasTag(tag string) bool {
	for _, v := range t.Tags {
		if v == tag {
			return true
		}
	}
	return false
}

// NoTrade builds a rejection intent with a machine-readable code
func NoTrade(code, rationale string) TradeIntent {
	return TradeIntent{
		Decision:   DecisionNoTrade,
		ReasonCode: code,
		Rationale:  rationale,
	}
}

// Params is a named set of tunable knobs supplied by configuration.
// Boolean knobs are encoded as 0/1.
type Params map[string]float64

// Get returns the named parameter or the fallback when absent
func (p Params) Get(name string, fallback float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return fallback
}

// Bool treats a parameter as a flag (anything non-zero is true)
func (p Params) Bool(name string, fallback bool) bool {
	v, ok := p[name]
	if !ok {
		return fallback
	}
	return v != 0
}

// ParamDef describes one tunable knob of a plugin
type ParamDef struct {
	Name        string  `json:"name"`
	Default     float64 `json:"default"`
	Description string  `json:"description"`
}

// Plugin defines the interface for strategy plugins.
// Evaluate must be a pure, deterministic function of its inputs: no I/O,
// no hidden state, identical output for identical input.
type Plugin interface {
	// ID is the stable identifier used for registry lookup
	ID() string

	// Name is the human-readable strategy name
	Name() string

	// Version of the plugin implementation
	Version() string

	// RequiredTimeframes lists the candle series Evaluate needs
	RequiredTimeframes() []model.Timeframe

	// ParamSchema describes the tunable knobs and their defaults
	ParamSchema() []ParamDef

	// Evaluate maps a market snapshot plus parameters to a trade intent
	Evaluate(mctx *model.MarketContext, params Params) TradeIntent
}
