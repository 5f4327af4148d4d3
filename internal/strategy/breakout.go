package strategy

import (
	"voyager/pkg/model"
)

// Breakout is a contract-complete placeholder. It always returns NO_TRADE
// and exists to prove the plugin interface supports additional strategies
// without orchestrator changes.
type Breakout struct{}

// NewBreakout creates the breakout stub plugin
func NewBreakout() *Breakout {
	return &Breakout{}
}

func (s *Breakout) ID() string      { return "breakout_v1" }
func (s *Breakout) Name() string    { return "Breakout (stub)" }
func (s *Breakout) Version() string { return "0.1.0" }

func (s *Breakout) RequiredTimeframes() []model.Timeframe {
	return []model.Timeframe{model.TimeframeM15, model.TimeframeH1}
}

func (s *Breakout) ParamSchema() []ParamDef {
	return nil
}

// Evaluate always declines; the breakout logic is not implemented yet
func (s *Breakout) Evaluate(mctx *model.MarketContext, params Params) TradeIntent {
	return NoTrade("NOT_IMPLEMENTED", "breakout strategy is a placeholder")
}
