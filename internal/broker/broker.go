package broker

import (
	"context"
	"errors"
	"time"

	"voyager/internal/strategy"
	"voyager/pkg/model"
)

// ErrUnavailable signals that market data for a pair could not be
// supplied right now. It is a normal, non-fatal per-pair outcome: the
// scanner records it and moves on to the next pair.
var ErrUnavailable = errors.New("market data unavailable")

// MarketData supplies everything one pair evaluation needs: complete
// candles per requested timeframe, current bid/ask, and account state.
type MarketData interface {
	// Name returns the provider name
	Name() string

	// Fetch returns fresh market data for the pair, or ErrUnavailable
	Fetch(ctx context.Context, pair string, timeframes []model.Timeframe) (*model.RawMarketData, error)
}

// ExecutionResult is the opaque outcome of an order submission
type ExecutionResult struct {
	OrderID     string    `json:"order_id"`
	TradeID     string    `json:"trade_id,omitempty"`
	Instrument  string    `json:"instrument"`
	Units       float64   `json:"units"` // signed: positive BUY, negative SELL
	FilledPrice float64   `json:"filled_price,omitempty"`
	Status      string    `json:"status"` // submitted, filled, rejected, simulated
	Message     string    `json:"message,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Executor submits, cancels and closes orders against a broker.
// Units are signed by side: positive for BUY, negative for SELL.
type Executor interface {
	// Execute submits a MARKET or LIMIT order for the intent, attaching
	// its stop-loss and take-profit when present
	Execute(ctx context.Context, pair string, intent strategy.TradeIntent, units float64) (*ExecutionResult, error)

	// Cancel cancels a pending order
	Cancel(ctx context.Context, orderID string) error

	// Close closes an open trade
	Close(ctx context.Context, tradeID string) error
}
