package model

import (
	"strings"
	"time"
)

// Timeframe identifies a candle granularity
type Timeframe string

const (
	TimeframeM15 Timeframe = "M15"
	TimeframeH1  Timeframe = "H1"
)

// Candle represents a single candlestick (OHLCV data).
// Only complete candles are usable for analysis.
type Candle struct {
	Time     time.Time `json:"time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   int64     `json:"volume"`
	Complete bool      `json:"complete"`
}

// PriceSnapshot is the current bid/ask for a pair
type PriceSnapshot struct {
	Bid float64 `json:"bid"`
	Ask float64 `json:"ask"`
	Mid float64 `json:"mid"`
}

// NewPriceSnapshot derives the mid from bid/ask
func NewPriceSnapshot(bid, ask float64) PriceSnapshot {
	return PriceSnapshot{Bid: bid, Ask: ask, Mid: (bid + ask) / 2}
}

// Position is a net unit exposure on one instrument
type Position struct {
	Instrument string  `json:"instrument"`
	LongUnits  float64 `json:"long_units"`
	ShortUnits float64 `json:"short_units"` // negative or zero
}

// OpenTrade is a single open trade with FIFO-relevant metadata
type OpenTrade struct {
	ID            string  `json:"id"`
	Instrument    string  `json:"instrument"`
	Units         float64 `json:"units"` // signed: positive long, negative short
	HasRiskOrders bool    `json:"has_risk_orders"`
}

// AccountSnapshot is the account state at fetch time
type AccountSnapshot struct {
	Balance         float64     `json:"balance"`
	OpenPositions   []Position  `json:"open_positions"`
	OpenTrades      []OpenTrade `json:"open_trades"`
	FIFOConstraints bool        `json:"fifo_constraints"`
}

// TrendState classifies the H1 trend
type TrendState string

const (
	TrendBull  TrendState = "BULL"
	TrendBear  TrendState = "BEAR"
	TrendRange TrendState = "RANGE"
)

// MomentumState classifies M15 momentum
type MomentumState string

const (
	MomentumStrongUp   MomentumState = "STRONG_UP"
	MomentumStrongDown MomentumState = "STRONG_DOWN"
	MomentumNeutral    MomentumState = "NEUTRAL"
)

// SwingLevels holds recent local extrema (most recent last, at most 8 each)
type SwingLevels struct {
	Highs []float64 `json:"highs"`
	Lows  []float64 `json:"lows"`
}

// IndicatorBundle is the derived volatility/trend/momentum/S-R summary
type IndicatorBundle struct {
	ATRM15      float64       `json:"atr_m15"`
	ATRH1       float64       `json:"atr_h1"`
	SwingsM15   SwingLevels   `json:"swings_m15"`
	TrendH1     TrendState    `json:"trend_h1"`
	MomentumM15 MomentumState `json:"momentum_m15"`
}

// RawMarketData is what a market data provider returns per pair
type RawMarketData struct {
	Pair    string                 `json:"pair"`
	Time    time.Time              `json:"time"`
	Price   PriceSnapshot          `json:"price"`
	Candles map[Timeframe][]Candle `json:"candles"`
	Account AccountSnapshot        `json:"account"`
}

// MarketContext is the immutable per-pair view one strategy evaluation
// and one risk check consume. Constructed fresh each cycle.
type MarketContext struct {
	Pair       string                 `json:"pair"`
	Time       time.Time              `json:"time"`
	Price      PriceSnapshot          `json:"price"`
	SpreadPips float64                `json:"spread_pips"`
	Candles    map[Timeframe][]Candle `json:"candles"`
	Indicators IndicatorBundle        `json:"indicators"`
	Account    AccountSnapshot        `json:"account"`
}

// PipSize returns the conventional pip increment for a pair:
// 0.01 for JPY-quoted pairs, 0.0001 otherwise.
func PipSize(pair string) float64 {
	if strings.HasSuffix(strings.ToUpper(pair), "JPY") {
		return 0.01
	}
	return 0.0001
}

// SpreadPips converts a bid/ask spread to pips for the pair
func SpreadPips(pair string, price PriceSnapshot) float64 {
	return (price.Ask - price.Bid) / PipSize(pair)
}

// QuoteCurrency returns the quote side of a pair like "EUR_USD" or "EURUSD"
func QuoteCurrency(pair string) string {
	p := strings.ToUpper(pair)
	if i := strings.IndexAny(p, "_/-"); i >= 0 && len(p) > i+1 {
		return p[i+1:]
	}
	if len(p) >= 6 {
		return p[len(p)-3:]
	}
	return ""
}

// BaseCurrency returns the base side of a pair
func BaseCurrency(pair string) string {
	p := strings.ToUpper(pair)
	if i := strings.IndexAny(p, "_/-"); i > 0 {
		return p[:i]
	}
	if len(p) >= 6 {
		return p[:3]
	}
	return ""
}
