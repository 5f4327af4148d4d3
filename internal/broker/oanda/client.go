package oanda

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"voyager/internal/broker"
	"voyager/internal/ratelimit"
	"voyager/internal/strategy"
	"voyager/pkg/model"
)

const (
	liveURL     = "https://api-fxtrade.oanda.com"
	practiceURL = "https://api-fxpractice.oanda.com"

	candleCount = 80
)

// Client talks to the OANDA v20 REST API. It implements both the
// broker.MarketData and broker.Executor contracts.
type Client struct {
	creds   Credentials
	baseURL string
	client  *http.Client
	limiter *ratelimit.Limiter
}

// NewClient creates an OANDA client
func NewClient(creds Credentials, perMinute int) *Client {
	baseURL := liveURL
	if creds.Practice {
		baseURL = practiceURL
	}
	if perMinute <= 0 {
		perMinute = 100
	}

	return &Client{
		creds:   creds,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
		limiter: ratelimit.NewLimiter("oanda", perMinute),
	}
}

// Name returns the provider name
func (c *Client) Name() string {
	return "oanda"
}

// IsAvailable reports whether credentials are configured
func (c *Client) IsAvailable() bool {
	return c.creds.APIToken != "" && c.creds.AccountID != ""
}

// Fetch returns fresh market data for the pair. Transport and API errors
// are wrapped in broker.ErrUnavailable so one unreachable pair never
// aborts a whole scan cycle.
func (c *Client) Fetch(ctx context.Context, pair string, timeframes []model.Timeframe) (*model.RawMarketData, error) {
	candles := make(map[model.Timeframe][]model.Candle, len(timeframes))
	for _, tf := range timeframes {
		series, err := c.fetchCandles(ctx, pair, tf)
		if err != nil {
			return nil, fmt.Errorf("%w: candles %s %s: %v", broker.ErrUnavailable, pair, tf, err)
		}
		candles[tf] = series
	}

	price, err := c.fetchPricing(ctx, pair)
	if err != nil {
		return nil, fmt.Errorf("%w: pricing %s: %v", broker.ErrUnavailable, pair, err)
	}

	account, err := c.fetchAccount(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: account: %v", broker.ErrUnavailable, err)
	}

	return &model.RawMarketData{
		Pair:    pair,
		Time:    time.Now().UTC(),
		Price:   price,
		Candles: candles,
		Account: *account,
	}, nil
}

// Execute submits a MARKET or LIMIT order with stop-loss/take-profit
// attached. Units must already be signed by side.
func (c *Client) Execute(ctx context.Context, pair string, intent strategy.TradeIntent, units float64) (*broker.ExecutionResult, error) {
	body := orderRequest{
		Order: orderBody{
			Type:         string(intent.EntryType),
			Instrument:   pair,
			Units:        strconv.FormatFloat(units, 'f', 0, 64),
			TimeInForce:  "FOK",
			PositionFill: "DEFAULT",
			ClientExtensions: &clientExtensions{
				ID:  "voyager-" + uuid.NewString(),
				Tag: intent.ReasonCode,
			},
		},
	}
	if intent.EntryType == strategy.EntryLimit {
		body.Order.Price = formatPrice(pair, intent.EntryPrice)
		body.Order.TimeInForce = "GTC"
	}
	if intent.StopLoss > 0 {
		body.Order.StopLossOnFill = &priceSpec{Price: formatPrice(pair, intent.StopLoss)}
	}
	if intent.TakeProfit > 0 {
		body.Order.TakeProfitOnFill = &priceSpec{Price: formatPrice(pair, intent.TakeProfit)}
	}

	var resp orderResponse
	path := fmt.Sprintf("/v3/accounts/%s/orders", c.creds.AccountID)
	if err := c.do(ctx, "POST", path, nil, body, &resp); err != nil {
		return nil, fmt.Errorf("submit order: %w", err)
	}

	result := &broker.ExecutionResult{
		Instrument:  pair,
		Units:       units,
		Status:      "submitted",
		SubmittedAt: time.Now().UTC(),
	}
	if resp.OrderCreateTransaction != nil {
		result.OrderID = resp.OrderCreateTransaction.ID
	}
	if resp.OrderCancelTransaction != nil {
		result.Status = "rejected"
		result.Message = resp.OrderCancelTransaction.Reason
	}
	if resp.OrderFillTransaction != nil {
		result.Status = "filled"
		result.FilledPrice = parseFloat(resp.OrderFillTransaction.Price)
		if resp.OrderFillTransaction.TradeOpened != nil {
			result.TradeID = resp.OrderFillTransaction.TradeOpened.TradeID
		}
	}
	return result, nil
}

// Cancel cancels a pending order
func (c *Client) Cancel(ctx context.Context, orderID string) error {
	path := fmt.Sprintf("/v3/accounts/%s/orders/%s/cancel", c.creds.AccountID, orderID)
	return c.do(ctx, "PUT", path, nil, nil, nil)
}

// Close closes an open trade
func (c *Client) Close(ctx context.Context, tradeID string) error {
	path := fmt.Sprintf("/v3/accounts/%s/trades/%s/close", c.creds.AccountID, tradeID)
	return c.do(ctx, "PUT", path, nil, nil, nil)
}

func (c *Client) fetchCandles(ctx context.Context, pair string, tf model.Timeframe) ([]model.Candle, error) {
	query := url.Values{}
	query.Set("granularity", string(tf))
	query.Set("count", strconv.Itoa(candleCount))
	query.Set("price", "M")

	var resp candlesResponse
	path := fmt.Sprintf("/v3/instruments/%s/candles", pair)
	if err := c.do(ctx, "GET", path, query, nil, &resp); err != nil {
		return nil, err
	}

	candles := make([]model.Candle, 0, len(resp.Candles))
	for _, rc := range resp.Candles {
		// Only complete candles with a positive close are usable
		if !rc.Complete {
			continue
		}
		closePrice := parseFloat(rc.Mid.C)
		if closePrice <= 0 {
			continue
		}
		t, err := time.Parse(time.RFC3339, rc.Time)
		if err != nil {
			continue
		}
		candles = append(candles, model.Candle{
			Time:     t,
			Open:     parseFloat(rc.Mid.O),
			High:     parseFloat(rc.Mid.H),
			Low:      parseFloat(rc.Mid.L),
			Close:    closePrice,
			Volume:   rc.Volume,
			Complete: true,
		})
	}
	return candles, nil
}

func (c *Client) fetchPricing(ctx context.Context, pair string) (model.PriceSnapshot, error) {
	query := url.Values{}
	query.Set("instruments", pair)

	var resp pricingResponse
	path := fmt.Sprintf("/v3/accounts/%s/pricing", c.creds.AccountID)
	if err := c.do(ctx, "GET", path, query, nil, &resp); err != nil {
		return model.PriceSnapshot{}, err
	}
	if len(resp.Prices) == 0 || len(resp.Prices[0].Bids) == 0 || len(resp.Prices[0].Asks) == 0 {
		return model.PriceSnapshot{}, fmt.Errorf("no pricing for %s", pair)
	}

	bid := parseFloat(resp.Prices[0].Bids[0].Price)
	ask := parseFloat(resp.Prices[0].Asks[0].Price)
	if bid <= 0 || ask <= 0 {
		return model.PriceSnapshot{}, fmt.Errorf("invalid pricing for %s: bid=%v ask=%v", pair, bid, ask)
	}
	return model.NewPriceSnapshot(bid, ask), nil
}

func (c *Client) fetchAccount(ctx context.Context) (*model.AccountSnapshot, error) {
	var resp accountResponse
	path := fmt.Sprintf("/v3/accounts/%s", c.creds.AccountID)
	if err := c.do(ctx, "GET", path, nil, nil, &resp); err != nil {
		return nil, err
	}

	acct := model.AccountSnapshot{
		Balance: parseFloat(resp.Account.Balance),
		// US accounts disallow hedging, which is the same-instrument
		// opposite-direction restriction the risk engine enforces
		FIFOConstraints: !resp.Account.HedgingEnabled,
	}

	for _, t := range resp.Account.Trades {
		acct.OpenTrades = append(acct.OpenTrades, model.OpenTrade{
			ID:            t.ID,
			Instrument:    t.Instrument,
			Units:         parseFloat(t.CurrentUnits),
			HasRiskOrders: t.StopLossOrder != nil || t.TakeProfitOrder != nil,
		})
	}

	for _, p := range resp.Account.Positions {
		long := parseFloat(p.Long.Units)
		short := parseFloat(p.Short.Units)
		if long == 0 && short == 0 {
			continue
		}
		acct.OpenPositions = append(acct.OpenPositions, model.Position{
			Instrument: p.Instrument,
			LongUnits:  long,
			ShortUnits: short,
		})
	}
	return &acct, nil
}

// do performs one rate-limited authenticated request
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.creds.APIToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		c.limiter.SignalRateLimited()
		log.Printf("[OANDA] Rate limited on %s %s", method, path)
		return fmt.Errorf("rate limited: %s", path)
	}
	c.limiter.ResetBackoff()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s failed: %d - %s", method, path, resp.StatusCode, string(data))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func formatPrice(pair string, price float64) string {
	// JPY pairs quote to 3 decimals, everything else to 5
	if model.PipSize(pair) == 0.01 {
		return strconv.FormatFloat(price, 'f', 3, 64)
	}
	return strconv.FormatFloat(price, 'f', 5, 64)
}
