package oanda

// Credentials for the OANDA v20 REST API
type Credentials struct {
	APIToken  string `yaml:"api_token"`
	AccountID string `yaml:"account_id"`
	Practice  bool   `yaml:"practice"` // practice vs live endpoint
}

// candlesResponse is the payload of GET /v3/instruments/{i}/candles
type candlesResponse struct {
	Instrument  string      `json:"instrument"`
	Granularity string      `json:"granularity"`
	Candles     []rawCandle `json:"candles"`
}

type rawCandle struct {
	Time     string     `json:"time"`
	Volume   int64      `json:"volume"`
	Complete bool       `json:"complete"`
	Mid      candleOHLC `json:"mid"`
}

type candleOHLC struct {
	O string `json:"o"`
	H string `json:"h"`
	L string `json:"l"`
	C string `json:"c"`
}

// pricingResponse is the payload of GET /v3/accounts/{id}/pricing
type pricingResponse struct {
	Prices []rawPrice `json:"prices"`
}

type rawPrice struct {
	Instrument string       `json:"instrument"`
	Bids       []priceLevel `json:"bids"`
	Asks       []priceLevel `json:"asks"`
}

type priceLevel struct {
	Price     string `json:"price"`
	Liquidity int64  `json:"liquidity"`
}

// accountResponse is the payload of GET /v3/accounts/{id}
type accountResponse struct {
	Account rawAccount `json:"account"`
}

type rawAccount struct {
	ID                          string        `json:"id"`
	Balance                     string        `json:"balance"`
	HedgingEnabled              bool          `json:"hedgingEnabled"`
	GuaranteedStopLossOrderMode string        `json:"guaranteedStopLossOrderMode"`
	Trades                      []rawTrade    `json:"trades"`
	Positions                   []rawPosition `json:"positions"`
}

type rawTrade struct {
	ID              string    `json:"id"`
	Instrument      string    `json:"instrument"`
	CurrentUnits    string    `json:"currentUnits"`
	StopLossOrder   *orderRef `json:"stopLossOrder,omitempty"`
	TakeProfitOrder *orderRef `json:"takeProfitOrder,omitempty"`
}

type orderRef struct {
	ID    string `json:"id"`
	Price string `json:"price"`
}

type rawPosition struct {
	Instrument string       `json:"instrument"`
	Long       positionSide `json:"long"`
	Short      positionSide `json:"short"`
}

type positionSide struct {
	Units string `json:"units"`
}

// orderRequest is the payload of POST /v3/accounts/{id}/orders
type orderRequest struct {
	Order orderBody `json:"order"`
}

type orderBody struct {
	Type             string            `json:"type"` // MARKET or LIMIT
	Instrument       string            `json:"instrument"`
	Units            string            `json:"units"` // signed
	Price            string            `json:"price,omitempty"`
	TimeInForce      string            `json:"timeInForce"`
	PositionFill     string            `json:"positionFill"`
	StopLossOnFill   *priceSpec        `json:"stopLossOnFill,omitempty"`
	TakeProfitOnFill *priceSpec        `json:"takeProfitOnFill,omitempty"`
	ClientExtensions *clientExtensions `json:"clientExtensions,omitempty"`
}

type priceSpec struct {
	Price string `json:"price"`
}

type clientExtensions struct {
	ID  string `json:"id"`
	Tag string `json:"tag,omitempty"`
}

// orderResponse is the payload returned by order submission
type orderResponse struct {
	OrderCreateTransaction *transaction `json:"orderCreateTransaction,omitempty"`
	OrderFillTransaction   *fillTx      `json:"orderFillTransaction,omitempty"`
	OrderCancelTransaction *transaction `json:"orderCancelTransaction,omitempty"`
	ErrorMessage           string       `json:"errorMessage,omitempty"`
}

type transaction struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Reason string `json:"reason,omitempty"`
}

type fillTx struct {
	ID            string       `json:"id"`
	Price         string       `json:"price"`
	TradeOpened   *tradeOpened `json:"tradeOpened,omitempty"`
}

type tradeOpened struct {
	TradeID string `json:"tradeID"`
	Units   string `json:"units"`
}
