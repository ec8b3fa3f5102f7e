package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/sector-fi/barter-mono/pkg/execution"
	"github.com/sector-fi/barter-mono/pkg/instrument"
)

// Config selects the API family and carries the traded instrument set.
// Credentials are read from the environment: BINANCE_API_KEY/BINANCE_SECRET
// for live, BINANCE_TEST_API_KEY/BINANCE_TEST_SECRET for testnet.
type Config struct {
	Exchange    instrument.Exchange
	Market      Market
	Live        bool
	Instruments []instrument.Instrument
	// TimestampSkew is subtracted from the local clock when stamping
	// signed requests, absorbing clock drift ahead of the venue.
	TimestampSkew time.Duration
	RecvWindow    time.Duration
	Log           zerolog.Logger
}

// Client is the Binance execution client. Safe for concurrent use: resty and
// the rate limiter are internally synchronized and the instrument map is
// read-only after construction.
type Client struct {
	exchange   instrument.Exchange
	market     Market
	live       bool
	rest       *resty.Client
	wsHost     string
	apiKey     string
	apiSecret  string
	skew       time.Duration
	recvWindow time.Duration
	limiter    *rate.Limiter
	bySymbol   map[string]instrument.Instrument
	log        zerolog.Logger
}

// New builds the client, resolving hosts and credentials from cfg. It fails
// when the required credential env vars are unset.
func New(cfg Config) (*Client, error) {
	apiKey, apiSecret, err := credentials(cfg.Live)
	if err != nil {
		return nil, err
	}

	exchange := cfg.Exchange
	if exchange == "" {
		exchange = instrument.Exchange("binance_" + string(cfg.Market))
	}
	if cfg.RecvWindow == 0 {
		cfg.RecvWindow = 5 * time.Second
	}

	bySymbol := make(map[string]instrument.Instrument, len(cfg.Instruments))
	for _, inst := range cfg.Instruments {
		bySymbol[inst.VenueSymbol()] = inst
	}

	rest := resty.New().
		SetBaseURL(restHost(cfg.Market, cfg.Live)).
		SetTimeout(10 * time.Second).
		SetHeader("X-MBX-APIKEY", apiKey)

	return &Client{
		exchange:   exchange,
		market:     cfg.Market,
		live:       cfg.Live,
		rest:       rest,
		wsHost:     wsHost(cfg.Market, cfg.Live),
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		skew:       cfg.TimestampSkew,
		recvWindow: cfg.RecvWindow,
		limiter:    rate.NewLimiter(rate.Limit(20), 40),
		bySymbol:   bySymbol,
		log:        cfg.Log.With().Str("component", "binance").Str("market", string(cfg.Market)).Logger(),
	}, nil
}

func credentials(live bool) (string, string, error) {
	keyVar, secretVar := "BINANCE_TEST_API_KEY", "BINANCE_TEST_SECRET"
	if live {
		keyVar, secretVar = "BINANCE_API_KEY", "BINANCE_SECRET"
	}
	apiKey, apiSecret := os.Getenv(keyVar), os.Getenv(secretVar)
	if apiKey == "" || apiSecret == "" {
		return "", "", fmt.Errorf("%s and %s must be set", keyVar, secretVar)
	}
	return apiKey, apiSecret, nil
}

func restHost(market Market, live bool) string {
	switch {
	case market == MarketSpot && live:
		return "https://api.binance.com"
	case market == MarketSpot:
		return "https://testnet.binance.vision"
	case live:
		return "https://fapi.binance.com"
	default:
		return "https://testnet.binancefuture.com"
	}
}

func wsHost(market Market, live bool) string {
	switch {
	case market == MarketSpot && live:
		return "wss://stream.binance.com:9443"
	case market == MarketSpot:
		return "wss://testnet.binance.vision"
	case live:
		return "wss://fstream.binance.com"
	default:
		return "wss://fstream.binancefuture.com"
	}
}

// path maps a logical endpoint onto the spot or futures API family.
func (c *Client) path(endpoint string) string {
	if c.market == MarketSpot {
		switch endpoint {
		case "order":
			return "/api/v3/order"
		case "openOrders":
			return "/api/v3/openOrders"
		case "allOpenOrders":
			return "/api/v3/openOrders"
		case "account":
			return "/api/v3/account"
		case "listenKey":
			return "/api/v3/userDataStream"
		}
	}
	switch endpoint {
	case "order":
		return "/fapi/v1/order"
	case "openOrders":
		return "/fapi/v1/openOrders"
	case "allOpenOrders":
		return "/fapi/v1/allOpenOrders"
	case "account":
		return "/fapi/v2/balance"
	case "listenKey":
		return "/fapi/v1/listenKey"
	}
	panic("unknown binance endpoint " + endpoint)
}

// Exchange implements execution.Client.
func (c *Client) Exchange() instrument.Exchange { return c.exchange }

// sign computes the hex HMAC-SHA256 signature over the encoded query string.
func (c *Client) sign(query string) string {
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

// timestamp stamps signed requests in venue milliseconds, minus the skew.
func (c *Client) timestamp() int64 {
	return time.Now().Add(-c.skew).UnixMilli()
}

// doSigned executes a signed private request and returns the response body.
func (c *Client) doSigned(ctx context.Context, method, endpoint string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, execution.SocketError(err)
	}

	params.Set("timestamp", strconv.FormatInt(c.timestamp(), 10))
	params.Set("recvWindow", strconv.FormatInt(c.recvWindow.Milliseconds(), 10))
	query := params.Encode()
	query += "&signature=" + c.sign(query)

	request := c.rest.R().SetContext(ctx).SetQueryString(query)
	var (
		response *resty.Response
		err      error
	)
	switch method {
	case resty.MethodGet:
		response, err = request.Get(c.path(endpoint))
	case resty.MethodPost:
		response, err = request.Post(c.path(endpoint))
	case resty.MethodDelete:
		response, err = request.Delete(c.path(endpoint))
	default:
		panic("unsupported method " + method)
	}
	if err != nil {
		return nil, execution.SocketError(err)
	}
	if response.IsError() {
		return nil, c.classify(response.Body(), response.StatusCode())
	}
	return response.Body(), nil
}

// classify maps the venue's error envelope onto the execution taxonomy.
func (c *Client) classify(body []byte, status int) error {
	var venueErr apiError
	_ = json.Unmarshal(body, &venueErr)

	msg := venueErr.Msg
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	switch {
	case status == 401 || status == 403,
		venueErr.Code == -2014 || venueErr.Code == -2015,
		strings.Contains(msg, "Invalid login credentials"):
		return execution.Unauthorised(msg)
	case venueErr.Code == -2011:
		// Unknown order sent.
		return fmt.Errorf("%w: %s", execution.ErrOrderNotFound, msg)
	case venueErr.Code == -2019:
		// Margin is insufficient.
		return fmt.Errorf("%w: %s", execution.ErrInsufficientBalance, msg)
	default:
		return execution.SocketError(fmt.Errorf("status %d: %s", status, msg))
	}
}

// FetchBalances implements execution.Client.
func (c *Client) FetchBalances(ctx context.Context) ([]execution.SymbolBalance, error) {
	body, err := c.doSigned(ctx, resty.MethodGet, "account", url.Values{})
	if err != nil {
		return nil, err
	}

	if c.market == MarketSpot {
		var account spotAccount
		if err := json.Unmarshal(body, &account); err != nil {
			return nil, execution.SocketError(err)
		}
		balances := make([]execution.SymbolBalance, 0, len(account.Balances))
		for _, b := range account.Balances {
			balances = append(balances, execution.SymbolBalance{
				Symbol: instrument.NewSymbol(b.Asset),
				Balance: execution.Balance{
					Total:     float64(b.Free) + float64(b.Locked),
					Available: float64(b.Free),
				},
			})
		}
		return balances, nil
	}

	var raw []futuresBalance
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, execution.SocketError(err)
	}
	balances := make([]execution.SymbolBalance, 0, len(raw))
	for _, b := range raw {
		balances = append(balances, execution.SymbolBalance{
			Symbol: instrument.NewSymbol(b.Asset),
			Balance: execution.Balance{
				Total:     float64(b.Balance),
				Available: float64(b.AvailableBalance),
			},
		})
	}
	return balances, nil
}

// FetchOrdersOpen implements execution.Client.
func (c *Client) FetchOrdersOpen(ctx context.Context) ([]execution.Order[execution.Open], error) {
	body, err := c.doSigned(ctx, resty.MethodGet, "openOrders", url.Values{})
	if err != nil {
		return nil, err
	}
	var raw []openOrder
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, execution.SocketError(err)
	}

	orders := make([]execution.Order[execution.Open], 0, len(raw))
	for _, o := range raw {
		inst, ok := c.bySymbol[o.Symbol]
		if !ok {
			c.log.Debug().Str("symbol", o.Symbol).Msg("open order for untracked symbol skipped")
			continue
		}
		side := instrument.SideBuy
		if strings.EqualFold(o.Side, "SELL") {
			side = instrument.SideSell
		}
		orders = append(orders, execution.Order[execution.Open]{
			Exchange:   c.exchange,
			Instrument: inst,
			CID:        execution.ParseClientOrderID(o.ClientOrderID),
			Side:       side,
			State: execution.Open{
				OrderID:  execution.OrderID(strconv.FormatInt(o.OrderID, 10)),
				Price:    float64(o.Price),
				Quantity: float64(o.OrigQty),
				Filled:   float64(o.ExecutedQty),
			},
		})
	}
	return orders, nil
}

// OpenOrders implements execution.Client. Each order is submitted with its
// CID as newClientOrderId; results preserve input order.
func (c *Client) OpenOrders(ctx context.Context, orders []execution.Order[execution.RequestOpen]) []execution.OpenResult {
	results := make([]execution.OpenResult, 0, len(orders))
	for _, order := range orders {
		opened, err := c.openOrder(ctx, order)
		results = append(results, execution.OpenResult{Order: opened, Err: err})
	}
	return results
}

func (c *Client) openOrder(ctx context.Context, order execution.Order[execution.RequestOpen]) (execution.Order[execution.Open], error) {
	var zero execution.Order[execution.Open]

	params := url.Values{}
	params.Set("symbol", order.Instrument.VenueSymbol())
	params.Set("side", strings.ToUpper(string(order.Side)))
	params.Set("quantity", formatFloat(order.State.Quantity))
	params.Set("newClientOrderId", order.CID.String())

	switch order.State.Kind {
	case execution.KindLimit:
		params.Set("type", "LIMIT")
		params.Set("timeInForce", "GTC")
		params.Set("price", formatFloat(order.State.Price))
	case execution.KindMarket:
		params.Set("type", "MARKET")
		params.Set("newOrderRespType", "RESULT")
	default:
		return zero, execution.UnsupportedOrderKind(order.State.Kind)
	}

	body, err := c.doSigned(ctx, resty.MethodPost, "order", params)
	if err != nil {
		return zero, err
	}
	var ack orderResponse
	if err := json.Unmarshal(body, &ack); err != nil {
		return zero, execution.SocketError(err)
	}

	price := float64(ack.Price)
	if price == 0 {
		price = order.State.Price
	}
	return execution.Order[execution.Open]{
		Exchange:   order.Exchange,
		Instrument: order.Instrument,
		CID:        order.CID,
		Side:       order.Side,
		State: execution.Open{
			OrderID:  execution.OrderID(strconv.FormatInt(ack.OrderID, 10)),
			Price:    price,
			Quantity: float64(ack.OrigQty),
			Filled:   float64(ack.ExecutedQty),
		},
	}, nil
}

// CancelOrders implements execution.Client.
func (c *Client) CancelOrders(ctx context.Context, orders []execution.Order[execution.RequestCancel]) []execution.CancelResult {
	results := make([]execution.CancelResult, 0, len(orders))
	for _, order := range orders {
		params := url.Values{}
		params.Set("symbol", order.Instrument.VenueSymbol())
		params.Set("origClientOrderId", order.CID.String())

		var result execution.CancelResult
		if _, err := c.doSigned(ctx, resty.MethodDelete, "order", params); err != nil {
			result.Err = err
		} else {
			result.Order = execution.Order[execution.Cancelled]{
				Exchange:   order.Exchange,
				Instrument: order.Instrument,
				CID:        order.CID,
				Side:       order.Side,
				State:      execution.Cancelled{OrderID: order.State.OrderID},
			}
		}
		results = append(results, result)
	}
	return results
}

// CancelOrdersAll implements execution.Client. Binance scopes the endpoint
// per symbol, so the open set is fetched first and every tracked symbol with
// resting orders is swept.
func (c *Client) CancelOrdersAll(ctx context.Context) ([]execution.Order[execution.Cancelled], error) {
	open, err := c.FetchOrdersOpen(ctx)
	if err != nil {
		return nil, err
	}

	symbols := make(map[string]struct{})
	for _, order := range open {
		symbols[order.Instrument.VenueSymbol()] = struct{}{}
	}
	for symbol := range symbols {
		params := url.Values{}
		params.Set("symbol", symbol)
		if _, err := c.doSigned(ctx, resty.MethodDelete, "allOpenOrders", params); err != nil {
			return nil, err
		}
	}

	cancelled := make([]execution.Order[execution.Cancelled], 0, len(open))
	for _, order := range open {
		cancelled = append(cancelled, execution.IntoCancelled(order))
	}
	return cancelled, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
