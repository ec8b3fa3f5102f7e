// Package simulated implements an in-memory venue used for dry runs and
// tests: balance-checked order acceptance, deterministic order ids, and a
// push stream tests can inject fills into.
package simulated

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sector-fi/barter-mono/pkg/execution"
	"github.com/sector-fi/barter-mono/pkg/instrument"
)

// DefaultExchange is the venue name when none is configured.
const DefaultExchange = instrument.Exchange("simulated")

// Config seeds the simulated venue.
type Config struct {
	Exchange instrument.Exchange
	Balances map[instrument.Symbol]execution.Balance
	// MarkPrices provides the fill price for market orders per instrument.
	MarkPrices map[instrument.Instrument]float64
	// Fault, when set, fails every call with a simulated-exchange error.
	Fault error
	Log   zerolog.Logger
}

// Client is the simulated execution client. Safe for concurrent use.
type Client struct {
	exchange instrument.Exchange
	log      zerolog.Logger

	mu         sync.Mutex
	balances   map[instrument.Symbol]execution.Balance
	markPrices map[instrument.Instrument]float64
	open       map[execution.ClientOrderID]execution.Order[execution.Open]
	fault      error
	nextID     int64
	stream     chan execution.AccountEventKind
}

// New builds the venue with the configured starting balances.
func New(cfg Config) *Client {
	exchange := cfg.Exchange
	if exchange == "" {
		exchange = DefaultExchange
	}
	balances := make(map[instrument.Symbol]execution.Balance, len(cfg.Balances))
	for symbol, balance := range cfg.Balances {
		balances[symbol] = balance
	}
	markPrices := make(map[instrument.Instrument]float64, len(cfg.MarkPrices))
	for inst, price := range cfg.MarkPrices {
		markPrices[inst] = price
	}
	return &Client{
		exchange:   exchange,
		log:        cfg.Log.With().Str("component", "simulated").Logger(),
		balances:   balances,
		markPrices: markPrices,
		open:       make(map[execution.ClientOrderID]execution.Order[execution.Open]),
		fault:      cfg.Fault,
	}
}

// Exchange implements execution.Client.
func (c *Client) Exchange() instrument.Exchange { return c.exchange }

// InitStream returns the venue's push stream. Fills injected with Emit and
// fills from market orders arrive here.
func (c *Client) InitStream(ctx context.Context) (<-chan execution.AccountEventKind, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream == nil {
		c.stream = make(chan execution.AccountEventKind, 64)
		go func() {
			<-ctx.Done()
			c.mu.Lock()
			defer c.mu.Unlock()
			close(c.stream)
			c.stream = nil
		}()
	}
	return c.stream, nil
}

// Emit injects an account event into the push stream. Test hook; drops when
// no stream is open or the buffer is full.
func (c *Client) Emit(kind execution.AccountEventKind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emitLocked(kind)
}

func (c *Client) emitLocked(kind execution.AccountEventKind) {
	if c.stream == nil {
		return
	}
	select {
	case c.stream <- kind:
	default:
		c.log.Warn().Msg("simulated stream full; event dropped")
	}
}

// SetMarkPrice updates the market-order fill price for an instrument.
func (c *Client) SetMarkPrice(inst instrument.Instrument, price float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markPrices[inst] = price
}

// FetchBalances implements execution.Client.
func (c *Client) FetchBalances(ctx context.Context) ([]execution.SymbolBalance, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fault != nil {
		return nil, fmt.Errorf("%w: %v", execution.ErrSimulated, c.fault)
	}
	balances := make([]execution.SymbolBalance, 0, len(c.balances))
	for symbol, balance := range c.balances {
		balances = append(balances, execution.SymbolBalance{Symbol: symbol, Balance: balance})
	}
	return balances, nil
}

// FetchOrdersOpen implements execution.Client.
func (c *Client) FetchOrdersOpen(ctx context.Context) ([]execution.Order[execution.Open], error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fault != nil {
		return nil, fmt.Errorf("%w: %v", execution.ErrSimulated, c.fault)
	}
	orders := make([]execution.Order[execution.Open], 0, len(c.open))
	for _, order := range c.open {
		orders = append(orders, order)
	}
	return orders, nil
}

// OpenOrders implements execution.Client. Limit orders rest on the book;
// market orders fill immediately at the instrument's mark price and report
// the fill on the push stream.
func (c *Client) OpenOrders(ctx context.Context, orders []execution.Order[execution.RequestOpen]) []execution.OpenResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	results := make([]execution.OpenResult, 0, len(orders))
	for _, request := range orders {
		order, err := c.openLocked(request)
		results = append(results, execution.OpenResult{Order: order, Err: err})
	}
	return results
}

func (c *Client) openLocked(request execution.Order[execution.RequestOpen]) (execution.Order[execution.Open], error) {
	var zero execution.Order[execution.Open]
	if c.fault != nil {
		return zero, fmt.Errorf("%w: %v", execution.ErrSimulated, c.fault)
	}

	price := request.State.Price
	if request.State.Kind == execution.KindMarket {
		price = c.markPrices[request.Instrument]
	} else if request.State.Kind != execution.KindLimit {
		return zero, execution.UnsupportedOrderKind(request.State.Kind)
	}

	// Pre-trade balance check: buys lock quote notional, sells lock base
	// quantity.
	lockSymbol := request.Instrument.Quote
	lockAmount := price * request.State.Quantity
	if request.Side == instrument.SideSell {
		lockSymbol = request.Instrument.Base
		lockAmount = request.State.Quantity
	}
	balance := c.balances[lockSymbol]
	if balance.Available < lockAmount {
		return zero, execution.InsufficientBalance(lockSymbol)
	}
	balance.Available -= lockAmount
	c.balances[lockSymbol] = balance

	c.nextID++
	order := execution.Order[execution.Open]{
		Exchange:   request.Exchange,
		Instrument: request.Instrument,
		CID:        request.CID,
		Side:       request.Side,
		State: execution.Open{
			OrderID:  execution.OrderID(fmt.Sprintf("sim-%d", c.nextID)),
			Price:    price,
			Quantity: request.State.Quantity,
		},
	}

	if request.State.Kind == execution.KindMarket {
		order.State.Filled = order.State.Quantity
		c.fillLocked(order)
		return order, nil
	}

	c.open[order.CID] = order
	return order, nil
}

// fillLocked settles a fully-filled order and reports the trade.
func (c *Client) fillLocked(order execution.Order[execution.Open]) {
	notional := order.State.Price * order.State.Quantity
	base := c.balances[order.Instrument.Base]
	quote := c.balances[order.Instrument.Quote]
	if order.Side == instrument.SideBuy {
		base.Total += order.State.Quantity
		base.Available += order.State.Quantity
		quote.Total -= notional
	} else {
		base.Total -= order.State.Quantity
		quote.Total += notional
		quote.Available += notional
	}
	c.balances[order.Instrument.Base] = base
	c.balances[order.Instrument.Quote] = quote

	c.emitLocked(execution.TradeUpdate{
		ID:         string(order.State.OrderID),
		CID:        order.CID,
		Instrument: order.Instrument,
		Side:       order.Side,
		Price:      order.State.Price,
		Quantity:   order.State.Quantity,
	})
}

// CancelOrders implements execution.Client.
func (c *Client) CancelOrders(ctx context.Context, orders []execution.Order[execution.RequestCancel]) []execution.CancelResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	results := make([]execution.CancelResult, 0, len(orders))
	for _, request := range orders {
		var result execution.CancelResult
		if c.fault != nil {
			result.Err = fmt.Errorf("%w: %v", execution.ErrSimulated, c.fault)
		} else if open, ok := c.open[request.CID]; ok {
			c.releaseLocked(open)
			delete(c.open, request.CID)
			result.Order = execution.IntoCancelled(open)
		} else {
			result.Err = execution.OrderNotFound(request.CID)
		}
		results = append(results, result)
	}
	return results
}

// CancelOrdersAll implements execution.Client.
func (c *Client) CancelOrdersAll(ctx context.Context) ([]execution.Order[execution.Cancelled], error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fault != nil {
		return nil, fmt.Errorf("%w: %v", execution.ErrSimulated, c.fault)
	}

	cancelled := make([]execution.Order[execution.Cancelled], 0, len(c.open))
	for cid, open := range c.open {
		c.releaseLocked(open)
		delete(c.open, cid)
		cancelled = append(cancelled, execution.IntoCancelled(open))
	}
	return cancelled, nil
}

// releaseLocked returns the balance locked by an open order.
func (c *Client) releaseLocked(order execution.Order[execution.Open]) {
	lockSymbol := order.Instrument.Quote
	lockAmount := order.State.Price * order.State.Remaining()
	if order.Side == instrument.SideSell {
		lockSymbol = order.Instrument.Base
		lockAmount = order.State.Remaining()
	}
	balance := c.balances[lockSymbol]
	balance.Available += lockAmount
	c.balances[lockSymbol] = balance
}
