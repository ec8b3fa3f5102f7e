// Package engine implements the Cerebrum: the single-goroutine state machine
// that serializes every decision. It consumes one event at a time from the
// central feed, updates the indicator layer on market events, applies account
// events to the venue state, asks the strategy for cancels and orders, and
// routes the resulting execution requests to the portal.
//
// The engine never calls a venue directly; all side effects leave through the
// exchange channel.
package engine

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/sector-fi/barter-mono/internal/account"
	"github.com/sector-fi/barter-mono/internal/events"
	"github.com/sector-fi/barter-mono/internal/market"
	"github.com/sector-fi/barter-mono/internal/monitor"
	"github.com/sector-fi/barter-mono/internal/strategy"
	"github.com/sector-fi/barter-mono/pkg/execution"
	"github.com/sector-fi/barter-mono/pkg/instrument"
)

// AuditSink receives a copy of every event the engine consumes. Optional.
type AuditSink interface {
	Record(event events.Event)
}

// Config wires an Engine. Feed, Accounts, Strategy and ExchangeTx are
// required; Audit and Metrics are optional.
type Config struct {
	Feed       *events.Feed
	Accounts   *account.Accounts
	Strategy   strategy.Strategy
	ExchangeTx chan<- execution.Request
	Audit      AuditSink
	Metrics    *monitor.Metrics
	Log        zerolog.Logger
}

// Engine is the serialized decision loop. Run it on a dedicated goroutine;
// it is the sole mutator of Accounts.
type Engine struct {
	feed       *events.Feed
	accounts   *account.Accounts
	strategy   strategy.Strategy
	exchangeTx chan<- execution.Request
	audit      AuditSink
	metrics    *monitor.Metrics
	log        zerolog.Logger
}

// New validates cfg and builds the Engine. Missing required attributes are a
// programmer error.
func New(cfg Config) (*Engine, error) {
	switch {
	case cfg.Feed == nil:
		return nil, execution.BuilderIncomplete("feed")
	case cfg.Accounts == nil:
		return nil, execution.BuilderIncomplete("accounts")
	case cfg.Strategy == nil:
		return nil, execution.BuilderIncomplete("strategy")
	case cfg.ExchangeTx == nil:
		return nil, execution.BuilderIncomplete("exchange_tx")
	}
	return &Engine{
		feed:       cfg.Feed,
		accounts:   cfg.Accounts,
		strategy:   cfg.Strategy,
		exchangeTx: cfg.ExchangeTx,
		audit:      cfg.Audit,
		metrics:    cfg.Metrics,
		log:        cfg.Log.With().Str("component", "engine").Logger(),
	}, nil
}

// Run consumes events until Terminate arrives or the feed closes. Each event
// is handled to completion before the next is pulled, so the strategy always
// observes a consistent Accounts snapshot.
func (e *Engine) Run() {
	e.log.Info().Msg("engine running")
	for {
		event, ok := e.feed.Next()
		if !ok {
			e.log.Info().Msg("event feed closed; engine stopping")
			return
		}
		if e.audit != nil {
			e.audit.Record(event)
		}
		e.metrics.SetFeedDepth(e.feed.Len())

		switch ev := event.(type) {
		case events.Market:
			e.metrics.EventConsumed("market")
			e.onMarket(market.Event(ev))

		case events.Account:
			e.metrics.EventConsumed("account")
			e.accounts.Update(execution.AccountEvent(ev))

		case events.Terminate:
			e.metrics.EventConsumed("command")
			e.log.Info().Msg("terminate command received; engine stopping")
			return

		case events.ExitAllPositions:
			e.metrics.EventConsumed("command")
			e.exitPositions(func(instrument.Instrument) bool { return true })

		case events.ExitPosition:
			e.metrics.EventConsumed("command")
			target := ev.Instrument
			e.exitPositions(func(inst instrument.Instrument) bool { return inst == target })

		default:
			e.log.Warn().Type("event", event).Msg("unhandled event type ignored")
		}
	}
}

// onMarket drives the strategy: indicators first, then cancels, then orders.
func (e *Engine) onMarket(ev market.Event) {
	e.strategy.UpdateIndicators(ev)

	if cancels := e.strategy.GenerateCancels(e.accounts); len(cancels) > 0 {
		e.exchangeTx <- execution.CancelOrders(cancels)
	}

	if batches := e.strategy.GenerateOrders(e.accounts); len(batches) > 0 {
		e.openOrders(batches)
	}
}

// openOrders transitions each requested order to in-flight, records it under
// its CID, and emits a single OpenOrders request covering every batch.
func (e *Engine) openOrders(batches []execution.OpenBatch) {
	for _, batch := range batches {
		for _, order := range batch.Orders {
			e.accounts.RecordInFlight(execution.IntoInFlight(order))
		}
	}
	e.exchangeTx <- execution.OpenOrders(batches)
}

// exitPositions synthesizes market orders zeroing the signed quantity of
// every matching position, grouped per venue.
func (e *Engine) exitPositions(match func(instrument.Instrument) bool) {
	var batches []execution.OpenBatch
	for _, exchange := range e.accounts.Exchanges() {
		acct := e.accounts.Account(exchange)
		var orders []execution.Order[execution.RequestOpen]
		for inst, position := range acct.Positions {
			if position.Quantity == 0 || !match(inst) {
				continue
			}
			side := instrument.SideSell
			if position.Quantity < 0 {
				side = instrument.SideBuy
			}
			orders = append(orders, strategy.MarketOrder(exchange, inst, side, math.Abs(position.Quantity)))
		}
		if len(orders) > 0 {
			batches = append(batches, execution.OpenBatch{Exchange: exchange, Orders: orders})
		}
	}
	if len(batches) > 0 {
		e.log.Info().Int("batches", len(batches)).Msg("exiting positions")
		e.openOrders(batches)
	}
}
