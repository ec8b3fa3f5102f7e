// Package account maintains the authoritative in-process account state per
// venue: balances, positions, open orders and in-flight orders. Accounts is
// exclusively mutated by the engine goroutine, so no locking is required on
// the hot path.
package account

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/sector-fi/barter-mono/pkg/execution"
	"github.com/sector-fi/barter-mono/pkg/instrument"
)

// Account is the state held for one venue.
//
// Invariant: a ClientOrderID appears in at most one of OrdersInFlight and
// OrdersOpen.
type Account struct {
	Balances       map[instrument.Symbol]execution.Balance
	Positions      map[instrument.Instrument]execution.Position
	OrdersInFlight map[execution.ClientOrderID]execution.Order[execution.InFlight]
	OrdersOpen     map[execution.ClientOrderID]execution.Order[execution.Open]
}

// NewAccount seeds a flat account: zero positions for each instrument and
// the provided starting balances.
func NewAccount(instruments []instrument.Instrument, balances map[instrument.Symbol]execution.Balance) *Account {
	a := &Account{
		Balances:       make(map[instrument.Symbol]execution.Balance),
		Positions:      make(map[instrument.Instrument]execution.Position),
		OrdersInFlight: make(map[execution.ClientOrderID]execution.Order[execution.InFlight]),
		OrdersOpen:     make(map[execution.ClientOrderID]execution.Order[execution.Open]),
	}
	for _, inst := range instruments {
		a.Positions[inst] = execution.Position{Instrument: inst}
	}
	for symbol, balance := range balances {
		a.Balances[symbol] = balance
	}
	return a
}

// Accounts maps each venue to its Account. Constructed at startup and owned
// by the engine.
type Accounts struct {
	accounts map[instrument.Exchange]*Account
	log      zerolog.Logger
}

// NewAccounts builds the venue map. The set of venues is fixed afterwards.
func NewAccounts(accounts map[instrument.Exchange]*Account, log zerolog.Logger) *Accounts {
	if accounts == nil {
		accounts = make(map[instrument.Exchange]*Account)
	}
	return &Accounts{accounts: accounts, log: log.With().Str("component", "accounts").Logger()}
}

// Account returns the state for a venue, or nil when the venue is unknown.
func (a *Accounts) Account(exchange instrument.Exchange) *Account {
	return a.accounts[exchange]
}

// Exchanges lists every configured venue.
func (a *Accounts) Exchanges() []instrument.Exchange {
	exchanges := make([]instrument.Exchange, 0, len(a.accounts))
	for exchange := range a.accounts {
		exchanges = append(exchanges, exchange)
	}
	return exchanges
}

// RecordInFlight registers an order the engine is about to route out.
func (a *Accounts) RecordInFlight(order execution.Order[execution.InFlight]) {
	acct := a.accounts[order.Exchange]
	if acct == nil {
		a.log.Error().Stringer("exchange", order.Exchange).Stringer("cid", order.CID).
			Msg("in-flight order for unknown exchange dropped")
		return
	}
	acct.OrdersInFlight[order.CID] = order
}

// Update applies one account event. Malformed events are logged and ignored;
// state is never left corrupted.
func (a *Accounts) Update(event execution.AccountEvent) {
	acct := a.accounts[event.Exchange]
	if acct == nil {
		a.log.Warn().Stringer("exchange", event.Exchange).
			Msg("account event for unknown exchange ignored")
		return
	}

	switch kind := event.Kind.(type) {
	case execution.Balances:
		for _, sb := range kind {
			acct.Balances[sb.Symbol] = sb.Balance
		}

	case execution.BalanceUpdate:
		acct.Balances[kind.Symbol] = kind.Balance

	case execution.Positions:
		for _, position := range kind {
			acct.Positions[position.Instrument] = position
		}

	case execution.OrdersOpen:
		// Full-snapshot semantics: the open set becomes exactly the
		// snapshot, and any snapshotted CID still marked in-flight is
		// promoted.
		open := make(map[execution.ClientOrderID]execution.Order[execution.Open], len(kind))
		for _, order := range kind {
			open[order.CID] = order
			delete(acct.OrdersInFlight, order.CID)
		}
		acct.OrdersOpen = open

	case execution.OrdersNew:
		for _, order := range kind {
			delete(acct.OrdersInFlight, order.CID)
			acct.OrdersOpen[order.CID] = order
		}

	case execution.OrdersCancelled:
		for _, order := range kind {
			if _, ok := acct.OrdersOpen[order.CID]; !ok {
				a.log.Debug().Stringer("cid", order.CID).
					Msg("cancel for unknown order ignored")
			}
			delete(acct.OrdersOpen, order.CID)
			delete(acct.OrdersInFlight, order.CID)
		}

	case execution.TradeUpdate:
		a.applyTrade(acct, execution.Trade(kind))

	default:
		a.log.Warn().Type("kind", event.Kind).Msg("unhandled account event kind")
	}
}

// applyTrade adjusts the instrument position by the signed fill quantity and
// debits the fee symbol. The underlying order is left in place: terminal
// transitions arrive as cancel events or via a later OrdersOpen snapshot.
func (a *Accounts) applyTrade(acct *Account, trade execution.Trade) {
	position := acct.Positions[trade.Instrument]
	position.Instrument = trade.Instrument

	signed := trade.Quantity
	if trade.Side == instrument.SideSell {
		signed = -signed
	}

	oldQty := position.Quantity
	newQty := oldQty + signed
	switch {
	case math.Abs(newQty) < 1e-9:
		// Flat: reset entry to avoid float residue.
		newQty = 0
		position.EntryPrice = 0
	case oldQty == 0 || (oldQty > 0) != (newQty > 0):
		// Opened or flipped: the fill price is the new entry.
		position.EntryPrice = trade.Price
	case math.Abs(newQty) > math.Abs(oldQty):
		// Increased exposure: weighted-average the entry.
		position.EntryPrice = (math.Abs(oldQty)*position.EntryPrice + trade.Quantity*trade.Price) / math.Abs(newQty)
	}
	position.Quantity = newQty
	acct.Positions[trade.Instrument] = position

	if trade.Fees.Amount != 0 {
		balance := acct.Balances[trade.Fees.Symbol]
		balance.Total -= trade.Fees.Amount
		balance.Available -= trade.Fees.Amount
		if balance.Available < 0 || balance.Total < 0 {
			a.log.Warn().Stringer("symbol", trade.Fees.Symbol).
				Float64("fee", trade.Fees.Amount).
				Msg("fee debit exceeded balance; clamping at zero")
			balance.Total = math.Max(balance.Total, 0)
			balance.Available = math.Max(balance.Available, 0)
		}
		acct.Balances[trade.Fees.Symbol] = balance
	}
}
