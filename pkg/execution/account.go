package execution

import (
	"time"

	"github.com/sector-fi/barter-mono/pkg/instrument"
)

// Balance is a venue balance for one symbol. Invariant: 0 ≤ Available ≤ Total.
type Balance struct {
	Total     float64
	Available float64
}

// Used returns the balance locked by open orders or positions.
func (b Balance) Used() float64 { return b.Total - b.Available }

// SymbolBalance pairs a Balance with its Symbol for transport.
type SymbolBalance struct {
	Symbol  instrument.Symbol
	Balance Balance
}

// Position is the signed exposure held in one instrument on one venue.
// A zero-quantity position is flat, not deleted.
type Position struct {
	Instrument    instrument.Instrument
	Quantity      float64 // signed: long > 0, short < 0
	EntryPrice    float64
	UnrealisedPnl float64
}

// Side reports the direction of the position, defaulting to buy when flat.
func (p Position) Side() instrument.Side {
	if p.Quantity < 0 {
		return instrument.SideSell
	}
	return instrument.SideBuy
}

// Fees is the fee taken on a fill, denominated in Symbol.
type Fees struct {
	Symbol instrument.Symbol
	Amount float64
}

// Trade is a normalized fill observed on the private account stream.
type Trade struct {
	ID         string
	CID        ClientOrderID
	Instrument instrument.Instrument
	Side       instrument.Side
	Price      float64
	Quantity   float64
	Fees       Fees
}

// AccountEvent is a normalized private observation of account state change,
// stamped with the local receive time by whichever component forwarded it.
type AccountEvent struct {
	Exchange     instrument.Exchange
	ReceivedTime time.Time
	Kind         AccountEventKind
}

// NewAccountEvent stamps kind with the current time.
func NewAccountEvent(exchange instrument.Exchange, kind AccountEventKind) AccountEvent {
	return AccountEvent{Exchange: exchange, ReceivedTime: time.Now(), Kind: kind}
}

// AccountEventKind is the closed set of account event payloads. The concrete
// types below are the only implementations.
//
// OrdersNew carries Order[Open] values: it is the portal's synthesized
// response to an OpenOrders request and promotes each CID from in-flight to
// open. OrdersOpen is the full-snapshot variant produced by
// FetchOrdersOpen and replaces the open set wholesale.
type AccountEventKind interface {
	isAccountEventKind()
}

// OrdersOpen is a full snapshot of the venue's open orders.
type OrdersOpen []Order[Open]

// OrdersNew acknowledges orders newly opened by an OpenOrders request.
type OrdersNew []Order[Open]

// OrdersCancelled reports orders that left the open set.
type OrdersCancelled []Order[Cancelled]

// BalanceUpdate replaces a single symbol balance.
type BalanceUpdate SymbolBalance

// Balances replaces every included symbol balance.
type Balances []SymbolBalance

// TradeUpdate reports a fill.
type TradeUpdate Trade

// Positions replaces positions for every included instrument.
type Positions []Position

func (OrdersOpen) isAccountEventKind()      {}
func (OrdersNew) isAccountEventKind()       {}
func (OrdersCancelled) isAccountEventKind() {}
func (BalanceUpdate) isAccountEventKind()   {}
func (Balances) isAccountEventKind()        {}
func (TradeUpdate) isAccountEventKind()     {}
func (Positions) isAccountEventKind()       {}
