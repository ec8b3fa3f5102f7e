// Package execution defines the normalized order-execution model shared by
// the engine, the portal and every venue client: client order ids, the typed
// order lifecycle, account events, execution requests and the error taxonomy.
package execution

import (
	"github.com/google/uuid"

	"github.com/sector-fi/barter-mono/pkg/instrument"
)

// ClientOrderID is the process-generated unique 128-bit handle for one order
// attempt. Generated once at request time and never reused.
type ClientOrderID struct {
	uuid.UUID
}

// NewClientOrderID returns a fresh random ClientOrderID.
func NewClientOrderID() ClientOrderID {
	return ClientOrderID{uuid.New()}
}

// cidNamespace derives stable ids for client order ids echoed by a venue
// that this process never generated.
var cidNamespace = uuid.MustParse("8e9cbafe-3f0b-44b0-9a98-61a7ad0efd26")

// ParseClientOrderID parses the canonical uuid form. A non-uuid venue echo is
// mapped deterministically into the uuid space so repeated echoes of the same
// foreign id resolve to the same ClientOrderID.
func ParseClientOrderID(s string) ClientOrderID {
	if id, err := uuid.Parse(s); err == nil {
		return ClientOrderID{id}
	}
	return ClientOrderID{uuid.NewSHA1(cidNamespace, []byte(s))}
}

// OrderID is the venue-assigned opaque identifier, valid from acknowledgement
// until the order leaves the open set.
type OrderID string

// Kind is the venue-facing order type.
type Kind string

const (
	KindMarket Kind = "market"
	KindLimit  Kind = "limit"
)

// Order is the product of the fixed order identity (exchange, instrument,
// cid, side) and a state-specific payload. The state types below make
// illegal lifecycle transitions unrepresentable: an Order[RequestOpen] can
// only become an Order[InFlight], and so on through
// RequestOpen → InFlight → Open → Cancelled.
type Order[State any] struct {
	Exchange   instrument.Exchange
	Instrument instrument.Instrument
	CID        ClientOrderID
	Side       instrument.Side
	State      State
}

// RequestOpen is the state of an order the strategy wants opened.
type RequestOpen struct {
	Kind     Kind
	Price    float64
	Quantity float64
}

// InFlight is the state of an order sent to a venue and not yet acknowledged.
type InFlight struct{}

// Open is the state of an order resting on a venue.
type Open struct {
	OrderID  OrderID
	Price    float64
	Quantity float64
	Filled   float64
}

// Remaining returns the unfilled quantity.
func (o Open) Remaining() float64 { return o.Quantity - o.Filled }

// RequestCancel is the state of an order the strategy wants cancelled.
type RequestCancel struct {
	OrderID OrderID
}

// Cancelled is the terminal state of a cancelled order.
type Cancelled struct {
	OrderID OrderID
}

// IntoInFlight consumes a RequestOpen order, producing its InFlight form.
func IntoInFlight(o Order[RequestOpen]) Order[InFlight] {
	return Order[InFlight]{
		Exchange:   o.Exchange,
		Instrument: o.Instrument,
		CID:        o.CID,
		Side:       o.Side,
		State:      InFlight{},
	}
}

// IntoOpen promotes an acknowledged order with its venue-assigned state.
func IntoOpen(o Order[InFlight], state Open) Order[Open] {
	return Order[Open]{
		Exchange:   o.Exchange,
		Instrument: o.Instrument,
		CID:        o.CID,
		Side:       o.Side,
		State:      state,
	}
}

// IntoCancelled consumes an Open order, producing its terminal form.
func IntoCancelled(o Order[Open]) Order[Cancelled] {
	return Order[Cancelled]{
		Exchange:   o.Exchange,
		Instrument: o.Instrument,
		CID:        o.CID,
		Side:       o.Side,
		State:      Cancelled{OrderID: o.State.OrderID},
	}
}
