package execution

import "github.com/sector-fi/barter-mono/pkg/instrument"

// Request is a normalized command sent from the engine to the portal. The
// concrete types below are the only implementations.
type Request interface {
	isRequest()
}

// FetchBalances asks each venue for a full balance snapshot.
type FetchBalances []instrument.Exchange

// FetchOrdersOpen asks each venue for a full open-orders snapshot.
type FetchOrdersOpen []instrument.Exchange

// OpenBatch groups the orders to open on one venue.
type OpenBatch struct {
	Exchange instrument.Exchange
	Orders   []Order[RequestOpen]
}

// OpenOrders opens the grouped orders, one batch per venue.
type OpenOrders []OpenBatch

// CancelBatch groups the orders to cancel on one venue.
type CancelBatch struct {
	Exchange instrument.Exchange
	Orders   []Order[RequestCancel]
}

// CancelOrders cancels the grouped orders, one batch per venue.
type CancelOrders []CancelBatch

// CancelOrdersAll cancels every open order on each venue.
type CancelOrdersAll []instrument.Exchange

func (FetchBalances) isRequest()   {}
func (FetchOrdersOpen) isRequest() {}
func (OpenOrders) isRequest()      {}
func (CancelOrders) isRequest()    {}
func (CancelOrdersAll) isRequest() {}
