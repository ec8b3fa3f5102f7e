package execution

import (
	"context"

	"github.com/sector-fi/barter-mono/pkg/instrument"
)

// OpenResult is the per-item outcome of one order within an OpenOrders batch.
type OpenResult struct {
	Order Order[Open]
	Err   error
}

// CancelResult is the per-item outcome of one order within a CancelOrders
// batch.
type CancelResult struct {
	Order Order[Cancelled]
	Err   error
}

// Client is the venue-agnostic execution capability. Implementations must be
// safe for use by concurrent goroutines: the portal shares one Client per
// venue across every spawned per-request task.
//
// Batch methods return one result per input, in input order; failures are
// reported per item, never by truncating the slice.
type Client interface {
	// Exchange identifies the venue this client trades on.
	Exchange() instrument.Exchange

	// InitStream opens the venue's push account stream. Venues without
	// push updates return a nil channel and no error. The stream is lazy
	// and infinite; it closes only when ctx is cancelled or the transport
	// fails terminally.
	InitStream(ctx context.Context) (<-chan AccountEventKind, error)

	// FetchBalances pulls a full balance snapshot.
	FetchBalances(ctx context.Context) ([]SymbolBalance, error)

	// FetchOrdersOpen pulls a full open-orders snapshot.
	FetchOrdersOpen(ctx context.Context) ([]Order[Open], error)

	// OpenOrders submits the batch, one result per request.
	OpenOrders(ctx context.Context, orders []Order[RequestOpen]) []OpenResult

	// CancelOrders cancels the batch, one result per request.
	CancelOrders(ctx context.Context, orders []Order[RequestCancel]) []CancelResult

	// CancelOrdersAll cancels every open order on the venue.
	CancelOrdersAll(ctx context.Context) ([]Order[Cancelled], error)
}
