package execution

import (
	"errors"
	"fmt"

	"github.com/sector-fi/barter-mono/pkg/instrument"
)

// Sentinel execution errors. Venue clients wrap these so callers can classify
// failures with errors.Is regardless of the venue that produced them.
var (
	// ErrBuilderIncomplete marks a programmer error at construction; fatal.
	ErrBuilderIncomplete = errors.New("failed to build struct due to missing attributes")

	// ErrSimulated is a fault injected by the simulated exchange.
	ErrSimulated = errors.New("simulated exchange error")

	// ErrInsufficientBalance is a per-order pre-trade check failure.
	ErrInsufficientBalance = errors.New("balance insufficient to open order")

	// ErrOrderNotFound reports a cancel of an absent order.
	ErrOrderNotFound = errors.New("order not found")

	// ErrUnsupportedOrderKind reports a config/strategy mismatch.
	ErrUnsupportedOrderKind = errors.New("unsupported order kind")

	// ErrUnauthorised is venue-wide: the client should report and stop
	// submitting.
	ErrUnauthorised = errors.New("request authorisation invalid")

	// ErrSocket is a transport or protocol failure, retryable at the
	// caller's discretion.
	ErrSocket = errors.New("socket error")
)

// BuilderIncomplete names the missing attribute.
func BuilderIncomplete(attribute string) error {
	return fmt.Errorf("%w: %s", ErrBuilderIncomplete, attribute)
}

// InsufficientBalance names the short symbol.
func InsufficientBalance(symbol instrument.Symbol) error {
	return fmt.Errorf("%w: %s", ErrInsufficientBalance, symbol)
}

// OrderNotFound names the missing client order id.
func OrderNotFound(cid ClientOrderID) error {
	return fmt.Errorf("%w: %s", ErrOrderNotFound, cid)
}

// UnsupportedOrderKind names the rejected kind.
func UnsupportedOrderKind(kind Kind) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedOrderKind, kind)
}

// Unauthorised carries the venue's rejection detail.
func Unauthorised(detail string) error {
	return fmt.Errorf("%w: %s", ErrUnauthorised, detail)
}

// SocketError wraps a transport failure.
func SocketError(err error) error {
	return fmt.Errorf("%w: %v", ErrSocket, err)
}
