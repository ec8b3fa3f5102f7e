// Package events defines the engine's inbound event union and the serialized
// feed that delivers it. Market feeds, the portal and the command scheduler
// all produce; the engine is the sole consumer.
package events

import (
	"github.com/sector-fi/barter-mono/internal/market"
	"github.com/sector-fi/barter-mono/pkg/execution"
	"github.com/sector-fi/barter-mono/pkg/instrument"
)

// Event is the union consumed by the engine: market data, private account
// updates, or operator commands. The concrete types below are the only
// implementations.
type Event interface {
	isEvent()
}

// Market wraps a public market observation.
type Market market.Event

// MarketSink adapts a Feed to market.Sink so market producers can push
// without importing this package (which would create an import cycle, since
// this package imports market for the Market type above).
type MarketSink struct {
	Feed *Feed
}

// Push wraps e as a Market event and pushes it onto the underlying feed.
func (s MarketSink) Push(e market.Event) {
	s.Feed.Push(Market(e))
}

// Account wraps a private account observation.
type Account execution.AccountEvent

// Terminate stops the engine after the current event.
type Terminate struct{}

// ExitAllPositions asks the engine to flatten every open position.
type ExitAllPositions struct{}

// ExitPosition asks the engine to flatten one instrument's position on every
// venue holding it.
type ExitPosition struct {
	Instrument instrument.Instrument
}

func (Market) isEvent()           {}
func (Account) isEvent()          {}
func (Terminate) isEvent()        {}
func (ExitAllPositions) isEvent() {}
func (ExitPosition) isEvent()     {}
