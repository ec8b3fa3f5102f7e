// Package strategy defines the capabilities the engine requires from a
// trading strategy, and a worked moving-average example. Strategies run on
// the engine goroutine: callbacks are pure CPU and must not block.
package strategy

import (
	"github.com/sector-fi/barter-mono/internal/account"
	"github.com/sector-fi/barter-mono/internal/market"
	"github.com/sector-fi/barter-mono/pkg/execution"
	"github.com/sector-fi/barter-mono/pkg/instrument"
)

// IndicatorUpdater consumes each market event before order generation runs.
type IndicatorUpdater interface {
	UpdateIndicators(event market.Event)
}

// OrderGenerator produces orders and cancels from the current account state.
// The *account.Accounts argument is a consistent snapshot for the duration of
// one event: the engine applies no other mutation while a generator runs.
type OrderGenerator interface {
	GenerateCancels(accounts *account.Accounts) []execution.CancelBatch
	GenerateOrders(accounts *account.Accounts) []execution.OpenBatch
}

// Strategy is the full capability set the engine drives.
type Strategy interface {
	IndicatorUpdater
	OrderGenerator
}

// LimitOrder is a convenience constructor for a limit Order[RequestOpen].
func LimitOrder(exchange instrument.Exchange, inst instrument.Instrument, side instrument.Side, price, quantity float64) execution.Order[execution.RequestOpen] {
	return execution.Order[execution.RequestOpen]{
		Exchange:   exchange,
		Instrument: inst,
		CID:        execution.NewClientOrderID(),
		Side:       side,
		State: execution.RequestOpen{
			Kind:     execution.KindLimit,
			Price:    price,
			Quantity: quantity,
		},
	}
}

// MarketOrder is a convenience constructor for a market Order[RequestOpen].
func MarketOrder(exchange instrument.Exchange, inst instrument.Instrument, side instrument.Side, quantity float64) execution.Order[execution.RequestOpen] {
	return execution.Order[execution.RequestOpen]{
		Exchange:   exchange,
		Instrument: inst,
		CID:        execution.NewClientOrderID(),
		Side:       side,
		State: execution.RequestOpen{
			Kind:     execution.KindMarket,
			Quantity: quantity,
		},
	}
}
