package strategy

import (
	"github.com/sector-fi/barter-mono/internal/account"
	"github.com/sector-fi/barter-mono/internal/indicators"
	"github.com/sector-fi/barter-mono/internal/market"
	"github.com/sector-fi/barter-mono/pkg/execution"
	"github.com/sector-fi/barter-mono/pkg/instrument"
)

// MACross is a simple moving-average crossover strategy over one market.
// A golden cross quotes a buy limit at the last price; a death cross cancels
// resting orders and arms the opposite signal.
type MACross struct {
	Market instrument.Market
	Size   float64

	tracker    *indicators.Tracker
	fast, slow float64
	prevSignal instrument.Side
	hasSignal  bool
	lastPrice  float64
}

// NewMACross builds the strategy with the given indicator windows.
func NewMACross(m instrument.Market, fastPeriod, slowPeriod int, size float64) *MACross {
	return &MACross{
		Market:  m,
		Size:    size,
		tracker: indicators.NewTracker(fastPeriod, slowPeriod, 14, 4*slowPeriod),
	}
}

// UpdateIndicators ingests trade, candle and top-of-book prices for the
// tracked market.
func (s *MACross) UpdateIndicators(event market.Event) {
	if event.Exchange != s.Market.Exchange || event.Instrument != s.Market.Instrument {
		return
	}

	var price float64
	switch kind := event.Kind.(type) {
	case market.Trade:
		price = kind.Price
	case market.Candle:
		price = kind.Close
	case market.OrderBookL1:
		price = (kind.BestBid.Price + kind.BestAsk.Price) / 2
	default:
		return
	}

	values := s.tracker.Update(s.Market, price)
	s.fast = values["sma_short"]
	s.slow = values["sma_long"]
	s.lastPrice = price
}

// GenerateCancels pulls every resting order on a death cross.
func (s *MACross) GenerateCancels(accounts *account.Accounts) []execution.CancelBatch {
	if s.signal() != instrument.SideSell {
		return nil
	}
	acct := accounts.Account(s.Market.Exchange)
	if acct == nil || len(acct.OrdersOpen) == 0 {
		return nil
	}

	cancels := make([]execution.Order[execution.RequestCancel], 0, len(acct.OrdersOpen))
	for _, open := range acct.OrdersOpen {
		cancels = append(cancels, execution.Order[execution.RequestCancel]{
			Exchange:   open.Exchange,
			Instrument: open.Instrument,
			CID:        open.CID,
			Side:       open.Side,
			State:      execution.RequestCancel{OrderID: open.State.OrderID},
		})
	}
	return []execution.CancelBatch{{Exchange: s.Market.Exchange, Orders: cancels}}
}

// GenerateOrders quotes one limit order per fresh crossover signal.
func (s *MACross) GenerateOrders(accounts *account.Accounts) []execution.OpenBatch {
	side := s.signal()
	if side == "" || s.lastPrice == 0 {
		return nil
	}
	if s.hasSignal && side == s.prevSignal {
		return nil
	}
	s.prevSignal = side
	s.hasSignal = true

	acct := accounts.Account(s.Market.Exchange)
	if acct == nil {
		return nil
	}
	// One working order at a time.
	if len(acct.OrdersOpen) > 0 || len(acct.OrdersInFlight) > 0 {
		return nil
	}

	order := LimitOrder(s.Market.Exchange, s.Market.Instrument, side, s.lastPrice, s.Size)
	return []execution.OpenBatch{{
		Exchange: s.Market.Exchange,
		Orders:   []execution.Order[execution.RequestOpen]{order},
	}}
}

func (s *MACross) signal() instrument.Side {
	if s.fast == 0 || s.slow == 0 {
		return ""
	}
	if s.fast > s.slow {
		return instrument.SideBuy
	}
	if s.fast < s.slow {
		return instrument.SideSell
	}
	return ""
}
