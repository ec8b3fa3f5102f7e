package simulated

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sector-fi/barter-mono/pkg/execution"
	"github.com/sector-fi/barter-mono/pkg/instrument"
)

var ethUsdt = instrument.New("eth", "usdt", instrument.KindSpot)

func newTestVenue() *Client {
	return New(Config{
		Balances: map[instrument.Symbol]execution.Balance{
			"usdt": {Total: 100, Available: 100},
			"eth":  {Total: 1, Available: 1},
		},
		MarkPrices: map[instrument.Instrument]float64{ethUsdt: 2000},
		Log:        zerolog.Nop(),
	})
}

func limitRequest(side instrument.Side, price, qty float64) execution.Order[execution.RequestOpen] {
	return execution.Order[execution.RequestOpen]{
		Exchange:   DefaultExchange,
		Instrument: ethUsdt,
		CID:        execution.NewClientOrderID(),
		Side:       side,
		State:      execution.RequestOpen{Kind: execution.KindLimit, Price: price, Quantity: qty},
	}
}

func TestOpenLimitOrderRests(t *testing.T) {
	venue := newTestVenue()
	ctx := context.Background()

	results := venue.OpenOrders(ctx, []execution.Order[execution.RequestOpen]{
		limitRequest(instrument.SideBuy, 2000, 0.01),
	})
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.NotEmpty(t, results[0].Order.State.OrderID)

	open, err := venue.FetchOrdersOpen(ctx)
	require.NoError(t, err)
	assert.Len(t, open, 1)

	// 20 usdt locked by the resting buy.
	balances, err := venue.FetchBalances(ctx)
	require.NoError(t, err)
	for _, sb := range balances {
		if sb.Symbol == "usdt" {
			assert.InDelta(t, 80, sb.Balance.Available, 1e-9)
			assert.InDelta(t, 100, sb.Balance.Total, 1e-9)
		}
	}
}

func TestOpenOrderInsufficientBalance(t *testing.T) {
	venue := newTestVenue()

	results := venue.OpenOrders(context.Background(), []execution.Order[execution.RequestOpen]{
		limitRequest(instrument.SideBuy, 2000, 1), // needs 2000 usdt
	})
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, execution.ErrInsufficientBalance)
}

func TestPerItemResultsPreserveOrder(t *testing.T) {
	venue := newTestVenue()

	good := limitRequest(instrument.SideBuy, 2000, 0.01)
	bad := limitRequest(instrument.SideBuy, 2000, 100)
	results := venue.OpenOrders(context.Background(), []execution.Order[execution.RequestOpen]{good, bad})

	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, good.CID, results[0].Order.CID)
	assert.ErrorIs(t, results[1].Err, execution.ErrInsufficientBalance)
}

func TestCancelUnknownOrder(t *testing.T) {
	venue := newTestVenue()
	cid := execution.NewClientOrderID()

	results := venue.CancelOrders(context.Background(), []execution.Order[execution.RequestCancel]{{
		Exchange:   DefaultExchange,
		Instrument: ethUsdt,
		CID:        cid,
		Side:       instrument.SideBuy,
		State:      execution.RequestCancel{},
	}})
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, execution.ErrOrderNotFound)
}

func TestCancelReleasesLockedBalance(t *testing.T) {
	venue := newTestVenue()
	ctx := context.Background()

	request := limitRequest(instrument.SideBuy, 2000, 0.01)
	results := venue.OpenOrders(ctx, []execution.Order[execution.RequestOpen]{request})
	require.NoError(t, results[0].Err)

	cancels := venue.CancelOrders(ctx, []execution.Order[execution.RequestCancel]{{
		Exchange:   DefaultExchange,
		Instrument: ethUsdt,
		CID:        request.CID,
		Side:       request.Side,
		State:      execution.RequestCancel{OrderID: results[0].Order.State.OrderID},
	}})
	require.NoError(t, cancels[0].Err)
	assert.Equal(t, request.CID, cancels[0].Order.CID)

	balances, err := venue.FetchBalances(ctx)
	require.NoError(t, err)
	for _, sb := range balances {
		if sb.Symbol == "usdt" {
			assert.InDelta(t, 100, sb.Balance.Available, 1e-9)
		}
	}
}

func TestCancelOrdersAllSweepsBook(t *testing.T) {
	venue := newTestVenue()
	ctx := context.Background()

	venue.OpenOrders(ctx, []execution.Order[execution.RequestOpen]{
		limitRequest(instrument.SideBuy, 2000, 0.01),
		limitRequest(instrument.SideSell, 2100, 0.5),
	})

	cancelled, err := venue.CancelOrdersAll(ctx)
	require.NoError(t, err)
	assert.Len(t, cancelled, 2)

	open, err := venue.FetchOrdersOpen(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestMarketOrderFillsImmediately(t *testing.T) {
	venue := newTestVenue()
	ctx := context.Background()

	stream, err := venue.InitStream(ctx)
	require.NoError(t, err)

	results := venue.OpenOrders(ctx, []execution.Order[execution.RequestOpen]{{
		Exchange:   DefaultExchange,
		Instrument: ethUsdt,
		CID:        execution.NewClientOrderID(),
		Side:       instrument.SideBuy,
		State:      execution.RequestOpen{Kind: execution.KindMarket, Quantity: 0.01},
	}})
	require.NoError(t, results[0].Err)
	assert.InDelta(t, 0.01, results[0].Order.State.Filled, 1e-12)
	assert.InDelta(t, 2000, results[0].Order.State.Price, 1e-9)

	kind := <-stream
	trade, ok := kind.(execution.TradeUpdate)
	require.True(t, ok, "expected TradeUpdate, got %T", kind)
	assert.InDelta(t, 0.01, trade.Quantity, 1e-12)
}

func TestInjectedFault(t *testing.T) {
	venue := New(Config{Fault: assert.AnError, Log: zerolog.Nop()})

	_, err := venue.FetchBalances(context.Background())
	assert.ErrorIs(t, err, execution.ErrSimulated)

	results := venue.OpenOrders(context.Background(), []execution.Order[execution.RequestOpen]{
		limitRequest(instrument.SideBuy, 1, 1),
	})
	assert.ErrorIs(t, results[0].Err, execution.ErrSimulated)
}
