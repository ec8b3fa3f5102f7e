package portal

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sector-fi/barter-mono/internal/events"
	"github.com/sector-fi/barter-mono/pkg/execution"
	"github.com/sector-fi/barter-mono/pkg/instrument"
)

var (
	exBinance = instrument.Exchange("binance_futures_usd")
	ethUsdt   = instrument.New("eth", "usdt", instrument.KindPerpetual)
)

// mockClient scripts per-method behavior.
type mockClient struct {
	exchange    instrument.Exchange
	stream      chan execution.AccountEventKind
	open        func([]execution.Order[execution.RequestOpen]) []execution.OpenResult
	cancel      func([]execution.Order[execution.RequestCancel]) []execution.CancelResult
	cancelAll   func() ([]execution.Order[execution.Cancelled], error)
	balances    func() ([]execution.SymbolBalance, error)
	openOrders  func() ([]execution.Order[execution.Open], error)
}

func (m *mockClient) Exchange() instrument.Exchange { return m.exchange }

func (m *mockClient) InitStream(ctx context.Context) (<-chan execution.AccountEventKind, error) {
	if m.stream == nil {
		return nil, nil
	}
	return m.stream, nil
}

func (m *mockClient) FetchBalances(ctx context.Context) ([]execution.SymbolBalance, error) {
	if m.balances == nil {
		return nil, nil
	}
	return m.balances()
}

func (m *mockClient) FetchOrdersOpen(ctx context.Context) ([]execution.Order[execution.Open], error) {
	if m.openOrders == nil {
		return nil, nil
	}
	return m.openOrders()
}

func (m *mockClient) OpenOrders(ctx context.Context, orders []execution.Order[execution.RequestOpen]) []execution.OpenResult {
	return m.open(orders)
}

func (m *mockClient) CancelOrders(ctx context.Context, orders []execution.Order[execution.RequestCancel]) []execution.CancelResult {
	return m.cancel(orders)
}

func (m *mockClient) CancelOrdersAll(ctx context.Context) ([]execution.Order[execution.Cancelled], error) {
	return m.cancelAll()
}

func startPortal(t *testing.T, client execution.Client) (chan execution.Request, *events.Feed) {
	t.Helper()

	requestTx := make(chan execution.Request, 16)
	feed := events.NewFeed()
	p, err := New(
		map[instrument.Exchange]execution.Client{client.Exchange(): client},
		requestTx, feed, nil, zerolog.Nop(),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go p.Run(ctx)

	return requestTx, feed
}

// nextAccountEvent pulls the next event off the feed with a timeout.
func nextAccountEvent(t *testing.T, feed *events.Feed) execution.AccountEvent {
	t.Helper()

	got := make(chan events.Event, 1)
	go func() {
		if event, ok := feed.Next(); ok {
			got <- event
		}
	}()
	select {
	case event := <-got:
		accountEvent, ok := event.(events.Account)
		require.True(t, ok, "expected account event, got %T", event)
		return execution.AccountEvent(accountEvent)
	case <-time.After(time.Second):
		t.Fatal("no account event forwarded")
		return execution.AccountEvent{}
	}
}

func requestOpen(cid execution.ClientOrderID) execution.Order[execution.RequestOpen] {
	return execution.Order[execution.RequestOpen]{
		Exchange:   exBinance,
		Instrument: ethUsdt,
		CID:        cid,
		Side:       instrument.SideBuy,
		State:      execution.RequestOpen{Kind: execution.KindLimit, Price: 10000, Quantity: 0.001},
	}
}

// Successful opens come back as OrdersNew; failed elements are dropped.
func TestOpenOrdersForwardsSuccessesOnly(t *testing.T) {
	okCID, badCID := execution.NewClientOrderID(), execution.NewClientOrderID()

	client := &mockClient{
		exchange: exBinance,
		open: func(orders []execution.Order[execution.RequestOpen]) []execution.OpenResult {
			require.Len(t, orders, 2)
			return []execution.OpenResult{
				{Order: execution.Order[execution.Open]{
					Exchange: exBinance, Instrument: ethUsdt, CID: orders[0].CID, Side: orders[0].Side,
					State: execution.Open{OrderID: "22542179", Price: 10000, Quantity: 0.001},
				}},
				{Err: execution.InsufficientBalance("usdt")},
			}
		},
	}
	requestTx, feed := startPortal(t, client)

	requestTx <- execution.OpenOrders{{
		Exchange: exBinance,
		Orders:   []execution.Order[execution.RequestOpen]{requestOpen(okCID), requestOpen(badCID)},
	}}

	event := nextAccountEvent(t, feed)
	assert.Equal(t, exBinance, event.Exchange)
	assert.False(t, event.ReceivedTime.IsZero())

	opened, ok := event.Kind.(execution.OrdersNew)
	require.True(t, ok, "expected OrdersNew, got %T", event.Kind)
	require.Len(t, opened, 1)
	assert.Equal(t, okCID, opened[0].CID)
}

// Cancel-all with two open orders reports both CIDs cancelled.
func TestCancelOrdersAll(t *testing.T) {
	first, second := execution.NewClientOrderID(), execution.NewClientOrderID()

	client := &mockClient{
		exchange: exBinance,
		cancelAll: func() ([]execution.Order[execution.Cancelled], error) {
			return []execution.Order[execution.Cancelled]{
				{Exchange: exBinance, Instrument: ethUsdt, CID: first, Side: instrument.SideBuy, State: execution.Cancelled{OrderID: "1"}},
				{Exchange: exBinance, Instrument: ethUsdt, CID: second, Side: instrument.SideSell, State: execution.Cancelled{OrderID: "2"}},
			}, nil
		},
	}
	requestTx, feed := startPortal(t, client)

	requestTx <- execution.CancelOrdersAll{exBinance}

	event := nextAccountEvent(t, feed)
	cancelled, ok := event.Kind.(execution.OrdersCancelled)
	require.True(t, ok, "expected OrdersCancelled, got %T", event.Kind)
	require.Len(t, cancelled, 2)

	cids := []execution.ClientOrderID{cancelled[0].CID, cancelled[1].CID}
	assert.Contains(t, cids, first)
	assert.Contains(t, cids, second)
}

// A venue-wide auth failure yields no account event and no state mutation.
func TestFetchBalancesAuthFailureForwardsNothing(t *testing.T) {
	client := &mockClient{
		exchange: exBinance,
		balances: func() ([]execution.SymbolBalance, error) {
			return nil, execution.Unauthorised("Invalid login credentials")
		},
	}
	requestTx, feed := startPortal(t, client)

	requestTx <- execution.FetchBalances{exBinance}

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, feed.Len(), "auth failure must not produce an account event")
}

func TestFetchOrdersOpenForwardsSnapshot(t *testing.T) {
	cid := execution.NewClientOrderID()
	client := &mockClient{
		exchange: exBinance,
		openOrders: func() ([]execution.Order[execution.Open], error) {
			return []execution.Order[execution.Open]{{
				Exchange: exBinance, Instrument: ethUsdt, CID: cid, Side: instrument.SideBuy,
				State: execution.Open{OrderID: "5", Price: 10000, Quantity: 0.001},
			}}, nil
		},
	}
	requestTx, feed := startPortal(t, client)

	requestTx <- execution.FetchOrdersOpen{exBinance}

	event := nextAccountEvent(t, feed)
	snapshot, ok := event.Kind.(execution.OrdersOpen)
	require.True(t, ok, "expected OrdersOpen, got %T", event.Kind)
	require.Len(t, snapshot, 1)
	assert.Equal(t, cid, snapshot[0].CID)
}

// Venue push events are tagged with their exchange and forwarded.
func TestAccountStreamForwarded(t *testing.T) {
	stream := make(chan execution.AccountEventKind, 1)
	client := &mockClient{exchange: exBinance, stream: stream}
	_, feed := startPortal(t, client)

	stream <- execution.Balances{{Symbol: "usdt", Balance: execution.Balance{Total: 10, Available: 10}}}

	event := nextAccountEvent(t, feed)
	assert.Equal(t, exBinance, event.Exchange)
	_, ok := event.Kind.(execution.Balances)
	assert.True(t, ok, "expected Balances, got %T", event.Kind)
}

// An unknown exchange in a request is a programmer error.
func TestUnknownExchangePanics(t *testing.T) {
	client := &mockClient{exchange: exBinance}
	requestTx := make(chan execution.Request, 1)
	feed := events.NewFeed()
	p, err := New(map[instrument.Exchange]execution.Client{exBinance: client}, requestTx, feed, nil, zerolog.Nop())
	require.NoError(t, err)

	assert.Panics(t, func() {
		p.client("kraken")
	})
}
