package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sector-fi/barter-mono/pkg/instrument"
)

var ethUsdt = instrument.New("eth", "usdt", instrument.KindPerpetual)

func TestClientOrderIDUnique(t *testing.T) {
	seen := make(map[ClientOrderID]struct{})
	for i := 0; i < 1000; i++ {
		cid := NewClientOrderID()
		_, dup := seen[cid]
		require.False(t, dup)
		seen[cid] = struct{}{}
	}
}

func TestParseClientOrderIDRoundTrip(t *testing.T) {
	cid := NewClientOrderID()
	assert.Equal(t, cid, ParseClientOrderID(cid.String()))
}

func TestParseClientOrderIDForeignIDStable(t *testing.T) {
	// A venue-generated id that is not a uuid must map deterministically.
	first := ParseClientOrderID("web_abc123")
	second := ParseClientOrderID("web_abc123")
	other := ParseClientOrderID("web_abc124")

	assert.Equal(t, first, second)
	assert.NotEqual(t, first, other)
}

// The state sequence of one order identity is a prefix of
// RequestOpen, InFlight, Open, Cancelled.
func TestOrderLifecycleTransitions(t *testing.T) {
	request := Order[RequestOpen]{
		Exchange:   "binance_futures_usd",
		Instrument: ethUsdt,
		CID:        NewClientOrderID(),
		Side:       instrument.SideBuy,
		State:      RequestOpen{Kind: KindLimit, Price: 10000, Quantity: 0.001},
	}

	inFlight := IntoInFlight(request)
	assert.Equal(t, request.CID, inFlight.CID)
	assert.Equal(t, request.Exchange, inFlight.Exchange)
	assert.Equal(t, request.Instrument, inFlight.Instrument)
	assert.Equal(t, request.Side, inFlight.Side)

	open := IntoOpen(inFlight, Open{OrderID: "22542179", Price: 10000, Quantity: 0.001})
	assert.Equal(t, request.CID, open.CID)
	assert.Equal(t, OrderID("22542179"), open.State.OrderID)
	assert.InDelta(t, 0.001, open.State.Remaining(), 1e-12)

	cancelled := IntoCancelled(open)
	assert.Equal(t, request.CID, cancelled.CID)
	assert.Equal(t, OrderID("22542179"), cancelled.State.OrderID)
}

func TestErrorTaxonomy(t *testing.T) {
	cid := NewClientOrderID()
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"builder", BuilderIncomplete("feed"), ErrBuilderIncomplete},
		{"insufficient", InsufficientBalance("usdt"), ErrInsufficientBalance},
		{"not_found", OrderNotFound(cid), ErrOrderNotFound},
		{"unsupported", UnsupportedOrderKind(KindLimit), ErrUnsupportedOrderKind},
		{"unauthorised", Unauthorised("Invalid login credentials"), ErrUnauthorised},
		{"socket", SocketError(assert.AnError), ErrSocket},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.err, tc.sentinel)
		})
	}
	assert.Contains(t, OrderNotFound(cid).Error(), cid.String())
}
