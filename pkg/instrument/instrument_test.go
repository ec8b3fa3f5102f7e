package instrument

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewNormalizesSymbols(t *testing.T) {
	inst := New(" ETH", "Usdt ", KindPerpetual)
	assert.Equal(t, Symbol("eth"), inst.Base)
	assert.Equal(t, Symbol("usdt"), inst.Quote)
	assert.Equal(t, "eth_usdt_perpetual", inst.String())
	assert.Equal(t, "ETHUSDT", inst.VenueSymbol())
}

func TestSideOpposite(t *testing.T) {
	assert.Equal(t, SideSell, SideBuy.Opposite())
	assert.Equal(t, SideBuy, SideSell.Opposite())
}

func TestMarketID(t *testing.T) {
	m := Market{
		Exchange:   "binance_futures_usd",
		Instrument: New("eth", "usdt", KindPerpetual),
	}
	assert.Equal(t, "binance_futures_usd_eth_usdt_perpetual", m.ID())
}

func TestContractInstruments(t *testing.T) {
	expiry := time.Date(2026, 12, 25, 8, 0, 0, 0, time.UTC)

	future := NewFuture("btc", "usdt", expiry)
	assert.Equal(t, KindFuture, future.Kind)
	assert.Equal(t, expiry, future.Contract.Expiry)

	option := NewOption("eth", "usdt", expiry, 2500, OptionCall)
	assert.Equal(t, KindOption, option.Kind)
	assert.Equal(t, 2500.0, option.Contract.Strike)
	assert.Equal(t, OptionCall, option.Contract.Style)
}
