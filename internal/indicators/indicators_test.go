package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sector-fi/barter-mono/pkg/instrument"
)

func TestSMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	assert.InDelta(t, 4, SMA(values, 3), 1e-9)
	assert.InDelta(t, 3, SMA(values, 5), 1e-9)
	assert.Zero(t, SMA(values, 6), "insufficient data returns zero")
	assert.Zero(t, SMA(values, 0))
}

func TestRSIExtremes(t *testing.T) {
	rising := []float64{1, 2, 3, 4, 5, 6}
	assert.InDelta(t, 100, RSI(rising, 5), 1e-9)

	falling := []float64{6, 5, 4, 3, 2, 1}
	assert.InDelta(t, 0, RSI(falling, 5), 1e-9)

	assert.Zero(t, RSI(rising, 10), "insufficient data returns zero")
}

func TestTrackerWindowsTrim(t *testing.T) {
	m := instrument.Market{
		Exchange:   "simulated",
		Instrument: instrument.New("eth", "usdt", instrument.KindSpot),
	}
	tracker := NewTracker(2, 3, 2, 3)

	var values map[string]float64
	for _, price := range []float64{1, 2, 3, 4, 5} {
		values = tracker.Update(m, price)
	}

	// Window holds [3,4,5].
	assert.InDelta(t, 4.5, values["sma_short"], 1e-9)
	assert.InDelta(t, 4, values["sma_long"], 1e-9)
	assert.InDelta(t, 5, tracker.Last(m), 1e-9)
}
