// Package indicators maintains per-market price windows and computes the
// core indicator values strategies consume. Trackers are only touched from
// the engine goroutine, so they carry no locks.
package indicators

import "github.com/sector-fi/barter-mono/pkg/instrument"

// Tracker holds rolling price windows keyed by market.
type Tracker struct {
	prices  map[string][]float64
	window  int
	shortMA int
	longMA  int
	rsi     int
}

// NewTracker builds a tracker with the given indicator windows.
func NewTracker(shortMA, longMA, rsiPeriod, window int) *Tracker {
	if window < longMA {
		window = longMA
	}
	return &Tracker{
		prices:  make(map[string][]float64),
		window:  window,
		shortMA: shortMA,
		longMA:  longMA,
		rsi:     rsiPeriod,
	}
}

// Update ingests a new price and returns the latest computed values.
func (t *Tracker) Update(m instrument.Market, price float64) map[string]float64 {
	arr := append(t.prices[m.ID()], price)
	if len(arr) > t.window {
		arr = arr[len(arr)-t.window:]
	}
	t.prices[m.ID()] = arr

	return map[string]float64{
		"sma_short": SMA(arr, t.shortMA),
		"sma_long":  SMA(arr, t.longMA),
		"rsi":       RSI(arr, t.rsi),
	}
}

// Last returns the most recent price seen for a market, or 0.
func (t *Tracker) Last(m instrument.Market) float64 {
	arr := t.prices[m.ID()]
	if len(arr) == 0 {
		return 0
	}
	return arr[len(arr)-1]
}

// SMA calculates the simple moving average for the last period values.
func SMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}
	sum := 0.0
	for i := len(values) - period; i < len(values); i++ {
		sum += values[i]
	}
	return sum / float64(period)
}

// RSI computes a basic Relative Strength Index with smoothing disabled.
func RSI(values []float64, period int) float64 {
	if period <= 0 || len(values) < period+1 {
		return 0
	}

	gain := 0.0
	loss := 0.0
	for i := len(values) - period; i < len(values); i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			gain += change
		} else {
			loss -= change
		}
	}

	if loss == 0 {
		return 100
	}
	rs := gain / loss
	return 100 - (100 / (1 + rs))
}
