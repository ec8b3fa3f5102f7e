// Package market defines normalized public market events and the feeds that
// produce them: the Binance websocket stream and the on-chain erc20 transfer
// watcher. Feeds push into the central event queue; the engine is the only
// consumer.
package market

import (
	"time"

	"github.com/sector-fi/barter-mono/pkg/instrument"
)

// Event is a normalized public market observation. ReceivedTime is stamped
// locally and is monotone per feed; ExchangeTime is the venue's stamp and may
// not be.
type Event struct {
	ExchangeTime time.Time
	ReceivedTime time.Time
	Exchange     instrument.Exchange
	Instrument   instrument.Instrument
	Kind         Kind
}

// Kind is the closed set of market event payloads. The concrete types below
// are the only implementations.
type Kind interface {
	isMarketKind()
}

// Sink receives published market events. Implemented by events.MarketSink,
// which adapts a feed's central queue for market producers.
type Sink interface {
	Push(Event)
}

// Trade is a public trade print.
type Trade struct {
	ID       string
	Price    float64
	Quantity float64
	Side     instrument.Side
}

// Candle is one closed OHLCV bar.
type Candle struct {
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	Interval string
}

// OrderBookL1 is the top of book.
type OrderBookL1 struct {
	BestBid Level
	BestAsk Level
}

// Level is one price level of an order book.
type Level struct {
	Price    float64
	Quantity float64
}

// OrderBookL2 is a depth snapshot or delta.
type OrderBookL2 struct {
	Bids []Level
	Asks []Level
}

// Liquidation is a forced position close print.
type Liquidation struct {
	Side     instrument.Side
	Price    float64
	Quantity float64
}

// Erc20Transfer is an on-chain token transfer observation.
type Erc20Transfer struct {
	From  string
	To    string
	Value float64
}

func (Trade) isMarketKind()         {}
func (Candle) isMarketKind()        {}
func (OrderBookL1) isMarketKind()   {}
func (OrderBookL2) isMarketKind()   {}
func (Liquidation) isMarketKind()   {}
func (Erc20Transfer) isMarketKind() {}
