// Package instrument defines the shared market vocabulary: venues, symbols,
// sides and the instruments traded on them. It has no dependencies on
// internal packages, so it can be imported by any layer.
package instrument

import (
	"fmt"
	"strings"
	"time"
)

// Symbol is a lowercase currency or token ticker, e.g. "eth", "usdt".
type Symbol string

// NewSymbol normalizes the input to the canonical lowercase form.
func NewSymbol(s string) Symbol {
	return Symbol(strings.ToLower(strings.TrimSpace(s)))
}

func (s Symbol) String() string { return string(s) }

// Exchange is an opaque interned venue name, e.g. "binance_futures_usd".
// It keys all account state.
type Exchange string

func (e Exchange) String() string { return string(e) }

// Side denotes order side.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Kind identifies the class of an instrument.
type Kind string

const (
	KindSpot      Kind = "spot"
	KindPerpetual Kind = "perpetual"
	KindFuture    Kind = "future"
	KindOption    Kind = "option"
	KindErc20     Kind = "erc20"
)

// OptionStyle distinguishes calls from puts.
type OptionStyle string

const (
	OptionCall OptionStyle = "call"
	OptionPut  OptionStyle = "put"
)

// Contract carries the kind-specific terms of a derivative instrument.
// Zero value for spot, perpetual and erc20 instruments.
type Contract struct {
	Expiry time.Time
	Strike float64
	Style  OptionStyle
}

// Instrument is a (base, quote, kind) triple, the unit of position tracking.
// Immutable after creation.
type Instrument struct {
	Base     Symbol
	Quote    Symbol
	Kind     Kind
	Contract Contract
}

// New builds a spot/perpetual/erc20 style instrument without contract terms.
func New(base, quote string, kind Kind) Instrument {
	return Instrument{Base: NewSymbol(base), Quote: NewSymbol(quote), Kind: kind}
}

// NewFuture builds a dated future.
func NewFuture(base, quote string, expiry time.Time) Instrument {
	return Instrument{
		Base:     NewSymbol(base),
		Quote:    NewSymbol(quote),
		Kind:     KindFuture,
		Contract: Contract{Expiry: expiry},
	}
}

// NewOption builds an option contract.
func NewOption(base, quote string, expiry time.Time, strike float64, style OptionStyle) Instrument {
	return Instrument{
		Base:     NewSymbol(base),
		Quote:    NewSymbol(quote),
		Kind:     KindOption,
		Contract: Contract{Expiry: expiry, Strike: strike, Style: style},
	}
}

func (i Instrument) String() string {
	return fmt.Sprintf("%s_%s_%s", i.Base, i.Quote, i.Kind)
}

// VenueSymbol is the UPPERCASE concatenated form most centralized venues
// expect, e.g. "ETHUSDT".
func (i Instrument) VenueSymbol() string {
	return strings.ToUpper(string(i.Base) + string(i.Quote))
}

// Market is a unique combination of an Exchange and an Instrument.
type Market struct {
	Exchange   Exchange
	Instrument Instrument
}

// ID is the lowercase identifier used to key market state,
// e.g. "binance_futures_usd_eth_usdt_perpetual".
func (m Market) ID() string {
	return strings.ToLower(fmt.Sprintf("%s_%s", m.Exchange, m.Instrument))
}
