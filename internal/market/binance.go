package market

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/sector-fi/barter-mono/pkg/instrument"
)

// Channel names a public stream kind.
type Channel string

const (
	ChannelTrades       Channel = "trades"
	ChannelBookL1       Channel = "book_l1"
	ChannelBookL2       Channel = "book_l2"
	ChannelCandles      Channel = "candles"
	ChannelLiquidations Channel = "liquidations"
)

// Subscription is one (instrument, channel) pair on one venue.
type Subscription struct {
	Instrument instrument.Instrument
	Channel    Channel
	// Interval applies to candle subscriptions, e.g. "1m".
	Interval string
}

// ReconnectConfig defines the stream reconnection behavior.
type ReconnectConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultReconnectConfig returns sensible defaults.
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		MaxRetries:   10,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
	}
}

// BinanceFeed streams public market data from the Binance futures combined
// websocket into the central event feed.
type BinanceFeed struct {
	Exchange      instrument.Exchange
	StreamURL     string // e.g. wss://fstream.binance.com
	Subscriptions []Subscription
	Feed          Sink
	Tap           *Tap
	Reconnect     ReconnectConfig
	Log           zerolog.Logger

	bySymbol map[string]instrument.Instrument
}

// combined stream envelope.
type streamFrame struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// Run dials and pumps frames until ctx is cancelled, reconnecting with
// exponential backoff. Blocking; run on its own goroutine.
func (f *BinanceFeed) Run(ctx context.Context) {
	f.Log = f.Log.With().Str("component", "binance_feed").Logger()
	f.bySymbol = make(map[string]instrument.Instrument, len(f.Subscriptions))
	for _, sub := range f.Subscriptions {
		f.bySymbol[strings.ToUpper(sub.Instrument.VenueSymbol())] = sub.Instrument
	}

	url := f.StreamURL + "/stream?streams=" + f.streamNames()
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}
		if err := f.pump(ctx, url); err != nil {
			f.Log.Error().Err(err).Msg("market stream failed")
		}
		attempt++
		if f.Reconnect.MaxRetries > 0 && attempt > f.Reconnect.MaxRetries {
			f.Log.Error().Int("attempts", attempt).Msg("market stream giving up")
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(f.backoff(attempt)):
		}
	}
}

func (f *BinanceFeed) backoff(attempt int) time.Duration {
	cfg := f.Reconnect
	if cfg.InitialDelay == 0 {
		cfg = DefaultReconnectConfig()
	}
	delay := float64(cfg.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= cfg.Multiplier
	}
	if time.Duration(delay) > cfg.MaxDelay {
		return cfg.MaxDelay
	}
	return time.Duration(delay)
}

func (f *BinanceFeed) streamNames() string {
	names := make([]string, 0, len(f.Subscriptions))
	for _, sub := range f.Subscriptions {
		symbol := strings.ToLower(sub.Instrument.VenueSymbol())
		switch sub.Channel {
		case ChannelTrades:
			names = append(names, symbol+"@aggTrade")
		case ChannelBookL1:
			names = append(names, symbol+"@bookTicker")
		case ChannelBookL2:
			names = append(names, symbol+"@depth@100ms")
		case ChannelCandles:
			interval := sub.Interval
			if interval == "" {
				interval = "1m"
			}
			names = append(names, symbol+"@kline_"+interval)
		case ChannelLiquidations:
			names = append(names, symbol+"@forceOrder")
		}
	}
	return strings.Join(names, "/")
}

func (f *BinanceFeed) pump(ctx context.Context, url string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close()
	f.Log.Info().Int("subscriptions", len(f.Subscriptions)).Msg("market stream connected")

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		f.Tap.Write(frame)
		if event, ok := f.parse(frame); ok {
			f.Feed.Push(event)
		}
	}
}

// parse maps a combined-stream frame onto a normalized market event.
func (f *BinanceFeed) parse(frame []byte) (Event, bool) {
	var wrapped streamFrame
	if err := json.Unmarshal(frame, &wrapped); err != nil {
		f.Log.Warn().Err(err).Msg("unparseable market frame")
		return Event{}, false
	}
	data := wrapped.Data
	stream := wrapped.Stream
	if len(data) == 0 {
		// Frames from /ws single-stream endpoints are unwrapped: dispatch on
		// the payload's event type instead of the stream name.
		data = frame
		var head struct {
			EventType string `json:"e"`
		}
		_ = json.Unmarshal(frame, &head)
		stream = "@" + head.EventType
	}

	switch {
	case strings.Contains(stream, "@aggTrade"):
		return f.parseTrade(data)
	case strings.Contains(stream, "@bookTicker"):
		return f.parseBookTicker(data)
	case strings.Contains(stream, "@depth"):
		return f.parseDepth(data)
	case strings.Contains(stream, "@kline"):
		return f.parseKline(data)
	case strings.Contains(stream, "@forceOrder"):
		return f.parseLiquidation(data)
	default:
		return Event{}, false
	}
}

func (f *BinanceFeed) event(symbol string, exchangeTime time.Time, kind Kind) (Event, bool) {
	inst, ok := f.bySymbol[strings.ToUpper(symbol)]
	if !ok {
		return Event{}, false
	}
	return Event{
		ExchangeTime: exchangeTime,
		ReceivedTime: time.Now(),
		Exchange:     f.Exchange,
		Instrument:   inst,
		Kind:         kind,
	}, true
}

func (f *BinanceFeed) parseTrade(data []byte) (Event, bool) {
	var t struct {
		EventTime int64  `json:"E"`
		Symbol    string `json:"s"`
		TradeID   int64  `json:"a"`
		Price     string `json:"p"`
		Quantity  string `json:"q"`
		IsMaker   bool   `json:"m"`
	}
	if err := json.Unmarshal(data, &t); err != nil {
		return Event{}, false
	}
	side := instrument.SideBuy
	if t.IsMaker {
		// Buyer is the maker: the aggressor sold.
		side = instrument.SideSell
	}
	return f.event(t.Symbol, time.UnixMilli(t.EventTime), Trade{
		ID:       strconv.FormatInt(t.TradeID, 10),
		Price:    toFloat(t.Price),
		Quantity: toFloat(t.Quantity),
		Side:     side,
	})
}

func (f *BinanceFeed) parseBookTicker(data []byte) (Event, bool) {
	var t struct {
		EventTime int64  `json:"E"`
		Symbol    string `json:"s"`
		BidPrice  string `json:"b"`
		BidQty    string `json:"B"`
		AskPrice  string `json:"a"`
		AskQty    string `json:"A"`
	}
	if err := json.Unmarshal(data, &t); err != nil {
		return Event{}, false
	}
	return f.event(t.Symbol, time.UnixMilli(t.EventTime), OrderBookL1{
		BestBid: Level{Price: toFloat(t.BidPrice), Quantity: toFloat(t.BidQty)},
		BestAsk: Level{Price: toFloat(t.AskPrice), Quantity: toFloat(t.AskQty)},
	})
}

func (f *BinanceFeed) parseDepth(data []byte) (Event, bool) {
	var t struct {
		EventTime int64       `json:"E"`
		Symbol    string      `json:"s"`
		Bids      [][2]string `json:"b"`
		Asks      [][2]string `json:"a"`
	}
	if err := json.Unmarshal(data, &t); err != nil {
		return Event{}, false
	}
	return f.event(t.Symbol, time.UnixMilli(t.EventTime), OrderBookL2{
		Bids: toLevels(t.Bids),
		Asks: toLevels(t.Asks),
	})
}

func (f *BinanceFeed) parseKline(data []byte) (Event, bool) {
	var t struct {
		EventTime int64  `json:"E"`
		Symbol    string `json:"s"`
		Kline     struct {
			Interval string `json:"i"`
			Open     string `json:"o"`
			High     string `json:"h"`
			Low      string `json:"l"`
			Close    string `json:"c"`
			Volume   string `json:"v"`
			Closed   bool   `json:"x"`
		} `json:"k"`
	}
	if err := json.Unmarshal(data, &t); err != nil {
		return Event{}, false
	}
	if !t.Kline.Closed {
		return Event{}, false
	}
	return f.event(t.Symbol, time.UnixMilli(t.EventTime), Candle{
		Open:     toFloat(t.Kline.Open),
		High:     toFloat(t.Kline.High),
		Low:      toFloat(t.Kline.Low),
		Close:    toFloat(t.Kline.Close),
		Volume:   toFloat(t.Kline.Volume),
		Interval: t.Kline.Interval,
	})
}

func (f *BinanceFeed) parseLiquidation(data []byte) (Event, bool) {
	var t struct {
		EventTime int64 `json:"E"`
		Order     struct {
			Symbol   string `json:"s"`
			Side     string `json:"S"`
			Price    string `json:"p"`
			Quantity string `json:"q"`
		} `json:"o"`
	}
	if err := json.Unmarshal(data, &t); err != nil {
		return Event{}, false
	}
	side := instrument.SideBuy
	if strings.EqualFold(t.Order.Side, "SELL") {
		side = instrument.SideSell
	}
	return f.event(t.Order.Symbol, time.UnixMilli(t.EventTime), Liquidation{
		Side:     side,
		Price:    toFloat(t.Order.Price),
		Quantity: toFloat(t.Order.Quantity),
	})
}

func toFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func toLevels(raw [][2]string) []Level {
	levels := make([]Level, 0, len(raw))
	for _, pair := range raw {
		levels = append(levels, Level{Price: toFloat(pair[0]), Quantity: toFloat(pair[1])})
	}
	return levels
}
