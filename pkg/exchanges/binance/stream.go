package binance

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sector-fi/barter-mono/pkg/execution"
	"github.com/sector-fi/barter-mono/pkg/instrument"
)

// listenKeyKeepAlive is well inside the venue's 60 minute expiry.
const listenKeyKeepAlive = 30 * time.Minute

// InitStream obtains a listen key, dials the user-data websocket and returns
// the normalized account event stream. The stream closes when ctx is
// cancelled or the socket fails terminally; a broken stream is not resumed,
// and state is re-synced by the periodic reconciliation snapshots instead.
func (c *Client) InitStream(ctx context.Context) (<-chan execution.AccountEventKind, error) {
	listenKey, err := c.createListenKey(ctx)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsHost+"/ws/"+listenKey, nil)
	if err != nil {
		return nil, execution.SocketError(err)
	}
	c.log.Info().Msg("user-data stream connected")

	out := make(chan execution.AccountEventKind, 256)

	// Keepalive loop.
	go func() {
		ticker := time.NewTicker(listenKeyKeepAlive)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = conn.Close()
				return
			case <-ticker.C:
				if err := c.keepAliveListenKey(ctx, listenKey); err != nil {
					c.log.Error().Err(err).Msg("listen key keepalive failed")
				}
			}
		}
	}()

	// Reader loop.
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					c.log.Error().Err(err).Msg("user-data stream read failed")
				}
				return
			}
			for _, kind := range c.parseUserData(message) {
				select {
				case out <- kind:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (c *Client) createListenKey(ctx context.Context) (string, error) {
	response, err := c.rest.R().SetContext(ctx).Post(c.path("listenKey"))
	if err != nil {
		return "", execution.SocketError(err)
	}
	if response.IsError() {
		return "", c.classify(response.Body(), response.StatusCode())
	}
	var out listenKeyResponse
	if err := json.Unmarshal(response.Body(), &out); err != nil {
		return "", execution.SocketError(err)
	}
	return out.ListenKey, nil
}

func (c *Client) keepAliveListenKey(ctx context.Context, listenKey string) error {
	request := c.rest.R().SetContext(ctx)
	if c.market == MarketSpot {
		request.SetQueryParam("listenKey", listenKey)
	}
	response, err := request.Put(c.path("listenKey"))
	if err != nil {
		return execution.SocketError(err)
	}
	if response.IsError() {
		return c.classify(response.Body(), response.StatusCode())
	}
	return nil
}

// parseUserData maps one raw websocket frame onto zero or more normalized
// account event kinds. Unrecognized event types are ignored.
func (c *Client) parseUserData(message []byte) []execution.AccountEventKind {
	var envelope wsEnvelope
	if err := json.Unmarshal(message, &envelope); err != nil {
		c.log.Warn().Err(err).Msg("unparseable user-data frame")
		return nil
	}

	switch envelope.EventType {
	case "ORDER_TRADE_UPDATE":
		return c.parseOrderTradeUpdate(message)
	case "ACCOUNT_UPDATE":
		return c.parseAccountUpdate(message)
	default:
		return nil
	}
}

func (c *Client) parseOrderTradeUpdate(message []byte) []execution.AccountEventKind {
	var update wsOrderTradeUpdate
	if err := json.Unmarshal(message, &update); err != nil {
		c.log.Warn().Err(err).Msg("unparseable ORDER_TRADE_UPDATE")
		return nil
	}
	order := update.Order

	inst, ok := c.bySymbol[order.Symbol]
	if !ok {
		return nil
	}
	side := instrument.SideBuy
	if strings.EqualFold(order.Side, "SELL") {
		side = instrument.SideSell
	}
	cid := execution.ParseClientOrderID(order.ClientOrderID)

	var kinds []execution.AccountEventKind

	if strings.EqualFold(order.ExecutionType, "TRADE") {
		price := float64(order.LastFilledPrice)
		if price == 0 && float64(order.CumFilledQty) > 0 {
			price = float64(order.Price)
		}
		kinds = append(kinds, execution.TradeUpdate{
			ID:         strconv.FormatInt(order.TradeID, 10),
			CID:        cid,
			Instrument: inst,
			Side:       side,
			Price:      price,
			Quantity:   float64(order.LastFilledQty),
			Fees: execution.Fees{
				Symbol: instrument.NewSymbol(order.CommissionAsset),
				Amount: float64(order.Commission),
			},
		})
	}

	switch strings.ToUpper(order.Status) {
	case "CANCELED", "EXPIRED", "FILLED":
		kinds = append(kinds, execution.OrdersCancelled{{
			Exchange:   c.exchange,
			Instrument: inst,
			CID:        cid,
			Side:       side,
			State:      execution.Cancelled{OrderID: execution.OrderID(strconv.FormatInt(order.OrderID, 10))},
		}})
	}

	return kinds
}

func (c *Client) parseAccountUpdate(message []byte) []execution.AccountEventKind {
	var update wsAccountUpdate
	if err := json.Unmarshal(message, &update); err != nil {
		c.log.Warn().Err(err).Msg("unparseable ACCOUNT_UPDATE")
		return nil
	}

	var kinds []execution.AccountEventKind

	if len(update.Data.Balances) > 0 {
		balances := make(execution.Balances, 0, len(update.Data.Balances))
		for _, b := range update.Data.Balances {
			balances = append(balances, execution.SymbolBalance{
				Symbol: instrument.NewSymbol(b.Asset),
				Balance: execution.Balance{
					Total:     float64(b.WalletBalance),
					Available: float64(b.CrossWalletBalance),
				},
			})
		}
		kinds = append(kinds, balances)
	}

	if len(update.Data.Positions) > 0 {
		positions := make(execution.Positions, 0, len(update.Data.Positions))
		for _, p := range update.Data.Positions {
			inst, ok := c.bySymbol[p.Symbol]
			if !ok {
				continue
			}
			positions = append(positions, execution.Position{
				Instrument:    inst,
				Quantity:      float64(p.PositionAmt),
				EntryPrice:    float64(p.EntryPrice),
				UnrealisedPnl: float64(p.UnrealisedPnl),
			})
		}
		if len(positions) > 0 {
			kinds = append(kinds, positions)
		}
	}

	return kinds
}
