// Package binance implements the Binance execution client over the Spot and
// USDT-margined Futures APIs, live or testnet. Private REST requests are
// signed HMAC-SHA256 over the query string; private push updates arrive on
// the listen-key user-data websocket.
package binance

import (
	"encoding/json"
	"strconv"
)

// Market selects the API family.
type Market string

const (
	MarketSpot    Market = "spot"
	MarketFutures Market = "futures"
)

// float64String decodes the numeric strings Binance uses for quantities and
// prices into double precision.
type float64String float64

func (f *float64String) UnmarshalJSON(data []byte) error {
	if string(data) == "null" || string(data) == `""` {
		*f = 0
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Some endpoints send plain numbers.
		var v float64
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*f = float64String(v)
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = float64String(v)
	return nil
}

// orderResponse is the ack for POST /fapi/v1/order.
type orderResponse struct {
	Symbol        string        `json:"symbol"`
	OrderID       int64         `json:"orderId"`
	ClientOrderID string        `json:"clientOrderId"`
	Price         float64String `json:"price"`
	OrigQty       float64String `json:"origQty"`
	ExecutedQty   float64String `json:"executedQty"`
	Status        string        `json:"status"`
}

// openOrder is one element of GET /fapi/v1/openOrders.
type openOrder struct {
	Symbol        string        `json:"symbol"`
	OrderID       int64         `json:"orderId"`
	ClientOrderID string        `json:"clientOrderId"`
	Price         float64String `json:"price"`
	OrigQty       float64String `json:"origQty"`
	ExecutedQty   float64String `json:"executedQty"`
	Side          string        `json:"side"`
}

// futuresBalance is one element of GET /fapi/v2/balance.
type futuresBalance struct {
	Asset            string        `json:"asset"`
	Balance          float64String `json:"balance"`
	AvailableBalance float64String `json:"availableBalance"`
}

// spotBalance is one element of the spot account snapshot.
type spotBalance struct {
	Asset  string        `json:"asset"`
	Free   float64String `json:"free"`
	Locked float64String `json:"locked"`
}

type spotAccount struct {
	Balances []spotBalance `json:"balances"`
}

// apiError is Binance's error envelope.
type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

type listenKeyResponse struct {
	ListenKey string `json:"listenKey"`
}

// User-data stream payloads. Field names are the venue's short codes.

// wsEnvelope sniffs the event type before full decoding.
type wsEnvelope struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
}

// wsOrderTradeUpdate is the ORDER_TRADE_UPDATE payload (futures).
type wsOrderTradeUpdate struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	TradeTime int64  `json:"T"`
	Order     struct {
		Symbol          string        `json:"s"`
		ClientOrderID   string        `json:"c"`
		Side            string        `json:"S"`
		OrderType       string        `json:"o"`
		Price           float64String `json:"p"`
		Quantity        float64String `json:"q"`
		ExecutionType   string        `json:"x"`
		Status          string        `json:"X"`
		OrderID         int64         `json:"i"`
		LastFilledQty   float64String `json:"l"`
		CumFilledQty    float64String `json:"z"`
		LastFilledPrice float64String `json:"L"`
		Commission      float64String `json:"n"`
		CommissionAsset string        `json:"N"`
		TradeID         int64         `json:"t"`
	} `json:"o"`
}

// wsAccountUpdate is the ACCOUNT_UPDATE payload (futures).
type wsAccountUpdate struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	TradeTime int64  `json:"T"`
	Data      struct {
		Reason    string       `json:"m"`
		Balances  []wsBalance  `json:"B"`
		Positions []wsPosition `json:"P"`
	} `json:"a"`
}

type wsBalance struct {
	Asset              string        `json:"a"`
	WalletBalance      float64String `json:"wb"`
	CrossWalletBalance float64String `json:"cw"`
}

type wsPosition struct {
	Symbol        string        `json:"s"`
	PositionAmt   float64String `json:"pa"`
	EntryPrice    float64String `json:"ep"`
	UnrealisedPnl float64String `json:"up"`
}
