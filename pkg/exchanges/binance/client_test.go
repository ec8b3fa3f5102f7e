package binance

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sector-fi/barter-mono/pkg/execution"
	"github.com/sector-fi/barter-mono/pkg/instrument"
)

var ethUsdt = instrument.New("eth", "usdt", instrument.KindPerpetual)

func testClient() *Client {
	return &Client{
		exchange:  "binance_futures_usd",
		market:    MarketFutures,
		apiKey:    "vmPUZE6mv9SD5VNHk4HlWFsOr6aKE2zvsw0MuIgwCIPy6utIco14y7Ju91duEh8A",
		apiSecret: "NhqPtmdSJYdKjVHjA7PZj4Mge3R5YNiP1e3UZjInClVN65XAbvqqM6A7H5fATj0j",
		bySymbol:  map[string]instrument.Instrument{"ETHUSDT": ethUsdt},
		log:       zerolog.Nop(),
	}
}

// Signature must be byte-identical across runs for fixed inputs. The vector
// is the venue's published documentation example.
func TestSignatureDeterminism(t *testing.T) {
	c := testClient()
	query := "symbol=LTCBTC&side=BUY&type=LIMIT&timeInForce=GTC&quantity=1&price=0.1&recvWindow=5000&timestamp=1499827319559"
	want := "c8db56825ae71d6d79447849e617115f4a920fa2acdcab2b053c4b2838bd6b71"

	assert.Equal(t, want, c.sign(query))
	assert.Equal(t, c.sign(query), c.sign(query))
}

func TestClassifyUnauthorised(t *testing.T) {
	c := testClient()

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"message", `{"msg":"Invalid login credentials"}`, 400},
		{"code_2015", `{"code":-2015,"msg":"Invalid API-key, IP, or permissions for action."}`, 400},
		{"http_401", `{}`, 401},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := c.classify([]byte(tc.body), tc.status)
			assert.ErrorIs(t, err, execution.ErrUnauthorised)
		})
	}
}

func TestClassifyOrderAndBalanceErrors(t *testing.T) {
	c := testClient()

	err := c.classify([]byte(`{"code":-2011,"msg":"Unknown order sent."}`), 400)
	assert.ErrorIs(t, err, execution.ErrOrderNotFound)

	err = c.classify([]byte(`{"code":-2019,"msg":"Margin is insufficient."}`), 400)
	assert.ErrorIs(t, err, execution.ErrInsufficientBalance)

	err = c.classify([]byte(`{"code":-1121,"msg":"Invalid symbol."}`), 400)
	assert.ErrorIs(t, err, execution.ErrSocket)
}

func TestParseOrderTradeUpdateFill(t *testing.T) {
	c := testClient()
	cid := execution.NewClientOrderID()

	frame := `{
		"e":"ORDER_TRADE_UPDATE","E":1568879465651,"T":1568879465650,
		"o":{
			"s":"ETHUSDT","c":"` + cid.String() + `","S":"BUY","o":"LIMIT",
			"p":"10000","q":"0.001","x":"TRADE","X":"PARTIALLY_FILLED",
			"i":22542179,"l":"0.0005","z":"0.0005","L":"10000",
			"n":"0.01","N":"USDT","t":77
		}
	}`

	kinds := c.parseUserData([]byte(frame))
	require.Len(t, kinds, 1)

	trade, ok := kinds[0].(execution.TradeUpdate)
	require.True(t, ok, "expected TradeUpdate, got %T", kinds[0])
	assert.Equal(t, cid, trade.CID)
	assert.Equal(t, ethUsdt, trade.Instrument)
	assert.Equal(t, instrument.SideBuy, trade.Side)
	assert.InDelta(t, 10000, trade.Price, 1e-9)
	assert.InDelta(t, 0.0005, trade.Quantity, 1e-12)
	assert.Equal(t, instrument.Symbol("usdt"), trade.Fees.Symbol)
	assert.InDelta(t, 0.01, trade.Fees.Amount, 1e-12)
}

func TestParseOrderTradeUpdateCancel(t *testing.T) {
	c := testClient()
	cid := execution.NewClientOrderID()

	frame := `{
		"e":"ORDER_TRADE_UPDATE","E":1568879465651,"T":1568879465650,
		"o":{
			"s":"ETHUSDT","c":"` + cid.String() + `","S":"SELL","o":"LIMIT",
			"p":"10000","q":"0.001","x":"CANCELED","X":"CANCELED",
			"i":22542179,"l":"0","z":"0","L":"0","n":"0","N":null,"t":0
		}
	}`

	kinds := c.parseUserData([]byte(frame))
	require.Len(t, kinds, 1)

	cancelled, ok := kinds[0].(execution.OrdersCancelled)
	require.True(t, ok, "expected OrdersCancelled, got %T", kinds[0])
	require.Len(t, cancelled, 1)
	assert.Equal(t, cid, cancelled[0].CID)
	assert.Equal(t, execution.OrderID("22542179"), cancelled[0].State.OrderID)
}

func TestParseAccountUpdate(t *testing.T) {
	c := testClient()

	frame := `{
		"e":"ACCOUNT_UPDATE","E":1564745798939,"T":1564745798938,
		"a":{
			"m":"ORDER",
			"B":[{"a":"USDT","wb":"122624.12345678","cw":"100.12345678"}],
			"P":[{"s":"ETHUSDT","pa":"0.001","ep":"10000","up":"1.5"}]
		}
	}`

	kinds := c.parseUserData([]byte(frame))
	require.Len(t, kinds, 2)

	balances, ok := kinds[0].(execution.Balances)
	require.True(t, ok, "expected Balances, got %T", kinds[0])
	require.Len(t, balances, 1)
	assert.Equal(t, instrument.Symbol("usdt"), balances[0].Symbol)
	assert.InDelta(t, 122624.12345678, balances[0].Balance.Total, 1e-6)

	positions, ok := kinds[1].(execution.Positions)
	require.True(t, ok, "expected Positions, got %T", kinds[1])
	require.Len(t, positions, 1)
	assert.Equal(t, ethUsdt, positions[0].Instrument)
	assert.InDelta(t, 0.001, positions[0].Quantity, 1e-12)
}

func TestParseUserDataIgnoresUnknownEvents(t *testing.T) {
	c := testClient()
	assert.Empty(t, c.parseUserData([]byte(`{"e":"MARGIN_CALL","E":1}`)))
	assert.Empty(t, c.parseUserData([]byte(`not json`)))
}

func TestHostSelection(t *testing.T) {
	tests := []struct {
		market Market
		live   bool
		rest   string
		ws     string
	}{
		{MarketFutures, true, "https://fapi.binance.com", "wss://fstream.binance.com"},
		{MarketFutures, false, "https://testnet.binancefuture.com", "wss://fstream.binancefuture.com"},
		{MarketSpot, true, "https://api.binance.com", "wss://stream.binance.com:9443"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.rest, restHost(tc.market, tc.live))
		assert.Equal(t, tc.ws, wsHost(tc.market, tc.live))
	}
}

func TestFloat64String(t *testing.T) {
	var order openOrder
	payload := `{"symbol":"ETHUSDT","orderId":1,"clientOrderId":"x","price":"10000.5","origQty":"0.001","executedQty":"0","side":"BUY"}`
	require.NoError(t, json.Unmarshal([]byte(payload), &order))
	assert.InDelta(t, 10000.5, float64(order.Price), 1e-9)
	assert.InDelta(t, 0.001, float64(order.OrigQty), 1e-12)
}
