// Package uniswapx implements the UniswapX RFQ execution client. The venue
// has no resting order book: market orders fill immediately at the configured
// reference price, and the client doubles as the quote responder behind the
// quoter service.
package uniswapx

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/sector-fi/barter-mono/internal/quoter"
	"github.com/sector-fi/barter-mono/internal/token"
	"github.com/sector-fi/barter-mono/pkg/execution"
	"github.com/sector-fi/barter-mono/pkg/instrument"
)

// DefaultExchange is the venue name when none is configured.
const DefaultExchange = instrument.Exchange("uniswapx")

const erc20BalanceABI = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

// Config wires the RFQ client.
type Config struct {
	Exchange    instrument.Exchange
	Instruments []instrument.Instrument
	// Tokens maps each traded symbol to its erc20 contract address.
	Tokens map[instrument.Symbol]string
	// Wallet is the filler address: it funds fills and owns the balances
	// FetchBalances reports.
	Wallet  string
	ChainID uint32
	// FeeBps is the spread the responder takes on quoted amounts.
	FeeBps int64
	// Pricer supplies the reference price market orders fill at.
	Pricer func(instrument.Instrument) float64

	Resolver token.Resolver
	Eth      *ethclient.Client
	Quotes   *quoter.Server
	Log      zerolog.Logger
}

// Client is the UniswapX execution client.
type Client struct {
	cfg      Config
	exchange instrument.Exchange
	erc20    abi.ABI
	log      zerolog.Logger
}

// New validates cfg and builds the client.
func New(cfg Config) (*Client, error) {
	if cfg.Resolver == nil {
		return nil, execution.BuilderIncomplete("token_resolver")
	}
	exchange := cfg.Exchange
	if exchange == "" {
		exchange = DefaultExchange
	}
	parsed, err := abi.JSON(strings.NewReader(erc20BalanceABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	return &Client{
		cfg:      cfg,
		exchange: exchange,
		erc20:    parsed,
		log:      cfg.Log.With().Str("component", "uniswapx").Logger(),
	}, nil
}

// Exchange implements execution.Client.
func (c *Client) Exchange() instrument.Exchange { return c.exchange }

// InitStream implements execution.Client. The venue pushes no private
// updates: fills are reported synchronously in the OpenOrders response.
func (c *Client) InitStream(ctx context.Context) (<-chan execution.AccountEventKind, error) {
	return nil, nil
}

// FetchBalances implements execution.Client: one balanceOf call per
// configured token, scaled by the token's decimals.
func (c *Client) FetchBalances(ctx context.Context) ([]execution.SymbolBalance, error) {
	if c.cfg.Eth == nil || c.cfg.Wallet == "" {
		return nil, execution.SocketError(fmt.Errorf("eth client or wallet not configured"))
	}
	owner := common.HexToAddress(c.cfg.Wallet)

	balances := make([]execution.SymbolBalance, 0, len(c.cfg.Tokens))
	for symbol, address := range c.cfg.Tokens {
		meta, err := c.cfg.Resolver.GetToken(ctx, uint64(c.cfg.ChainID), address)
		if err != nil {
			return nil, execution.SocketError(err)
		}

		data, err := c.erc20.Pack("balanceOf", owner)
		if err != nil {
			return nil, execution.SocketError(err)
		}
		contract := common.HexToAddress(address)
		raw, err := c.cfg.Eth.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
		if err != nil {
			return nil, execution.SocketError(err)
		}
		values, err := c.erc20.Unpack("balanceOf", raw)
		if err != nil || len(values) != 1 {
			return nil, execution.SocketError(fmt.Errorf("unpack balanceOf: %v", err))
		}
		wei, ok := values[0].(*big.Int)
		if !ok {
			return nil, execution.SocketError(fmt.Errorf("unexpected balanceOf type %T", values[0]))
		}

		scaled := decimal.NewFromBigInt(wei, -int32(meta.Decimals)).InexactFloat64()
		balances = append(balances, execution.SymbolBalance{
			Symbol:  symbol,
			Balance: execution.Balance{Total: scaled, Available: scaled},
		})
	}
	return balances, nil
}

// FetchOrdersOpen implements execution.Client. Nothing rests on an RFQ venue.
func (c *Client) FetchOrdersOpen(ctx context.Context) ([]execution.Order[execution.Open], error) {
	return []execution.Order[execution.Open]{}, nil
}

// OpenOrders implements execution.Client. Only market orders are supported;
// each fills immediately at the reference price.
func (c *Client) OpenOrders(ctx context.Context, orders []execution.Order[execution.RequestOpen]) []execution.OpenResult {
	results := make([]execution.OpenResult, 0, len(orders))
	for _, request := range orders {
		var result execution.OpenResult
		if request.State.Kind != execution.KindMarket {
			result.Err = execution.UnsupportedOrderKind(request.State.Kind)
		} else {
			price := 0.0
			if c.cfg.Pricer != nil {
				price = c.cfg.Pricer(request.Instrument)
			}
			result.Order = execution.Order[execution.Open]{
				Exchange:   request.Exchange,
				Instrument: request.Instrument,
				CID:        request.CID,
				Side:       request.Side,
				State: execution.Open{
					OrderID:  execution.OrderID("ux-" + uuid.NewString()),
					Price:    price,
					Quantity: request.State.Quantity,
					Filled:   request.State.Quantity,
				},
			}
		}
		results = append(results, result)
	}
	return results
}

// CancelOrders implements execution.Client. With no resting orders every
// cancel misses.
func (c *Client) CancelOrders(ctx context.Context, orders []execution.Order[execution.RequestCancel]) []execution.CancelResult {
	results := make([]execution.CancelResult, 0, len(orders))
	for _, request := range orders {
		results = append(results, execution.CancelResult{Err: execution.OrderNotFound(request.CID)})
	}
	return results
}

// CancelOrdersAll implements execution.Client.
func (c *Client) CancelOrdersAll(ctx context.Context) ([]execution.Order[execution.Cancelled], error) {
	return []execution.Order[execution.Cancelled]{}, nil
}

// RunQuoteResponder consumes the quoter's request stream and answers each
// request with this filler's quote: the input amount minus the configured
// spread. Run it on its own goroutine.
func (c *Client) RunQuoteResponder(ctx context.Context) {
	if c.cfg.Quotes == nil {
		c.log.Warn().Msg("no quoter attached; responder idle")
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case request, ok := <-c.cfg.Quotes.Requests():
			if !ok {
				return
			}
			response, err := c.quote(ctx, request)
			if err != nil {
				c.log.Warn().Err(err).Str("quote_id", request.QuoteID).Msg("quote request skipped")
				continue
			}
			c.cfg.Quotes.Respond(response)
		}
	}
}

// quote prices one RFQ. Token metadata is resolved so unknown or bogus
// tokens are rejected rather than quoted blind.
func (c *Client) quote(ctx context.Context, request quoter.QuoteRequest) (quoter.QuoteResponse, error) {
	if _, err := c.cfg.Resolver.GetToken(ctx, uint64(request.TokenInChainID), request.TokenIn); err != nil {
		return quoter.QuoteResponse{}, fmt.Errorf("token in: %w", err)
	}
	if _, err := c.cfg.Resolver.GetToken(ctx, uint64(request.TokenOutChainID), request.TokenOut); err != nil {
		return quoter.QuoteResponse{}, fmt.Errorf("token out: %w", err)
	}

	amountIn, err := decimal.NewFromString(request.Amount)
	if err != nil {
		return quoter.QuoteResponse{}, fmt.Errorf("amount %q: %w", request.Amount, err)
	}
	spread := decimal.New(c.cfg.FeeBps, -4)
	amountOut := amountIn.Mul(decimal.NewFromInt(1).Sub(spread))

	return quoter.QuoteResponse{
		ChainID:   request.TokenInChainID,
		AmountIn:  amountIn.String(),
		AmountOut: amountOut.String(),
		Filler:    c.cfg.Wallet,
		RequestID: request.RequestID,
		Swapper:   request.Swapper,
		TokenIn:   request.TokenIn,
		TokenOut:  request.TokenOut,
		QuoteID:   request.QuoteID,
	}, nil
}
