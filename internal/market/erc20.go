package market

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/sector-fi/barter-mono/pkg/instrument"
)

// transferTopic is keccak256("Transfer(address,address,uint256)").
var transferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// Erc20Feed watches one token contract's Transfer events over a websocket
// provider and publishes them as Erc20Transfer market events.
type Erc20Feed struct {
	Exchange   instrument.Exchange
	Instrument instrument.Instrument
	Contract   string
	Decimals   uint8
	Client     *ethclient.Client
	Feed       Sink
	Log        zerolog.Logger
}

// Run subscribes and pumps logs until ctx is cancelled. Blocking; run on its
// own goroutine.
func (f *Erc20Feed) Run(ctx context.Context) error {
	log := f.Log.With().Str("component", "erc20_feed").Str("contract", f.Contract).Logger()

	query := ethereum.FilterQuery{
		Addresses: []common.Address{common.HexToAddress(f.Contract)},
		Topics:    [][]common.Hash{{transferTopic}},
	}
	logs := make(chan types.Log, 256)
	sub, err := f.Client.SubscribeFilterLogs(ctx, query, logs)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()
	log.Info().Msg("erc20 transfer feed subscribed")

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-sub.Err():
			return err
		case entry := <-logs:
			if event, ok := f.parse(entry); ok {
				f.Feed.Push(event)
			}
		}
	}
}

func (f *Erc20Feed) parse(entry types.Log) (Event, bool) {
	if len(entry.Topics) < 3 {
		return Event{}, false
	}
	from := common.BytesToAddress(entry.Topics[1].Bytes())
	to := common.BytesToAddress(entry.Topics[2].Bytes())
	wei := new(big.Int).SetBytes(entry.Data)

	decimals := f.Decimals
	if decimals == 0 {
		decimals = 18
	}
	value := decimal.NewFromBigInt(wei, -int32(decimals)).InexactFloat64()

	now := time.Now()
	return Event{
		ExchangeTime: now,
		ReceivedTime: now,
		Exchange:     f.Exchange,
		Instrument:   f.Instrument,
		Kind: Erc20Transfer{
			From:  from.Hex(),
			To:    to.Hex(),
			Value: value,
		},
	}, true
}
