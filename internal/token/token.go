// Package token resolves erc20 token metadata. Lookups go through a Redis
// cache keyed "{chainID}:{address}" and fall through to an on-chain
// symbol()/decimals() call on miss.
package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

// Token is the cached erc20 metadata.
type Token struct {
	Addr     string `json:"addr"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

func (t Token) String() string {
	return fmt.Sprintf("Token{addr: %s, symbol: %s, decimals: %d}", t.Addr, t.Symbol, t.Decimals)
}

// Resolver looks up token metadata by chain and contract address.
type Resolver interface {
	GetToken(ctx context.Context, chainID uint64, address string) (Token, error)
}

const erc20MetaABI = `[
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"}
]`

// ChainResolver reads metadata straight from the contract.
type ChainResolver struct {
	client *ethclient.Client
	erc20  abi.ABI
	log    zerolog.Logger
}

// NewChainResolver wraps a dialed eth client.
func NewChainResolver(client *ethclient.Client, log zerolog.Logger) (*ChainResolver, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20MetaABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	return &ChainResolver{
		client: client,
		erc20:  parsed,
		log:    log.With().Str("component", "token_resolver").Logger(),
	}, nil
}

// GetToken implements Resolver with two eth_call round trips.
func (r *ChainResolver) GetToken(ctx context.Context, chainID uint64, address string) (Token, error) {
	if !common.IsHexAddress(address) {
		return Token{}, fmt.Errorf("invalid token address %q", address)
	}
	addr := common.HexToAddress(address)

	symbol, err := r.callString(ctx, addr, "symbol")
	if err != nil {
		return Token{}, fmt.Errorf("symbol() %s: %w", address, err)
	}
	decimals, err := r.callUint8(ctx, addr, "decimals")
	if err != nil {
		return Token{}, fmt.Errorf("decimals() %s: %w", address, err)
	}

	token := Token{Addr: address, Symbol: symbol, Decimals: decimals}
	r.log.Debug().Uint64("chain_id", chainID).Stringer("token", token).Msg("resolved token on chain")
	return token, nil
}

func (r *ChainResolver) call(ctx context.Context, addr common.Address, method string) ([]interface{}, error) {
	data, err := r.erc20.Pack(method)
	if err != nil {
		return nil, err
	}
	result, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	return r.erc20.Unpack(method, result)
}

func (r *ChainResolver) callString(ctx context.Context, addr common.Address, method string) (string, error) {
	values, err := r.call(ctx, addr, method)
	if err != nil {
		return "", err
	}
	if len(values) != 1 {
		return "", fmt.Errorf("unexpected %s output arity %d", method, len(values))
	}
	s, ok := values[0].(string)
	if !ok {
		return "", fmt.Errorf("unexpected %s output type %T", method, values[0])
	}
	return s, nil
}

func (r *ChainResolver) callUint8(ctx context.Context, addr common.Address, method string) (uint8, error) {
	values, err := r.call(ctx, addr, method)
	if err != nil {
		return 0, err
	}
	if len(values) != 1 {
		return 0, fmt.Errorf("unexpected %s output arity %d", method, len(values))
	}
	v, ok := values[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unexpected %s output type %T", method, values[0])
	}
	return v, nil
}

// Cache is a Redis-backed Resolver that falls through to another Resolver on
// miss and writes the result back.
type Cache struct {
	redis    *redis.Client
	fallback Resolver
	log      zerolog.Logger
}

// NewCache wraps fallback with the Redis cache.
func NewCache(rdb *redis.Client, fallback Resolver, log zerolog.Logger) *Cache {
	return &Cache{
		redis:    rdb,
		fallback: fallback,
		log:      log.With().Str("component", "token_cache").Logger(),
	}
}

// Key is the cache key for one (chain, address) pair.
func Key(chainID uint64, address string) string {
	return fmt.Sprintf("%d:%s", chainID, strings.ToLower(address))
}

// GetToken implements Resolver.
func (c *Cache) GetToken(ctx context.Context, chainID uint64, address string) (Token, error) {
	key := Key(chainID, address)

	cached, err := c.redis.Get(ctx, key).Result()
	switch {
	case err == nil:
		var token Token
		if err := json.Unmarshal([]byte(cached), &token); err == nil {
			return token, nil
		}
		// Poisoned entry: fall through and rewrite.
		c.log.Warn().Str("key", key).Msg("discarding unparseable cached token")
	case !errors.Is(err, redis.Nil):
		return Token{}, fmt.Errorf("token cache get: %w", err)
	}

	token, err := c.fallback.GetToken(ctx, chainID, address)
	if err != nil {
		return Token{}, err
	}

	encoded, err := json.Marshal(token)
	if err == nil {
		if err := c.redis.Set(ctx, key, encoded, 0).Err(); err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("token cache write failed")
		}
	}
	return token, nil
}
