// Package exchanges registers every venue client the portal can drive. The
// set is closed: clients dispatch at this variant boundary rather than
// through an open plugin registry, so a misconfigured venue fails at init.
package exchanges

import (
	"fmt"

	"github.com/sector-fi/barter-mono/pkg/exchanges/binance"
	"github.com/sector-fi/barter-mono/pkg/exchanges/simulated"
	"github.com/sector-fi/barter-mono/pkg/exchanges/uniswapx"
	"github.com/sector-fi/barter-mono/pkg/execution"
	"github.com/sector-fi/barter-mono/pkg/instrument"
)

// ClientID names a registered client implementation.
type ClientID string

const (
	ClientSimulated ClientID = "simulated"
	ClientBinance   ClientID = "binance"
	ClientUniswapx  ClientID = "uniswapx"
)

// Config selects one client variant and carries its venue configuration.
// Exactly the field matching ID is read.
type Config struct {
	ID        ClientID
	Simulated *simulated.Config
	Binance   *binance.Config
	Uniswapx  *uniswapx.Config
}

// Init constructs one client per venue. Construction performs venue setup
// (credential resolution, host selection); account streams open later when
// the portal runs.
func Init(configs map[instrument.Exchange]Config) (map[instrument.Exchange]execution.Client, error) {
	clients := make(map[instrument.Exchange]execution.Client, len(configs))
	for exchange, cfg := range configs {
		client, err := newClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("init client for %s: %w", exchange, err)
		}
		clients[exchange] = client
	}
	return clients, nil
}

func newClient(cfg Config) (execution.Client, error) {
	switch cfg.ID {
	case ClientSimulated:
		if cfg.Simulated == nil {
			return nil, execution.BuilderIncomplete("simulated config")
		}
		return simulated.New(*cfg.Simulated), nil
	case ClientBinance:
		if cfg.Binance == nil {
			return nil, execution.BuilderIncomplete("binance config")
		}
		return binance.New(*cfg.Binance)
	case ClientUniswapx:
		if cfg.Uniswapx == nil {
			return nil, execution.BuilderIncomplete("uniswapx config")
		}
		return uniswapx.New(*cfg.Uniswapx)
	default:
		return nil, fmt.Errorf("unknown client id %q", cfg.ID)
	}
}
