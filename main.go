package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/sector-fi/barter-mono/internal/account"
	"github.com/sector-fi/barter-mono/internal/engine"
	"github.com/sector-fi/barter-mono/internal/events"
	"github.com/sector-fi/barter-mono/internal/market"
	"github.com/sector-fi/barter-mono/internal/monitor"
	"github.com/sector-fi/barter-mono/internal/portal"
	"github.com/sector-fi/barter-mono/internal/quoter"
	"github.com/sector-fi/barter-mono/internal/reconcile"
	"github.com/sector-fi/barter-mono/internal/strategy"
	"github.com/sector-fi/barter-mono/internal/token"
	"github.com/sector-fi/barter-mono/pkg/config"
	"github.com/sector-fi/barter-mono/pkg/exchanges"
	"github.com/sector-fi/barter-mono/pkg/exchanges/binance"
	"github.com/sector-fi/barter-mono/pkg/exchanges/simulated"
	"github.com/sector-fi/barter-mono/pkg/exchanges/uniswapx"
	"github.com/sector-fi/barter-mono/pkg/execution"
	"github.com/sector-fi/barter-mono/pkg/instrument"
	"github.com/sector-fi/barter-mono/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logging.New(cfg.LogLevel)
	log.Info().Msg("starting trading core")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := monitor.New()

	// Central event feed and the engine's outbound request channel.
	feed := events.NewFeed()
	exchangeTx := make(chan execution.Request, 256)

	// RFQ quoter: runs regardless of venue config; it is the standalone
	// externalization of quote requests.
	quoteServer := quoter.NewServer(metrics, log)
	go func() {
		if err := quoteServer.Run(cfg.QuoterAddr); err != nil {
			log.Error().Err(err).Msg("quoter server stopped")
		}
	}()

	// Shared chain/off-chain plumbing for erc20 venues.
	var (
		ethClient *ethclient.Client
		resolver  token.Resolver
	)
	if cfg.WssURL != "" {
		ethClient, err = ethclient.DialContext(ctx, cfg.WssURL)
		if err != nil {
			log.Fatal().Err(err).Msg("dial eth provider failed")
		}
		chainResolver, err := token.NewChainResolver(ethClient, log)
		if err != nil {
			log.Fatal().Err(err).Msg("build token resolver failed")
		}
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		resolver = token.NewCache(rdb, chainResolver, log)
	}

	// Venue clients and per-venue account seeds.
	clientConfigs := make(map[instrument.Exchange]exchanges.Config)
	accountSeeds := make(map[instrument.Exchange]*account.Account)
	var uniswapxResponders []*uniswapx.Client

	for _, venue := range cfg.File.Venues {
		exchange := instrument.Exchange(venue.Exchange)
		instruments := venue.ToInstruments()

		switch exchanges.ClientID(venue.Client) {
		case exchanges.ClientSimulated:
			balances := make(map[instrument.Symbol]execution.Balance, len(venue.Balances))
			for symbol, total := range venue.Balances {
				balances[instrument.NewSymbol(symbol)] = execution.Balance{Total: total, Available: total}
			}
			clientConfigs[exchange] = exchanges.Config{
				ID:        exchanges.ClientSimulated,
				Simulated: &simulated.Config{Exchange: exchange, Balances: balances, Log: log},
			}
			accountSeeds[exchange] = account.NewAccount(instruments, balances)

		case exchanges.ClientBinance:
			clientConfigs[exchange] = exchanges.Config{
				ID: exchanges.ClientBinance,
				Binance: &binance.Config{
					Exchange:    exchange,
					Market:      binance.Market(venue.Market),
					Live:        venue.Live,
					Instruments: instruments,
					Log:         log,
				},
			}
			accountSeeds[exchange] = account.NewAccount(instruments, nil)

		case exchanges.ClientUniswapx:
			tokens := make(map[instrument.Symbol]string, len(venue.Tokens))
			for symbol, address := range venue.Tokens {
				tokens[instrument.NewSymbol(symbol)] = address
			}
			clientConfigs[exchange] = exchanges.Config{
				ID: exchanges.ClientUniswapx,
				Uniswapx: &uniswapx.Config{
					Exchange:    exchange,
					Instruments: instruments,
					Tokens:      tokens,
					Wallet:      venue.Wallet,
					ChainID:     venue.ChainID,
					FeeBps:      venue.FeeBps,
					Resolver:    resolver,
					Eth:         ethClient,
					Quotes:      quoteServer,
					Log:         log,
				},
			}
			accountSeeds[exchange] = account.NewAccount(instruments, nil)

		default:
			log.Fatal().Str("client", venue.Client).Str("exchange", venue.Exchange).Msg("unknown venue client")
		}
	}
	if len(clientConfigs) == 0 {
		log.Fatal().Msg("no venues configured")
	}

	clients, err := exchanges.Init(clientConfigs)
	if err != nil {
		log.Fatal().Err(err).Msg("init venue clients failed")
	}
	for _, client := range clients {
		if ux, ok := client.(*uniswapx.Client); ok {
			uniswapxResponders = append(uniswapxResponders, ux)
		}
	}

	// Portal: venue fan-out plus account stream fan-in.
	exchangePortal, err := portal.New(clients, exchangeTx, feed, metrics, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build portal failed")
	}
	go exchangePortal.Run(ctx)

	for _, responder := range uniswapxResponders {
		go responder.RunQuoteResponder(ctx)
	}

	// Market data feeds, one per binance venue.
	startMarketFeeds(ctx, cfg, feed, log)

	// Accounts and the engine.
	accounts := account.NewAccounts(accountSeeds, log)
	cerebrum, err := engine.New(engine.Config{
		Feed:       feed,
		Accounts:   accounts,
		Strategy:   buildStrategy(cfg, log),
		ExchangeTx: exchangeTx,
		Metrics:    metrics,
		Log:        log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("build engine failed")
	}

	// Reconciliation: periodic open-orders/balances snapshots.
	reconciler := reconcile.New(accounts.Exchanges(), exchangeTx, cfg.ReconcileInterval, log)
	if err := reconciler.Start(); err != nil {
		log.Fatal().Err(err).Msg("start reconciler failed")
	}
	defer reconciler.Stop()

	// Seed initial state.
	exchangeTx <- execution.FetchBalances(accounts.Exchanges())
	exchangeTx <- execution.FetchOrdersOpen(accounts.Exchanges())

	if cfg.MetricsAddr != "" {
		go func() {
			if err := http.ListenAndServe(cfg.MetricsAddr, metrics.Handler()); err != nil {
				log.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	// Engine on its own goroutine; main waits for it.
	done := make(chan struct{})
	go func() {
		defer close(done)
		cerebrum.Run()
	}()

	// First signal flattens positions, the second (or the grace period)
	// terminates.
	go handleSignals(feed, log)

	<-done
	cancel()
	log.Info().Msg("trading core stopped")
}

// startMarketFeeds launches a public stream per binance venue.
func startMarketFeeds(ctx context.Context, cfg *config.Config, feed *events.Feed, log zerolog.Logger) {
	for _, venue := range cfg.File.Venues {
		if exchanges.ClientID(venue.Client) != exchanges.ClientBinance {
			continue
		}
		streamURL := "wss://fstream.binance.com"
		if !venue.Live {
			streamURL = "wss://fstream.binancefuture.com"
		}

		subscriptions := make([]market.Subscription, 0, 2*len(venue.Instruments))
		for _, ic := range venue.Instruments {
			inst := ic.ToInstrument()
			subscriptions = append(subscriptions,
				market.Subscription{Instrument: inst, Channel: market.ChannelTrades},
				market.Subscription{Instrument: inst, Channel: market.ChannelBookL1},
			)
		}

		mode := market.BacktestOff
		if cfg.BacktestToFile {
			mode = market.BacktestToFile
		}
		binanceFeed := &market.BinanceFeed{
			Exchange:      instrument.Exchange(venue.Exchange),
			StreamURL:     streamURL,
			Subscriptions: subscriptions,
			Feed:          events.MarketSink{Feed: feed},
			Tap:           market.NewTap(mode, venue.Exchange, cfg.DataDir, log),
			Reconnect:     market.DefaultReconnectConfig(),
			Log:           log,
		}
		go binanceFeed.Run(ctx)
	}
}

// buildStrategy wires the configured example strategy, falling back to the
// first venue's first instrument.
func buildStrategy(cfg *config.Config, log zerolog.Logger) strategy.Strategy {
	sc := cfg.File.Strategy
	m := instrument.Market{
		Exchange:   instrument.Exchange(sc.Exchange),
		Instrument: sc.Instrument.ToInstrument(),
	}
	if sc.Exchange == "" && len(cfg.File.Venues) > 0 && len(cfg.File.Venues[0].Instruments) > 0 {
		m = instrument.Market{
			Exchange:   instrument.Exchange(cfg.File.Venues[0].Exchange),
			Instrument: cfg.File.Venues[0].Instruments[0].ToInstrument(),
		}
	}
	fast, slow := sc.FastPeriod, sc.SlowPeriod
	if fast <= 0 {
		fast = 10
	}
	if slow <= fast {
		slow = 3 * fast
	}
	size := sc.Size
	if size <= 0 {
		size = 0.001
	}
	log.Info().Str("market", m.ID()).Int("fast", fast).Int("slow", slow).Msg("strategy configured")
	return strategy.NewMACross(m, fast, slow, size)
}

// handleSignals converts SIGINT/SIGTERM into engine commands: the first
// signal exits all positions, the second terminates immediately. A grace
// period terminates anyway so a wedged venue cannot hold the process open.
func handleSignals(feed *events.Feed, log zerolog.Logger) {
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	<-signals
	log.Info().Msg("signal received; exiting all positions")
	feed.Push(events.ExitAllPositions{})

	select {
	case <-signals:
	case <-time.After(5 * time.Second):
	}
	log.Info().Msg("terminating engine")
	feed.Push(events.Terminate{})
}
