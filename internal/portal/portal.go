// Package portal implements the ExchangePortal: the fan-out layer that owns
// one execution client per venue, services execution requests concurrently,
// and merges every venue's private account stream back into the central
// event feed.
package portal

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sector-fi/barter-mono/internal/events"
	"github.com/sector-fi/barter-mono/internal/monitor"
	"github.com/sector-fi/barter-mono/pkg/execution"
	"github.com/sector-fi/barter-mono/pkg/instrument"
)

// Portal multiplexes execution requests across venue clients. The client map
// is fixed at construction and read-only afterwards; every venue call runs on
// its own goroutine so a slow venue never head-of-lines another.
type Portal struct {
	clients   map[instrument.Exchange]execution.Client
	requestRx <-chan execution.Request
	feed      *events.Feed
	metrics   *monitor.Metrics
	log       zerolog.Logger
}

// New builds the Portal over already-initialized clients.
func New(clients map[instrument.Exchange]execution.Client, requestRx <-chan execution.Request, feed *events.Feed, metrics *monitor.Metrics, log zerolog.Logger) (*Portal, error) {
	switch {
	case len(clients) == 0:
		return nil, execution.BuilderIncomplete("clients")
	case requestRx == nil:
		return nil, execution.BuilderIncomplete("request_rx")
	case feed == nil:
		return nil, execution.BuilderIncomplete("event_feed")
	}
	return &Portal{
		clients:   clients,
		requestRx: requestRx,
		feed:      feed,
		metrics:   metrics,
		log:       log.With().Str("component", "portal").Logger(),
	}, nil
}

// Run opens every venue's account stream, then services requests until ctx
// is cancelled or the request channel closes. Spawned venue tasks are not
// joined; their completions after shutdown are discarded.
func (p *Portal) Run(ctx context.Context) {
	for exchange, client := range p.clients {
		stream, err := client.InitStream(ctx)
		if err != nil {
			p.log.Error().Err(err).Stringer("exchange", exchange).Msg("init account stream failed")
			continue
		}
		if stream == nil {
			// Pull-only venue.
			continue
		}
		go p.forwardStream(exchange, stream)
	}

	p.log.Info().Int("clients", len(p.clients)).Msg("portal running")
	for {
		select {
		case <-ctx.Done():
			return
		case request, ok := <-p.requestRx:
			if !ok {
				return
			}
			p.dispatch(ctx, request)
		}
	}
}

// forwardStream tags each venue account event and pushes it into the feed,
// stamping the local receive time.
func (p *Portal) forwardStream(exchange instrument.Exchange, stream <-chan execution.AccountEventKind) {
	for kind := range stream {
		p.send(exchange, kind)
	}
	p.log.Warn().Stringer("exchange", exchange).Msg("account stream ended")
}

func (p *Portal) send(exchange instrument.Exchange, kind execution.AccountEventKind) {
	p.feed.Push(events.Account(execution.NewAccountEvent(exchange, kind)))
}

// dispatch fans a request out to its venues, one detached goroutine per
// (exchange, payload) pair. Per-item failures are logged and dropped; only
// successes flow back as account events.
func (p *Portal) dispatch(ctx context.Context, request execution.Request) {
	switch request := request.(type) {
	case execution.OpenOrders:
		for _, batch := range request {
			client := p.client(batch.Exchange)
			orders := batch.Orders
			p.metrics.RequestDispatched(batch.Exchange.String(), "open_orders")
			go func(exchange instrument.Exchange) {
				results := client.OpenOrders(ctx, orders)
				opened := make(execution.OrdersNew, 0, len(results))
				for _, result := range results {
					if result.Err != nil {
						p.metrics.VenueError(exchange.String())
						p.log.Error().Err(result.Err).Stringer("exchange", exchange).Msg("failed to open an order")
						continue
					}
					opened = append(opened, result.Order)
				}
				p.send(exchange, opened)
			}(batch.Exchange)
		}

	case execution.CancelOrders:
		for _, batch := range request {
			client := p.client(batch.Exchange)
			orders := batch.Orders
			p.metrics.RequestDispatched(batch.Exchange.String(), "cancel_orders")
			go func(exchange instrument.Exchange) {
				results := client.CancelOrders(ctx, orders)
				cancelled := make(execution.OrdersCancelled, 0, len(results))
				for _, result := range results {
					if result.Err != nil {
						p.metrics.VenueError(exchange.String())
						p.log.Error().Err(result.Err).Stringer("exchange", exchange).Msg("failed to cancel an order")
						continue
					}
					cancelled = append(cancelled, result.Order)
				}
				p.send(exchange, cancelled)
			}(batch.Exchange)
		}

	case execution.CancelOrdersAll:
		for _, exchange := range request {
			client := p.client(exchange)
			p.metrics.RequestDispatched(exchange.String(), "cancel_orders_all")
			go func(exchange instrument.Exchange) {
				cancelled, err := client.CancelOrdersAll(ctx)
				if err != nil {
					p.metrics.VenueError(exchange.String())
					p.log.Error().Err(err).Stringer("exchange", exchange).Msg("failed to cancel all orders")
					return
				}
				p.send(exchange, execution.OrdersCancelled(cancelled))
			}(exchange)
		}

	case execution.FetchBalances:
		for _, exchange := range request {
			client := p.client(exchange)
			p.metrics.RequestDispatched(exchange.String(), "fetch_balances")
			go func(exchange instrument.Exchange) {
				balances, err := client.FetchBalances(ctx)
				if err != nil {
					p.metrics.VenueError(exchange.String())
					p.log.Error().Err(err).Stringer("exchange", exchange).Msg("failed to fetch balances")
					return
				}
				p.send(exchange, execution.Balances(balances))
			}(exchange)
		}

	case execution.FetchOrdersOpen:
		for _, exchange := range request {
			client := p.client(exchange)
			p.metrics.RequestDispatched(exchange.String(), "fetch_orders_open")
			go func(exchange instrument.Exchange) {
				orders, err := client.FetchOrdersOpen(ctx)
				if err != nil {
					p.metrics.VenueError(exchange.String())
					p.log.Error().Err(err).Stringer("exchange", exchange).Msg("failed to fetch open orders")
					return
				}
				p.send(exchange, execution.OrdersOpen(orders))
			}(exchange)
		}

	default:
		p.log.Error().Type("request", request).Msg("unhandled execution request")
	}
}

// client retrieves the venue client. The mapping is fixed at init, so an
// unknown exchange is a programmer error.
func (p *Portal) client(exchange instrument.Exchange) execution.Client {
	client, ok := p.clients[exchange]
	if !ok {
		panic(fmt.Sprintf("cannot retrieve ExchangeClient for %s", exchange))
	}
	return client
}
