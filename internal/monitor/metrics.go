// Package monitor exposes the core's prometheus metrics: events consumed by
// the engine, requests dispatched by the portal, venue errors and quoter
// outcomes. A nil *Metrics is a valid no-op sink.
package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the registry-backed set of core counters.
type Metrics struct {
	registry *prometheus.Registry

	eventsConsumed     *prometheus.CounterVec
	requestsDispatched *prometheus.CounterVec
	venueErrors        *prometheus.CounterVec
	quoteRequests      prometheus.Counter
	quoteTimeouts      prometheus.Counter
	feedDepth          prometheus.Gauge
}

// New builds and registers the core metric set on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		eventsConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_events_consumed_total",
			Help: "Events consumed by the engine, by event type.",
		}, []string{"type"}),
		requestsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_requests_dispatched_total",
			Help: "Execution requests dispatched to venues, by venue and kind.",
		}, []string{"exchange", "kind"}),
		venueErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_venue_errors_total",
			Help: "Per-item venue call failures, by venue.",
		}, []string{"exchange"}),
		quoteRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quoter_requests_total",
			Help: "Quote requests received.",
		}),
		quoteTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quoter_timeouts_total",
			Help: "Quote requests that timed out without a matching response.",
		}),
		feedDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "event_feed_depth",
			Help: "Events queued in the central feed.",
		}),
	}

	registry.MustRegister(
		m.eventsConsumed,
		m.requestsDispatched,
		m.venueErrors,
		m.quoteRequests,
		m.quoteTimeouts,
		m.feedDepth,
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) EventConsumed(eventType string) {
	if m == nil {
		return
	}
	m.eventsConsumed.WithLabelValues(eventType).Inc()
}

func (m *Metrics) RequestDispatched(exchange, kind string) {
	if m == nil {
		return
	}
	m.requestsDispatched.WithLabelValues(exchange, kind).Inc()
}

func (m *Metrics) VenueError(exchange string) {
	if m == nil {
		return
	}
	m.venueErrors.WithLabelValues(exchange).Inc()
}

func (m *Metrics) QuoteRequest() {
	if m == nil {
		return
	}
	m.quoteRequests.Inc()
}

func (m *Metrics) QuoteTimeout() {
	if m == nil {
		return
	}
	m.quoteTimeouts.Inc()
}

func (m *Metrics) SetFeedDepth(n int) {
	if m == nil {
		return
	}
	m.feedDepth.Set(float64(n))
}
