// Package reconcile periodically re-syncs local account state against each
// venue. The portal reports optimistic success, so an order whose venue
// response was lost stays in-flight locally until one of these snapshot
// fetches replaces the open set.
package reconcile

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/sector-fi/barter-mono/pkg/execution"
	"github.com/sector-fi/barter-mono/pkg/instrument"
)

// DefaultInterval is the recommended reconciliation cadence.
const DefaultInterval = 60 * time.Second

// Scheduler emits FetchOrdersOpen and FetchBalances requests on a fixed
// cadence for every configured venue.
type Scheduler struct {
	exchanges  []instrument.Exchange
	exchangeTx chan<- execution.Request
	cron       *cron.Cron
	interval   time.Duration
	log        zerolog.Logger
}

// New builds the scheduler. A zero interval falls back to DefaultInterval.
func New(exchanges []instrument.Exchange, exchangeTx chan<- execution.Request, interval time.Duration, log zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		exchanges:  exchanges,
		exchangeTx: exchangeTx,
		cron:       cron.New(),
		interval:   interval,
		log:        log.With().Str("component", "reconcile").Logger(),
	}
}

// Start schedules the job and begins the cron loop.
func (s *Scheduler) Start() error {
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, s.sync); err != nil {
		return fmt.Errorf("schedule reconciliation: %w", err)
	}
	s.cron.Start()
	s.log.Info().Dur("interval", s.interval).Msg("reconciliation scheduled")
	return nil
}

// Stop halts the cron loop; a running sync finishes first.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) sync() {
	s.log.Debug().Int("exchanges", len(s.exchanges)).Msg("reconciling venue state")
	s.exchangeTx <- execution.FetchOrdersOpen(s.exchanges)
	s.exchangeTx <- execution.FetchBalances(s.exchanges)
}
