package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"projecthub/internal/events"
)

type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// CleanupScopeResetTickets asks the worker to purge stale reset tickets.
const CleanupScopeResetTickets = "reset_tickets"

// Scheduler enqueues periodic maintenance events for the worker.
type Scheduler struct {
	cron     *cron.Cron
	events   Publisher
	schedule string
	log      zerolog.Logger
}

func NewScheduler(publisher Publisher, schedule string, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:     c,
		events:   publisher,
		schedule: schedule,
		log:      log,
	}
}

func (s *Scheduler) Start() error {
	if s.events == nil || s.schedule == "" {
		return nil
	}

	if _, err := s.cron.AddFunc(s.schedule, s.enqueueCleanup); err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info().Str("schedule", s.schedule).Msg("cleanup scheduler started")
	return nil
}

// Stop halts the cron and waits up to five seconds for a running job.
func (s *Scheduler) Stop() {
	select {
	case <-s.cron.Stop().Done():
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("cleanup job still running at shutdown")
	}
}

func (s *Scheduler) enqueueCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.EnqueueCleanup(ctx); err != nil {
		s.log.Error().Err(err).Msg("enqueue cleanup failed")
	}
}

func (s *Scheduler) EnqueueCleanup(ctx context.Context) error {
	return s.events.Publish(ctx, events.Event{
		Type:       events.TypeCleanup,
		Payload:    events.Cleanup{Scope: CleanupScopeResetTickets},
		OccurredAt: time.Now().UTC(),
	})
}
