// Package sweeper runs the periodic lifecycle jobs: expiring stale carts,
// releasing abandoned checkouts, cancelling unpaid orders and delivering
// payment reminders. One scheduler ticks all jobs in sequence so overlapping
// runs of the same job cannot happen.
package sweeper

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Job is a single lifecycle sweep. Run returns how many entities it affected.
// Jobs must be idempotent: a rerun over the same state is a no-op.
type Job interface {
	Name() string
	Run(ctx context.Context) (int, error)
}

// Scheduler ticks all registered jobs at a fixed interval.
type Scheduler struct {
	jobs     []Job
	interval time.Duration
	policy   RetryPolicy
	logger   zerolog.Logger
}

// NewScheduler creates a scheduler running the given jobs.
func NewScheduler(jobs []Job, interval time.Duration, policy RetryPolicy, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		jobs:     jobs,
		interval: interval,
		policy:   policy,
		logger:   logger.With().Str("component", "sweeper").Logger(),
	}
}

// Start runs the sweep loop until the context is cancelled. It performs an
// immediate first sweep so a restart does not delay overdue expirations by a
// full interval.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info().
		Dur("interval", s.interval).
		Int("jobs", len(s.jobs)).
		Msg("sweeper started")

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep runs every job once. A failing job is logged and never blocks the
// jobs after it.
func (s *Scheduler) sweep(ctx context.Context) {
	for _, job := range s.jobs {
		if ctx.Err() != nil {
			return
		}

		var affected int
		err := s.policy.Execute(ctx, func(ctx context.Context) error {
			var runErr error
			affected, runErr = job.Run(ctx)
			return runErr
		})
		if err != nil {
			s.logger.Error().Err(err).Str("job", job.Name()).Msg("sweep job failed")
			continue
		}

		if affected > 0 {
			s.logger.Info().Str("job", job.Name()).Int("affected", affected).Msg("sweep job completed")
		}
	}
}
