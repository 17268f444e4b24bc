// Package scheduler runs periodic maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"blinddate-backend/internal/services"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Sweeper removes expired OTP records
type Sweeper interface {
	Sweep(ctx context.Context) (services.SweepResult, error)
}

// Scheduler wraps a cron runner
type Scheduler struct {
	cron *cron.Cron
}

// New creates a scheduler that runs the OTP sweep on schedule (standard
// cron expression or descriptor such as "@every 1m"). A tick is skipped while
// the previous one is still running.
func New(schedule string, sweeper Sweeper, timeout time.Duration) (*Scheduler, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))

	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if _, err := sweeper.Sweep(ctx); err != nil {
			log.Error().Err(err).Msg("OTP sweep failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return &Scheduler{cron: c}, nil
}

// Start starts the cron goroutine
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Info().Int("jobs", len(s.cron.Entries())).Msg("Scheduler started")
}

// Stop stops scheduling and waits for a running job until ctx ends
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		log.Warn().Msg("Scheduler stop timed out")
	}
}
