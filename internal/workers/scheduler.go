package workers

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// CleanupEnqueuer submits blacklist cleanup tasks
type CleanupEnqueuer interface {
	EnqueueBlacklistCleanup(ctx context.Context) error
}

// OverdueSweeper auto-approves decisions past their deadline
type OverdueSweeper interface {
	SweepOverdue(ctx context.Context) (int64, error)
}

// Scheduler runs the worker's periodic jobs
type Scheduler struct {
	cron    *cron.Cron
	cleanup CleanupEnqueuer
	sweeper OverdueSweeper
	log     zerolog.Logger
}

// NewScheduler creates a scheduler. Jobs start with Start.
func NewScheduler(cleanup CleanupEnqueuer, sweeper OverdueSweeper, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		cleanup: cleanup,
		sweeper: sweeper,
		log:     log,
	}
}

// Start registers the jobs and starts the cron loop
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("0 0 * * * *", s.enqueueCleanup); err != nil { // hourly
		return err
	}
	// Catches decisions whose delayed task was lost
	if _, err := s.cron.AddFunc("30 * * * * *", s.sweepOverdue); err != nil {
		return err
	}

	s.cron.Start()

	// Run the sweep once on startup rather than waiting for the first tick
	go s.sweepOverdue()
	return nil
}

// Stop halts the cron loop and waits up to five seconds for running jobs
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("Scheduled jobs still running at shutdown")
	}
}

func (s *Scheduler) enqueueCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.cleanup.EnqueueBlacklistCleanup(ctx); err != nil {
		s.log.Error().Err(err).Msg("Enqueue blacklist cleanup failed")
	}
}

func (s *Scheduler) sweepOverdue() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	approved, err := s.sweeper.SweepOverdue(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Overdue decision sweep failed")
		return
	}
	if approved > 0 {
		s.log.Info().Int64("approved", approved).Msg("Auto-approved overdue decisions")
	}
}
