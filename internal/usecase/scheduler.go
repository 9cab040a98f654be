package usecase

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"NewsAggregator/internal/domain"
	"NewsAggregator/internal/ports"
)

// Runner is the aggregation entry point shared by cron and manual triggers.
type Runner interface {
	Run(ctx context.Context) (RunReport, error)
}

// Scheduler wires the cron-like driver with the aggregation use case and keeps
// at most one run in flight, whichever caller started it.
type Scheduler struct {
	driver  ports.Scheduler
	runner  Runner
	logger  *slog.Logger
	running atomic.Bool
}

// NewScheduler returns a helper to start/stop recurring runs.
func NewScheduler(driver ports.Scheduler, runner Runner, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{driver: driver, runner: runner, logger: logger}
}

// Start registers the aggregation run with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.runner == nil {
		return nil
	}

	job := func(fired time.Time) {
		s.logger.Info("scheduled aggregation fired", "at", fired.Format(time.RFC3339))
		if _, err := s.Trigger(ctx); err != nil {
			s.logger.Warn("scheduled aggregation did not complete", "error", err)
		}
	}

	return s.driver.Start(ctx, job)
}

// Trigger runs one aggregation synchronously. It returns domain.ErrRunInProgress
// without running when another run has not finished yet.
func (s *Scheduler) Trigger(ctx context.Context) (RunReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		return RunReport{}, domain.ErrRunInProgress
	}
	defer s.running.Store(false)

	return s.runner.Run(ctx)
}

// Running reports whether a run is in flight.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
