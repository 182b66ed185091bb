package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"FriendReminder/internal/ports"
)

// Scheduler wires the cron driver with the tick runner.
type Scheduler struct {
	driver ports.Scheduler
	runner *Runner
	logger *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring ticks.
func NewScheduler(driver ports.Scheduler, runner *Runner, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{driver: driver, runner: runner, logger: logger}
}

// Start registers the tick with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.runner == nil {
		return nil
	}

	return s.driver.Start(ctx, func(trigger time.Time) {
		s.run(ctx, trigger)
	})
}

func (s *Scheduler) run(ctx context.Context, trigger time.Time) {
	report, err := s.runner.Tick(ctx, trigger)
	switch {
	case errors.Is(err, ErrTickInProgress):
		s.logger.Warn("tick skipped, previous tick still running", "trigger", trigger)
	case err != nil:
		s.logger.Error("tick failed", "trigger", trigger, "error", err)
	case report.Failed() > 0:
		s.logger.Warn("tick finished with failures", "failed", report.Failed(), "total", len(report.Results))
	}
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
