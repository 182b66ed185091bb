package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"FriendReminder/internal/ports"
	"FriendReminder/pkg/logger"
)

// CronScheduler runs the job on a standard five-field cron expression in a fixed timezone.
type CronScheduler struct {
	spec   string
	loc    *time.Location
	logger *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler configured via cron expression string.
func NewCronScheduler(spec string, loc *time.Location, log *slog.Logger) *CronScheduler {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = slog.Default()
	}
	return &CronScheduler{spec: spec, loc: loc, logger: log}
}

// Validate reports whether the cron expression parses.
func Validate(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("parse cron expression %q: %w", spec, err)
	}
	return nil
}

// Start registers the job and begins scheduling. The job receives the trigger time
// in the scheduler timezone. Starting twice is a no-op.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return errors.New("cron job is nil")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return nil
	}

	printf := cron.PrintfLogger(logger.FromSlog(c.logger, slog.LevelWarn))
	cr := cron.New(
		cron.WithLocation(c.loc),
		cron.WithLogger(printf),
		cron.WithChain(cron.Recover(printf)),
	)
	if _, err := cr.AddFunc(c.spec, func() { job(time.Now().In(c.loc)) }); err != nil {
		return fmt.Errorf("schedule %q: %w", c.spec, err)
	}

	cr.Start()
	c.cron = cr
	c.logger.Info("cron scheduler started", "spec", c.spec, "timezone", c.loc.String())

	go func() {
		<-ctx.Done()
		_ = c.Stop(context.Background())
	}()
	return nil
}

// Stop halts scheduling and waits for a running job to finish or ctx to expire.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	cr := c.cron
	c.cron = nil
	c.mu.Unlock()
	if cr == nil {
		return nil
	}

	done := cr.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
