package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"NewsAggregator/internal/ports"
	"NewsAggregator/pkg/logger"
)

// parser accepts both five-field and six-field (leading seconds) expressions.
var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// CronScheduler fires a job on a cron expression in a fixed time zone.
type CronScheduler struct {
	spec     string
	location *time.Location
	logger   *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler validates the expression and time zone. An empty zone means UTC.
func NewCronScheduler(spec, timezone string, log *slog.Logger) (*CronScheduler, error) {
	if _, err := parser.Parse(spec); err != nil {
		return nil, fmt.Errorf("parse cron expression %q: %w", spec, err)
	}
	location := time.UTC
	if timezone != "" {
		loc, err := time.LoadLocation(timezone)
		if err != nil {
			return nil, fmt.Errorf("load time zone %q: %w", timezone, err)
		}
		location = loc
	}
	if log == nil {
		log = slog.Default()
	}
	return &CronScheduler{spec: spec, location: location, logger: log}, nil
}

// Start registers job and starts the cron loop. Calling Start twice is a no-op.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return nil
	}

	cronLog := logger.NewCron(c.logger)
	runner := cron.New(
		cron.WithParser(parser),
		cron.WithLocation(c.location),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	if _, err := runner.AddFunc(c.spec, func() {
		job(time.Now().In(c.location))
	}); err != nil {
		return fmt.Errorf("add cron job: %w", err)
	}
	runner.Start()
	c.cron = runner

	next := runner.Entries()[0].Next
	c.logger.Info("cron scheduler started", "expression", c.spec, "timezone", c.location.String(), "next_run", next.Format(time.RFC3339))

	go func() {
		<-ctx.Done()
		_ = c.Stop(context.Background())
	}()
	return nil
}

// Stop halts the cron loop and waits for a running job up to ctx's deadline.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	runner := c.cron
	c.cron = nil
	c.mu.Unlock()

	if runner == nil {
		return nil
	}

	done := runner.Stop()
	select {
	case <-done.Done():
		c.logger.Info("cron scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for running job: %w", ctx.Err())
	}
}
