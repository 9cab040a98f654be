package logger

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

// New returns base tagged with a component attribute.
func New(base *slog.Logger, component string) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	return base.With("component", component)
}

// Cron adapts a slog.Logger to the cron.Logger interface.
type Cron struct {
	logger *slog.Logger
}

var _ cron.Logger = Cron{}

// NewCron wraps logger for use with cron.WithLogger.
func NewCron(logger *slog.Logger) Cron {
	if logger == nil {
		logger = slog.Default()
	}
	return Cron{logger: logger}
}

// Info logs routine scheduler messages at debug level; cron is chatty.
func (c Cron) Info(msg string, keysAndValues ...interface{}) {
	c.logger.Debug(msg, keysAndValues...)
}

// Error logs scheduler failures, including recovered job panics.
func (c Cron) Error(err error, msg string, keysAndValues ...interface{}) {
	c.logger.Error(msg, append(keysAndValues, "error", err)...)
}
