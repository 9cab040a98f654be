package scanner

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces requests of one source so that consecutive requests are at
// least delay apart, including the very first one.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer returns a pacer; a non-positive delay disables waiting.
func NewPacer(delay time.Duration) *Pacer {
	if delay <= 0 {
		return &Pacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	limiter := rate.NewLimiter(rate.Every(delay), 1)
	// drain the initial burst token so the first request waits too
	limiter.Allow()
	return &Pacer{limiter: limiter}
}

// Wait blocks until the next request may be issued.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.limiter == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
