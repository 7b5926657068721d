package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer enforces a minimum interval between outbound requests,
// independent of the server-side quota mirrored by Tracker.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer returns a Pacer allowing one request per interval. A
// non-positive interval disables pacing.
func NewPacer(interval time.Duration) *Pacer {
	if interval <= 0 {
		return &Pacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	l := rate.NewLimiter(rate.Every(interval), 1)
	// The limiter starts with a full token. Drain it so the very first
	// Wait pays the interval like every later one.
	l.Allow()
	return &Pacer{limiter: l}
}

// Wait blocks until the next request may be sent.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
