package ratelimit

import (
	"context"
	"sync"
	"time"

	errs "twarchive/pkg/errors"
	"twarchive/pkg/logger"
)

const (
	// DefaultPollInterval is how often quota is re-checked when the
	// reset time is unknown or already past.
	DefaultPollInterval = time.Second

	// DefaultResetMargin pads sleeps past the advertised reset time.
	DefaultResetMargin = 5 * time.Second
)

// Snapshot reports the server-side request quota at a point in time.
type Snapshot struct {
	Remaining int       // Requests left in the current window
	Reset     time.Time // When the window resets; zero if unknown
}

// ProbeFunc queries the service for the current quota.
type ProbeFunc func(ctx context.Context) (Snapshot, error)

// SleepFunc blocks for the given duration, honoring context cancellation.
type SleepFunc func(ctx context.Context, d time.Duration) error

// TrackerConfig adjusts the tracker's polling behavior.
type TrackerConfig struct {
	PollInterval time.Duration
	ResetMargin  time.Duration
}

// Tracker mirrors the service's request quota and blocks callers while
// it is exhausted. It never issues requests itself; the probe function
// supplies fresh quota readings.
type Tracker struct {
	mu        sync.Mutex
	remaining int
	reset     time.Time

	probe        ProbeFunc
	pollInterval time.Duration
	resetMargin  time.Duration
	sleep        SleepFunc
	now          func() time.Time
	log          logger.Logger
}

// NewTracker creates a Tracker fed by probe. A nil cfg uses the default
// poll interval and reset margin.
func NewTracker(probe ProbeFunc, cfg *TrackerConfig, log logger.Logger) *Tracker {
	t := &Tracker{
		probe:        probe,
		pollInterval: DefaultPollInterval,
		resetMargin:  DefaultResetMargin,
		sleep:        sleepContext,
		now:          time.Now,
		log:          log,
	}
	if t.log == nil {
		t.log = logger.GetLogger()
	}
	if cfg != nil {
		if cfg.PollInterval > 0 {
			t.pollInterval = cfg.PollInterval
		}
		if cfg.ResetMargin > 0 {
			t.resetMargin = cfg.ResetMargin
		}
	}
	return t
}

// Probe refreshes the tracker's view of the quota and returns it.
// Failures are wrapped in errs.ProbeError and leave the prior state
// untouched.
func (t *Tracker) Probe(ctx context.Context) (Snapshot, error) {
	snap, err := t.probe(ctx)
	if err != nil {
		return Snapshot{}, &errs.ProbeError{Err: err}
	}

	t.mu.Lock()
	t.remaining = snap.Remaining
	t.reset = snap.Reset
	t.mu.Unlock()

	t.log.DebugWithFields("Quota refreshed", map[string]interface{}{
		"remaining": snap.Remaining,
		"reset":     snap.Reset.Format(time.RFC3339),
	})
	return snap, nil
}

// Admit blocks until the quota allows another request, then consumes
// one unit. While fewer than two requests remain it sleeps until the
// advertised reset time plus a margin (or polls when no reset time is
// known) and re-probes before checking again.
func (t *Tracker) Admit(ctx context.Context) error {
	for {
		t.mu.Lock()
		if t.remaining > 1 {
			t.remaining--
			t.mu.Unlock()
			return nil
		}
		remaining := t.remaining
		reset := t.reset
		t.mu.Unlock()

		now := t.now()
		var wait time.Duration
		if !reset.IsZero() && now.Before(reset) {
			wait = reset.Sub(now) + t.resetMargin
		} else {
			wait = t.pollInterval
		}

		logger.LogQuotaWait(t.log, remaining, reset, wait)
		if err := t.sleep(ctx, wait); err != nil {
			return err
		}
		if _, err := t.Probe(ctx); err != nil {
			t.log.WithError(err).Warn("Quota probe failed, will retry")
		}
	}
}

// Quota returns the tracker's current view of the quota.
func (t *Tracker) Quota() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{Remaining: t.remaining, Reset: t.reset}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
