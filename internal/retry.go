package internal

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy bounds a fetch-modify-submit loop.
//
// The delay before retry n (zero-based) is min(BaseDelay * 2^n, MaxDelay)
// plus a random jitter in [0, BaseDelay). MaxDelay == 0 means no cap.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Backoff returns the delay before the given zero-based retry
func (p RetryPolicy) Backoff(retry int, rng *rand.Rand) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	if retry > 30 {
		retry = 30
	}
	delay := p.BaseDelay * (1 << retry)
	if p.MaxDelay > 0 && (delay > p.MaxDelay || delay <= 0) {
		delay = p.MaxDelay
	}

	var jitter time.Duration
	if rng != nil {
		jitter = time.Duration(rng.Int63n(int64(p.BaseDelay)))
	} else {
		jitter = time.Duration(rand.Int63n(int64(p.BaseDelay))) // #nosec G404 -- retry timing only
	}
	return delay + jitter
}

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
