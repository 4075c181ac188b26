package bifrost

import (
	"context"
	"math"
	"time"

	"github.com/rzbill/bifrost/internal/loglet"
)

// RetryPolicy bounds the retries of a retryable loglet failure.
type RetryPolicy struct {
	// MaxAttempts counts the first try. Values below 1 mean a single try.
	MaxAttempts     int
	InitialInterval time.Duration
	Multiplier      float64
	MaxInterval     time.Duration
}

// DefaultRetryPolicy is used when no policy is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, InitialInterval: 10 * time.Millisecond, Multiplier: 2, MaxInterval: time.Second}
}

// Interval returns the wait after the given failed attempt (1-based).
func (p RetryPolicy) Interval(attempt int) time.Duration {
	if attempt < 1 || p.InitialInterval <= 0 {
		return 0
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := time.Duration(float64(p.InitialInterval) * math.Pow(mult, float64(attempt-1)))
	if p.MaxInterval > 0 && (d > p.MaxInterval || d < 0) {
		d = p.MaxInterval
	}
	return d
}

// Do runs fn until it succeeds, fails with a non-retryable error, the
// attempts run out or ctx ends. onRetry sees each retryable failure.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error, onRetry func(attempt int, wait time.Duration, err error)) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil || !loglet.IsRetryable(err) || attempt >= attempts {
			return err
		}
		wait := p.Interval(attempt)
		if onRetry != nil {
			onRetry(attempt, wait, err)
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
