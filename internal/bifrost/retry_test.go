package bifrost

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rzbill/bifrost/internal/loglet"
)

func TestRetryInterval(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, InitialInterval: 10 * time.Millisecond, Multiplier: 2, MaxInterval: 50 * time.Millisecond}
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 0},
		{1, 10 * time.Millisecond},
		{2, 20 * time.Millisecond},
		{3, 40 * time.Millisecond},
		{4, 50 * time.Millisecond},
		{30, 50 * time.Millisecond},
	}
	for _, c := range cases {
		if got := p.Interval(c.attempt); got != c.want {
			t.Fatalf("Interval(%d) = %v want %v", c.attempt, got, c.want)
		}
	}
}

func TestRetryDo(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, Multiplier: 1}
	ctx := context.Background()

	calls := 0
	err := p.Do(ctx, func(context.Context) error {
		calls++
		if calls < 3 {
			return loglet.Unavailable(errors.New("flaky"))
		}
		return nil
	}, nil)
	if err != nil || calls != 3 {
		t.Fatalf("recovering fn: calls=%d err=%v", calls, err)
	}

	calls = 0
	retries := 0
	err = p.Do(ctx, func(context.Context) error {
		calls++
		return loglet.Unavailable(errors.New("down"))
	}, func(int, time.Duration, error) { retries++ })
	if !errors.Is(err, ErrUnavailable) || calls != 3 || retries != 2 {
		t.Fatalf("exhausted: calls=%d retries=%d err=%v", calls, retries, err)
	}

	calls = 0
	permanent := errors.New("permanent")
	if err := p.Do(ctx, func(context.Context) error { calls++; return permanent }, nil); !errors.Is(err, permanent) || calls != 1 {
		t.Fatalf("permanent: calls=%d err=%v", calls, err)
	}
}

func TestRetryDoStopsOnCancel(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 10, InitialInterval: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	err := p.Do(ctx, func(context.Context) error {
		cancel()
		return loglet.Unavailable(errors.New("down"))
	}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want canceled, got %v", err)
	}
}
