package id

import (
	"testing"
	"time"
)

func resetClock() { NowMs = func() int64 { return time.Now().UnixMilli() } }

func TestOrderingMonotonic(t *testing.T) {
	g := NewGenerator()
	NowMs = func() int64 { return 1000 }
	defer resetClock()

	a := g.Next()
	b := g.Next()
	if a.Compare(b) >= 0 {
		t.Fatalf("expected a<b")
	}
	if a.TimeMs() != 1000 {
		t.Fatalf("timestamp not embedded: %d", a.TimeMs())
	}
}

func TestClockRegressionGuard(t *testing.T) {
	g := NewGenerator()
	now := int64(1000)
	NowMs = func() int64 { return now }
	defer resetClock()

	a := g.Next()
	now = 900
	b := g.Next()
	if a.Compare(b) >= 0 {
		t.Fatalf("expected b>a despite clock regression")
	}
}

func TestCounterExhaustionWaitsNextMs(t *testing.T) {
	g := NewGenerator()
	NowMs = func() int64 { return 2000 }
	defer resetClock()

	g.lastMs = 2000
	g.counter = ^uint32(0) - 1
	_ = g.Next()

	done := make(chan ID)
	go func() { done <- g.Next() }()
	time.AfterFunc(10*time.Millisecond, func() { NowMs = func() int64 { return 2001 } })

	select {
	case got := <-done:
		if got.TimeMs() != 2001 {
			t.Fatalf("expected rollover to next ms, got %d", got.TimeMs())
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timeout waiting for counter rollover")
	}
}

func TestParseRoundTrip(t *testing.T) {
	a := NewGenerator().Next()
	b, err := Parse(a.String())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if a != b {
		t.Fatalf("round trip mismatch")
	}
	if _, err := Parse("abcd"); err == nil {
		t.Fatalf("expected length error")
	}
	if c, ok := FromBytes(a.Bytes()); !ok || c != a {
		t.Fatalf("FromBytes mismatch")
	}
}

func TestGeneratorsDiffer(t *testing.T) {
	NowMs = func() int64 { return 5000 }
	defer resetClock()
	a, b := NewGenerator(), NewGenerator()
	if a.instance == b.instance {
		t.Skip("random instance words collided")
	}
	if a.Next() == b.Next() {
		t.Fatalf("two generators produced the same id")
	}
}
