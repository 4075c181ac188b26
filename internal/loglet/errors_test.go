package loglet

import (
	"errors"
	"fmt"
	"testing"

	"github.com/rzbill/bifrost/pkg/id"
)

func TestTrimmedErrorMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("read: %w", &TrimmedError{LSN: 1, TrimPoint: 2})
	if !errors.Is(err, ErrTrimmed) {
		t.Fatalf("expected ErrTrimmed match")
	}
	var te *TrimmedError
	if !errors.As(err, &te) || te.TrimPoint != 2 {
		t.Fatalf("expected TrimmedError, got %v", err)
	}
	if IsRetryable(err) {
		t.Fatalf("trimmed is not retryable")
	}
}

func TestUnavailableIsRetryable(t *testing.T) {
	if Unavailable(nil) != nil {
		t.Fatalf("nil stays nil")
	}
	err := Unavailable(errors.New("disk full"))
	if !IsRetryable(err) {
		t.Fatalf("expected retryable")
	}
}

func TestDedupCheck(t *testing.T) {
	p := id.NewGenerator().Next()
	d := Dedup{Seq: 5, First: 40}

	if first, dup, err := d.Check(Token{Producer: p, Seq: 5}); err != nil || !dup || first != 40 {
		t.Fatalf("repeat: %d %v %v", first, dup, err)
	}
	if _, _, err := d.Check(Token{Producer: p, Seq: 4}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("older: %v", err)
	}
	if _, dup, err := d.Check(Token{Producer: p, Seq: 6}); err != nil || dup {
		t.Fatalf("newer: %v %v", dup, err)
	}
	if !(Token{}).IsZero() || (Token{Producer: p}).IsZero() {
		t.Fatalf("IsZero")
	}
}
