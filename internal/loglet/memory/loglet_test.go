package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"

	"github.com/rzbill/bifrost/internal/loglet"
	"github.com/rzbill/bifrost/internal/logs"
	"github.com/rzbill/bifrost/pkg/id"
)

func payloads(ss ...string) [][]byte {
	out := make([][]byte, len(ss))
	for i, s := range ss {
		out[i] = []byte(s)
	}
	return out
}

func TestAppendAssignsContiguousLSNs(t *testing.T) {
	l := New(logs.LSNOldest)
	ctx := context.Background()
	first, err := l.Append(ctx, loglet.Token{}, payloads("a", "b"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if first != 1 {
		t.Fatalf("first lsn: got %d want 1", first)
	}
	next, err := l.Append(ctx, loglet.Token{}, payloads("c"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if next != 3 {
		t.Fatalf("next lsn: got %d want 3", next)
	}
	ts, _ := l.Tail(ctx)
	if ts.Offset != 4 || ts.Sealed {
		t.Fatalf("tail: %+v", ts)
	}
}

func TestReadFromFollowsAppends(t *testing.T) {
	defer leaktest.Check(t)()
	l := New(logs.LSNOldest)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rs, err := l.ReadFrom(ctx, logs.LSNOldest)
	if err != nil {
		t.Fatalf("read from: %v", err)
	}
	defer rs.Close()

	got := make(chan loglet.Entry, 1)
	go func() {
		e, err := rs.Next(ctx)
		if err != nil {
			t.Errorf("next: %v", err)
		}
		got <- e
	}()

	time.Sleep(20 * time.Millisecond)
	if _, err := l.Append(ctx, loglet.Token{}, payloads("x")); err != nil {
		t.Fatalf("append: %v", err)
	}
	select {
	case e := <-got:
		if e.LSN != 1 || string(e.Payload) != "x" {
			t.Fatalf("entry: %+v", e)
		}
	case <-ctx.Done():
		t.Fatalf("reader was not woken by append")
	}
	if rs.Position() != 2 {
		t.Fatalf("position: got %d want 2", rs.Position())
	}
}

func TestNextHonoursContext(t *testing.T) {
	defer leaktest.Check(t)()
	l := New(logs.LSNOldest)
	rs, _ := l.ReadFrom(context.Background(), logs.LSNOldest)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := rs.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want deadline exceeded, got %v", err)
	}
}

func TestTrimAndTrimmedRead(t *testing.T) {
	l := New(logs.LSNOldest)
	ctx := context.Background()
	_, _ = l.Append(ctx, loglet.Token{}, payloads("a", "b", "c"))

	if err := l.Trim(ctx, 2); err != nil {
		t.Fatalf("trim: %v", err)
	}
	if tp, _ := l.TrimPoint(ctx); tp != 2 {
		t.Fatalf("trim point: got %d want 2", tp)
	}
	// lower trims are no-ops
	if err := l.Trim(ctx, 1); err != nil {
		t.Fatalf("trim: %v", err)
	}
	if tp, _ := l.TrimPoint(ctx); tp != 2 {
		t.Fatalf("trim point moved backwards: %d", tp)
	}

	rs, _ := l.ReadFrom(ctx, 1)
	_, err := rs.Next(ctx)
	var te *loglet.TrimmedError
	if !errors.As(err, &te) || te.TrimPoint != 2 {
		t.Fatalf("want trimmed error at 2, got %v", err)
	}

	rs, _ = l.ReadFrom(ctx, 2)
	e, err := rs.Next(ctx)
	if err != nil || string(e.Payload) != "b" {
		t.Fatalf("read after trim: %+v %v", e, err)
	}
}

func TestTrimBeyondTailIsClamped(t *testing.T) {
	l := New(logs.LSNOldest)
	ctx := context.Background()
	_, _ = l.Append(ctx, loglet.Token{}, payloads("a"))
	if err := l.Trim(ctx, 100); err != nil {
		t.Fatalf("trim: %v", err)
	}
	if tp, _ := l.TrimPoint(ctx); tp != 2 {
		t.Fatalf("trim point: got %d want 2", tp)
	}
}

func TestSealRejectsAppendsAndEndsReads(t *testing.T) {
	defer leaktest.Check(t)()
	l := New(logs.LSNOldest)
	ctx := context.Background()
	_, _ = l.Append(ctx, loglet.Token{}, payloads("a"))

	rs, _ := l.ReadFrom(ctx, logs.LSNOldest)
	if _, err := rs.Next(ctx); err != nil {
		t.Fatalf("next: %v", err)
	}
	done := make(chan error, 1)
	go func() {
		_, err := rs.Next(ctx)
		done <- err
	}()

	tail, err := l.Seal(ctx)
	if err != nil || tail != 2 {
		t.Fatalf("seal: %d %v", tail, err)
	}
	if err := <-done; !errors.Is(err, loglet.ErrSealed) {
		t.Fatalf("blocked reader: want sealed, got %v", err)
	}
	if _, err := l.Append(ctx, loglet.Token{}, payloads("b")); !errors.Is(err, loglet.ErrSealed) {
		t.Fatalf("append after seal: want sealed, got %v", err)
	}
	// sealing twice reports the same tail
	if again, _ := l.Seal(ctx); again != tail {
		t.Fatalf("reseal tail: got %d want %d", again, tail)
	}
}

func TestTokenDeduplicatesRetries(t *testing.T) {
	l := New(logs.LSNOldest)
	ctx := context.Background()
	producer := id.NewGenerator().Next()

	tok := loglet.Token{Producer: producer, Seq: 1}
	first, err := l.Append(ctx, tok, payloads("a"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	again, err := l.Append(ctx, tok, payloads("a"))
	if err != nil || again != first {
		t.Fatalf("retry: got %d %v want %d", again, err, first)
	}
	ts, _ := l.Tail(ctx)
	if ts.Offset != 2 {
		t.Fatalf("retry appended twice: tail %d", ts.Offset)
	}

	// retried after a seal still reports the committed lsn
	_, _ = l.Seal(ctx)
	if again, err := l.Append(ctx, tok, payloads("a")); err != nil || again != first {
		t.Fatalf("retry after seal: got %d %v", again, err)
	}

	if _, err := l.Append(ctx, loglet.Token{Producer: producer, Seq: 0}, payloads("z")); !errors.Is(err, loglet.ErrDuplicate) {
		t.Fatalf("stale token: want duplicate, got %v", err)
	}
}

func TestFailNextAppends(t *testing.T) {
	l := New(logs.LSNOldest)
	ctx := context.Background()

	l.FailNextAppends(1, loglet.Unavailable(errors.New("boom")), false)
	if _, err := l.Append(ctx, loglet.Token{}, payloads("a")); !loglet.IsRetryable(err) {
		t.Fatalf("want retryable, got %v", err)
	}
	if ts, _ := l.Tail(ctx); ts.Offset != 1 {
		t.Fatalf("failed append was stored: tail %d", ts.Offset)
	}

	tok := loglet.Token{Producer: id.NewGenerator().Next(), Seq: 1}
	l.FailNextAppends(1, loglet.Unavailable(errors.New("lost ack")), true)
	if _, err := l.Append(ctx, tok, payloads("b")); !loglet.IsRetryable(err) {
		t.Fatalf("want retryable, got %v", err)
	}
	lsn, err := l.Append(ctx, tok, payloads("b"))
	if err != nil || lsn != 1 {
		t.Fatalf("retry of committed append: got %d %v", lsn, err)
	}
	if ts, _ := l.Tail(ctx); ts.Offset != 2 {
		t.Fatalf("tail: got %d want 2", ts.Offset)
	}
}

func TestSegmentBaseOffsetsLSNs(t *testing.T) {
	f := NewFactory()
	seg := logs.Segment{Index: 1, BaseLSN: 10, UntilLSN: logs.LSNMax, Kind: logs.ProviderMemory, Params: f.Params(3, 1)}
	ll, err := f.Get(context.Background(), 3, seg)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	lsn, err := ll.Append(context.Background(), loglet.Token{}, payloads("a"))
	if err != nil || lsn != 10 {
		t.Fatalf("append: %d %v", lsn, err)
	}
	same, _ := f.Get(context.Background(), 3, seg)
	if same != ll {
		t.Fatalf("factory returned a different loglet for the same params")
	}
	_ = f.Close()
	if _, err := f.Get(context.Background(), 3, seg); !errors.Is(err, loglet.ErrClosed) {
		t.Fatalf("get after close: %v", err)
	}
}

func TestProducersCarryToSuccessor(t *testing.T) {
	ctx := context.Background()
	g := id.NewGenerator()
	p, q := g.Next(), g.Next()
	prev := New(logs.LSNOldest)
	if _, err := prev.Append(ctx, loglet.Token{Producer: p, Seq: 4}, payloads("a", "b")); err != nil {
		t.Fatalf("append: %v", err)
	}
	tail, _ := prev.Seal(ctx)
	states, err := prev.Producers(ctx)
	if err != nil || len(states) != 1 || states[p] != (loglet.Dedup{Seq: 4, First: 1}) {
		t.Fatalf("producers: %+v %v", states, err)
	}

	next := New(tail)
	if _, err := next.Append(ctx, loglet.Token{Producer: q, Seq: 9}, payloads("c")); err != nil {
		t.Fatalf("append: %v", err)
	}
	// a newer state already in the successor is kept
	stale := map[id.ID]loglet.Dedup{p: states[p], q: {Seq: 2, First: 1}}
	if err := next.AdoptProducers(ctx, stale); err != nil {
		t.Fatalf("adopt: %v", err)
	}
	if lsn, err := next.Append(ctx, loglet.Token{Producer: p, Seq: 4}, payloads("a", "b")); err != nil || lsn != 1 {
		t.Fatalf("carried token: %d %v", lsn, err)
	}
	if lsn, err := next.Append(ctx, loglet.Token{Producer: q, Seq: 9}, payloads("c")); err != nil || lsn != 3 {
		t.Fatalf("own token: %d %v", lsn, err)
	}
	if ts, _ := next.Tail(ctx); ts.Offset != 4 {
		t.Fatalf("tail: %d", ts.Offset)
	}
}
