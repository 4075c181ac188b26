// Package memory implements an in-process loglet. Records live in a slice
// and vanish with the process; it backs the memory provider kind and is the
// reference backend used by tests across the repository.
package memory

import (
	"context"
	"sync"

	"github.com/rzbill/bifrost/internal/loglet"
	"github.com/rzbill/bifrost/internal/logs"
	"github.com/rzbill/bifrost/pkg/id"
)

// Loglet keeps the records of one segment in memory.
type Loglet struct {
	mu        sync.Mutex
	base      logs.LSN
	trimPoint logs.LSN
	entries   [][]byte // entries[i] holds base+i; trimmed slots are nil
	sealed    bool
	dedup     map[id.ID]loglet.Dedup
	notifyCh  chan struct{}

	faults faultPlan
}

// faultPlan makes upcoming appends fail for tests of retry paths.
type faultPlan struct {
	remaining  int
	err        error
	thenCommit bool
}

// New returns an empty loglet whose first record gets base.
func New(base logs.LSN) *Loglet {
	if base == logs.LSNInvalid {
		base = logs.LSNOldest
	}
	return &Loglet{
		base:      base,
		trimPoint: base,
		dedup:     map[id.ID]loglet.Dedup{},
		notifyCh:  make(chan struct{}),
	}
}

// FailNextAppends makes the next n appends fail with err. When commit is
// true the records are stored before the error is returned, which emulates
// an append whose outcome the caller cannot know.
func (l *Loglet) FailNextAppends(n int, err error, commit bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.faults = faultPlan{remaining: n, err: err, thenCommit: commit}
}

func (l *Loglet) tailLocked() logs.LSN { return l.base + logs.LSN(len(l.entries)) }

// Append implements loglet.Loglet.
func (l *Loglet) Append(ctx context.Context, token loglet.Token, payloads [][]byte) (logs.LSN, error) {
	if err := ctx.Err(); err != nil {
		return logs.LSNInvalid, err
	}
	if len(payloads) == 0 {
		return logs.LSNInvalid, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if !token.IsZero() {
		if d, ok := l.dedup[token.Producer]; ok {
			first, dup, err := d.Check(token)
			if err != nil {
				return logs.LSNInvalid, err
			}
			if dup {
				return logs.LSN(first), nil
			}
		}
	}
	if l.faults.remaining > 0 && !l.faults.thenCommit {
		l.faults.remaining--
		return logs.LSNInvalid, l.faults.err
	}
	if l.sealed {
		return logs.LSNInvalid, loglet.ErrSealed
	}

	first := l.tailLocked()
	for _, p := range payloads {
		l.entries = append(l.entries, append([]byte(nil), p...))
	}
	if !token.IsZero() {
		l.dedup[token.Producer] = loglet.Dedup{Seq: token.Seq, First: uint64(first)}
	}
	close(l.notifyCh)
	l.notifyCh = make(chan struct{})

	if l.faults.remaining > 0 {
		l.faults.remaining--
		return logs.LSNInvalid, l.faults.err
	}
	return first, nil
}

// Tail implements loglet.Loglet.
func (l *Loglet) Tail(context.Context) (loglet.TailState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return loglet.TailState{Offset: l.tailLocked(), Sealed: l.sealed}, nil
}

// TrimPoint implements loglet.Loglet.
func (l *Loglet) TrimPoint(context.Context) (logs.LSN, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.trimPoint, nil
}

// Trim implements loglet.Loglet.
func (l *Loglet) Trim(_ context.Context, lsn logs.LSN) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if tail := l.tailLocked(); lsn > tail {
		lsn = tail
	}
	if lsn <= l.trimPoint {
		return nil
	}
	for i := l.trimPoint - l.base; i < lsn-l.base; i++ {
		l.entries[i] = nil
	}
	l.trimPoint = lsn
	return nil
}

// Seal implements loglet.Loglet.
func (l *Loglet) Seal(context.Context) (logs.LSN, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.sealed {
		l.sealed = true
		close(l.notifyCh)
		l.notifyCh = make(chan struct{})
	}
	return l.tailLocked(), nil
}

// Producers implements loglet.Loglet.
func (l *Loglet) Producers(context.Context) (map[id.ID]loglet.Dedup, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[id.ID]loglet.Dedup, len(l.dedup))
	for p, d := range l.dedup {
		out[p] = d
	}
	return out, nil
}

// AdoptProducers implements loglet.Loglet.
func (l *Loglet) AdoptProducers(_ context.Context, states map[id.ID]loglet.Dedup) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for p, d := range states {
		if cur, ok := l.dedup[p]; ok && cur.Seq >= d.Seq {
			continue
		}
		l.dedup[p] = d
	}
	return nil
}

// ReadFrom implements loglet.Loglet.
func (l *Loglet) ReadFrom(_ context.Context, from logs.LSN) (loglet.ReadStream, error) {
	if from < l.base {
		from = l.base
	}
	return &stream{l: l, pos: from}, nil
}

// next returns the entry at pos, or a channel that closes on the next change.
func (l *Loglet) next(pos logs.LSN) (loglet.Entry, <-chan struct{}, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if pos < l.trimPoint {
		return loglet.Entry{}, nil, &loglet.TrimmedError{LSN: pos, TrimPoint: l.trimPoint}
	}
	if pos < l.tailLocked() {
		p := l.entries[pos-l.base]
		return loglet.Entry{LSN: pos, Payload: p}, nil, nil
	}
	if l.sealed {
		return loglet.Entry{}, nil, loglet.ErrSealed
	}
	return loglet.Entry{}, l.notifyCh, nil
}

type stream struct {
	l   *Loglet
	pos logs.LSN
}

func (s *stream) Next(ctx context.Context) (loglet.Entry, error) {
	for {
		e, wait, err := s.l.next(s.pos)
		if err != nil {
			return loglet.Entry{}, err
		}
		if wait == nil {
			s.pos = e.LSN + 1
			return e, nil
		}
		select {
		case <-wait:
		case <-ctx.Done():
			return loglet.Entry{}, ctx.Err()
		}
	}
}

func (s *stream) Position() logs.LSN { return s.pos }

func (s *stream) Close() error { return nil }
