package local

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/rzbill/bifrost/internal/loglet"
	"github.com/rzbill/bifrost/internal/logs"
	pebblestore "github.com/rzbill/bifrost/internal/storage/pebble"
	"github.com/rzbill/bifrost/pkg/id"
	"github.com/rzbill/bifrost/pkg/log"
)

// readBatch bounds how many records a stream pulls per iterator pass.
const readBatch = 256

// Loglet stores one segment in the shared Pebble database.
type Loglet struct {
	db      *pebblestore.DB
	logID   logs.LogID
	segment uint32
	base    logs.LSN
	logger  log.Logger

	mu       sync.Mutex
	state    segmentState
	dedup    map[id.ID]loglet.Dedup
	notifyCh chan struct{}
}

// Open loads the segment state, initialising it at base when absent.
func Open(db *pebblestore.DB, logID logs.LogID, segment uint32, base logs.LSN, logger log.Logger) (*Loglet, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	l := &Loglet{
		db:       db,
		logID:    logID,
		segment:  segment,
		base:     base,
		logger:   logger.With(log.Uint64("log_id", uint64(logID)), log.Uint64("segment", uint64(segment))),
		state:    segmentState{tail: base, trimPoint: base},
		dedup:    map[id.ID]loglet.Dedup{},
		notifyCh: make(chan struct{}),
	}
	raw, err := db.Get(KeyMeta(logID, segment))
	switch {
	case err == nil:
		st, ok := decodeSegmentState(raw)
		if !ok {
			return nil, fmt.Errorf("%w: segment state of log %s segment %d", ErrCorrupt, logID, segment)
		}
		l.state = st
	case errors.Is(err, pebblestore.ErrNotFound):
	default:
		return nil, loglet.Unavailable(err)
	}
	return l, nil
}

// producerState returns the dedup state of p, reading through to Pebble.
func (l *Loglet) producerState(p id.ID) (loglet.Dedup, bool, error) {
	if d, ok := l.dedup[p]; ok {
		return d, true, nil
	}
	raw, err := l.db.Get(KeyProducer(l.logID, l.segment, p))
	if errors.Is(err, pebblestore.ErrNotFound) {
		return loglet.Dedup{}, false, nil
	}
	if err != nil {
		return loglet.Dedup{}, false, loglet.Unavailable(err)
	}
	d, ok := decodeProducerState(raw)
	if !ok {
		return loglet.Dedup{}, false, fmt.Errorf("%w: producer state %s", ErrCorrupt, p)
	}
	l.dedup[p] = d
	return d, true, nil
}

// Append implements loglet.Loglet. Records, the new tail and the producer
// state commit in one batch.
func (l *Loglet) Append(ctx context.Context, token loglet.Token, payloads [][]byte) (logs.LSN, error) {
	if len(payloads) == 0 {
		return logs.LSNInvalid, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if !token.IsZero() {
		d, ok, err := l.producerState(token.Producer)
		if err != nil {
			return logs.LSNInvalid, err
		}
		if ok {
			first, dup, err := d.Check(token)
			if err != nil {
				return logs.LSNInvalid, err
			}
			if dup {
				return logs.LSN(first), nil
			}
		}
	}
	if l.state.sealed {
		return logs.LSNInvalid, loglet.ErrSealed
	}

	b := l.db.NewBatch()
	defer b.Close()

	first := l.state.tail
	next := l.state
	for _, p := range payloads {
		if err := b.Set(KeyEntry(l.logID, l.segment, next.tail), encodeRecord(p), nil); err != nil {
			return logs.LSNInvalid, loglet.Unavailable(err)
		}
		next.tail++
	}
	if err := b.Set(KeyMeta(l.logID, l.segment), next.encode(), nil); err != nil {
		return logs.LSNInvalid, loglet.Unavailable(err)
	}
	if !token.IsZero() {
		d := loglet.Dedup{Seq: token.Seq, First: uint64(first)}
		if err := b.Set(KeyProducer(l.logID, l.segment, token.Producer), encodeProducerState(d), nil); err != nil {
			return logs.LSNInvalid, loglet.Unavailable(err)
		}
	}
	if err := l.db.CommitBatch(ctx, b); err != nil {
		if ctx.Err() != nil {
			return logs.LSNInvalid, err
		}
		return logs.LSNInvalid, loglet.Unavailable(err)
	}

	l.state = next
	if !token.IsZero() {
		l.dedup[token.Producer] = loglet.Dedup{Seq: token.Seq, First: uint64(first)}
	}
	l.notifyLocked()
	return first, nil
}

func (l *Loglet) notifyLocked() {
	close(l.notifyCh)
	l.notifyCh = make(chan struct{})
}

// Tail implements loglet.Loglet.
func (l *Loglet) Tail(context.Context) (loglet.TailState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return loglet.TailState{Offset: l.state.tail, Sealed: l.state.sealed}, nil
}

// TrimPoint implements loglet.Loglet.
func (l *Loglet) TrimPoint(context.Context) (logs.LSN, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.trimPoint, nil
}

// Trim implements loglet.Loglet with a single range delete.
func (l *Loglet) Trim(ctx context.Context, lsn logs.LSN) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lsn > l.state.tail {
		lsn = l.state.tail
	}
	if lsn <= l.state.trimPoint {
		return nil
	}
	next := l.state
	next.trimPoint = lsn

	b := l.db.NewBatch()
	defer b.Close()
	if err := b.DeleteRange(KeyEntry(l.logID, l.segment, l.state.trimPoint), KeyEntry(l.logID, l.segment, lsn), nil); err != nil {
		return loglet.Unavailable(err)
	}
	if err := b.Set(KeyMeta(l.logID, l.segment), next.encode(), nil); err != nil {
		return loglet.Unavailable(err)
	}
	if err := l.db.CommitBatch(ctx, b); err != nil {
		return loglet.Unavailable(err)
	}
	l.logger.Debug("trimmed", log.Uint64("from", uint64(l.state.trimPoint)), log.Uint64("to", uint64(lsn)))
	l.state = next
	return nil
}

// Seal implements loglet.Loglet.
func (l *Loglet) Seal(ctx context.Context) (logs.LSN, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.sealed {
		return l.state.tail, nil
	}
	next := l.state
	next.sealed = true
	if err := l.db.Set(ctx, KeyMeta(l.logID, l.segment), next.encode()); err != nil {
		return logs.LSNInvalid, loglet.Unavailable(err)
	}
	l.state = next
	l.notifyLocked()
	l.logger.Info("sealed", log.Uint64("tail", uint64(next.tail)))
	return next.tail, nil
}

// Producers implements loglet.Loglet. It reads the stored states, which
// also covers producers not yet cached since Open.
func (l *Loglet) Producers(context.Context) (map[id.ID]loglet.Dedup, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	prefix := producerPrefix(l.logID, l.segment)
	iter, err := l.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixEnd(prefix)})
	if err != nil {
		return nil, loglet.Unavailable(err)
	}
	defer iter.Close()

	out := map[id.ID]loglet.Dedup{}
	for valid := iter.First(); valid; valid = iter.Next() {
		p, okID := id.FromBytes(iter.Key()[len(prefix):])
		d, okState := decodeProducerState(iter.Value())
		if !okID || !okState {
			return nil, fmt.Errorf("%w: producer state of log %s segment %d", ErrCorrupt, l.logID, l.segment)
		}
		out[p] = d
	}
	if err := iter.Error(); err != nil {
		return nil, loglet.Unavailable(err)
	}
	return out, nil
}

// AdoptProducers implements loglet.Loglet. Adopted states commit in one batch.
func (l *Loglet) AdoptProducers(ctx context.Context, states map[id.ID]loglet.Dedup) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.db.NewBatch()
	defer b.Close()
	adopted := make(map[id.ID]loglet.Dedup, len(states))
	for p, d := range states {
		cur, ok, err := l.producerState(p)
		if err != nil {
			return err
		}
		if ok && cur.Seq >= d.Seq {
			continue
		}
		if err := b.Set(KeyProducer(l.logID, l.segment, p), encodeProducerState(d), nil); err != nil {
			return loglet.Unavailable(err)
		}
		adopted[p] = d
	}
	if len(adopted) == 0 {
		return nil
	}
	if err := l.db.CommitBatch(ctx, b); err != nil {
		if ctx.Err() != nil {
			return err
		}
		return loglet.Unavailable(err)
	}
	for p, d := range adopted {
		l.dedup[p] = d
	}
	return nil
}

// Destroy removes every key of the segment. Used once metadata no longer
// references it.
func (l *Loglet) Destroy(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	start := segmentPrefix(l.logID, l.segment)
	end := segmentPrefix(l.logID, l.segment+1)
	if err := l.db.DeleteRange(ctx, start, end); err != nil {
		return loglet.Unavailable(err)
	}
	if err := l.db.CompactRange(start, end); err != nil {
		l.logger.Warn("compact released segment failed", log.Err(err))
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

// fill reads up to readBatch records from pos. With nothing to read it
// returns the channel that closes on the next append or seal.
func (l *Loglet) fill(pos logs.LSN) ([]loglet.Entry, <-chan struct{}, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if pos < l.state.trimPoint {
		return nil, nil, &loglet.TrimmedError{LSN: pos, TrimPoint: l.state.trimPoint}
	}
	if pos >= l.state.tail {
		if l.state.sealed {
			return nil, nil, loglet.ErrSealed
		}
		return nil, l.notifyCh, nil
	}

	low := KeyEntry(l.logID, l.segment, pos)
	hi := KeyEntry(l.logID, l.segment, l.state.tail)
	iter, err := l.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: hi})
	if err != nil {
		return nil, nil, loglet.Unavailable(err)
	}
	defer iter.Close()

	out := make([]loglet.Entry, 0, readBatch)
	expect := pos
	for ok := iter.First(); ok && len(out) < readBatch; ok = iter.Next() {
		lsn := lsnFromEntryKey(iter.Key())
		if lsn != expect {
			return nil, nil, fmt.Errorf("%w: log %s segment %d missing lsn %s", ErrCorrupt, l.logID, l.segment, expect)
		}
		payload, err := decodeRecord(iter.Value())
		if err != nil {
			return nil, nil, fmt.Errorf("%w at lsn %s", err, lsn)
		}
		out = append(out, loglet.Entry{LSN: lsn, Payload: payload})
		expect++
	}
	if err := iter.Error(); err != nil {
		return nil, nil, loglet.Unavailable(err)
	}
	if len(out) == 0 {
		return nil, nil, fmt.Errorf("%w: log %s segment %d missing lsn %s", ErrCorrupt, l.logID, l.segment, pos)
	}
	return out, nil, nil
}

type stream struct {
	l   *Loglet
	pos logs.LSN
	buf []loglet.Entry
}

func (s *stream) Next(ctx context.Context) (loglet.Entry, error) {
	for len(s.buf) == 0 {
		if err := ctx.Err(); err != nil {
			return loglet.Entry{}, err
		}
		entries, wait, err := s.l.fill(s.pos)
		if err != nil {
			return loglet.Entry{}, err
		}
		if wait != nil {
			select {
			case <-wait:
			case <-ctx.Done():
				return loglet.Entry{}, ctx.Err()
			}
			continue
		}
		s.buf = entries
	}
	e := s.buf[0]
	s.buf = s.buf[1:]
	s.pos = e.LSN + 1
	return e, nil
}

func (s *stream) Position() logs.LSN { return s.pos }

func (s *stream) Close() error {
	s.buf = nil
	return nil
}
