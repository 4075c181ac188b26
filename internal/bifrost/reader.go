package bifrost

import (
	"context"
	"errors"
	"io"

	"github.com/rzbill/bifrost/internal/loglet"
	"github.com/rzbill/bifrost/internal/logs"
	"github.com/rzbill/bifrost/pkg/log"
)

// ReadOptions bounds a read.
type ReadOptions struct {
	// From is the first LSN to read. LSNInvalid starts at the trim point.
	From logs.LSN
	// Until is the exclusive upper bound; LSNInvalid means none. Reads that
	// do not follow also stop at the tail seen by the first Next.
	Until logs.LSN
	// Follow blocks at the tail for new records instead of ending.
	Follow bool
}

// Reader reads one log across its segments in LSN order. It is not safe
// for concurrent use.
type Reader struct {
	b     *Bifrost
	logID logs.LogID
	opts  ReadOptions

	started bool
	pos     logs.LSN
	until   logs.LSN
	seg     logs.Segment
	stream  loglet.ReadStream
	closed  bool
}

func newReader(b *Bifrost, logID logs.LogID, opts ReadOptions) *Reader {
	return &Reader{b: b, logID: logID, opts: opts, pos: opts.From}
}

// ReadPointer is the LSN the next record will have at the earliest. A new
// reader created From it resumes where this one stopped.
func (r *Reader) ReadPointer() logs.LSN { return r.pos }

// Next returns the next record. Bounded reads end with io.EOF; following
// reads block until a record arrives or ctx ends.
func (r *Reader) Next(ctx context.Context) (LogRecord, error) {
	if r.closed {
		return LogRecord{}, wrap("read", r.logID, r.pos, ErrClosed)
	}
	if err := r.b.checkOpen(); err != nil {
		return LogRecord{}, wrap("read", r.logID, r.pos, err)
	}
	if !r.started {
		if err := r.start(ctx); err != nil {
			return LogRecord{}, wrap("read", r.logID, r.pos, err)
		}
	}
	for {
		if r.pos >= r.until {
			return LogRecord{}, io.EOF
		}
		if r.stream == nil {
			if err := r.open(ctx); err != nil {
				return LogRecord{}, wrap("read", r.logID, r.pos, err)
			}
		}
		e, err := r.stream.Next(ctx)
		switch {
		case err == nil:
			if e.LSN >= r.seg.UntilLSN {
				r.closeStream()
				continue
			}
			env, err := r.b.opts.codec.Decode(e.Payload)
			if err != nil {
				return LogRecord{}, wrap("read", r.logID, e.LSN, err)
			}
			r.pos = e.LSN + 1
			r.b.opts.metrics.RecordsRead(r.logID, 1)
			return LogRecord{LogID: r.logID, LSN: e.LSN, Envelope: env}, nil
		case errors.Is(err, ErrSealed):
			r.closeStream()
			if err := r.advance(ctx); err != nil {
				return LogRecord{}, wrap("read", r.logID, r.pos, err)
			}
		default:
			return LogRecord{}, wrap("read", r.logID, r.pos, err)
		}
	}
}

func (r *Reader) start(ctx context.Context) error {
	c, _, err := r.b.provider.Chain(ctx, r.logID)
	if err != nil {
		return err
	}
	if r.pos == logs.LSNInvalid {
		r.pos = c.TrimPoint
	}
	if r.pos < c.TrimPoint {
		return &TrimmedError{LSN: r.pos, TrimPoint: c.TrimPoint}
	}
	r.until = r.opts.Until
	if r.until == logs.LSNInvalid {
		r.until = logs.LSNMax
	}
	if !r.opts.Follow {
		tail, err := r.b.Tail(ctx, r.logID)
		if err != nil {
			return err
		}
		if tail < r.until {
			r.until = tail
		}
	}
	r.started = true
	return nil
}

// open positions a loglet stream at r.pos, refreshing the metadata once if
// no segment holds it yet.
func (r *Reader) open(ctx context.Context) error {
	target, err := r.b.provider.ReadTarget(ctx, r.logID, r.pos)
	if errors.Is(err, ErrReconfigured) {
		if _, err := r.b.waitForChange(ctx, r.b.store.Version()); err != nil {
			return err
		}
		target, err = r.b.provider.ReadTarget(ctx, r.logID, r.pos)
	}
	if err != nil {
		return err
	}
	stream, err := target.Loglet.ReadFrom(ctx, r.pos)
	if err != nil {
		return err
	}
	r.seg = target.Segment
	r.stream = stream
	return nil
}

// advance waits until the metadata shows the segment the reader finished as
// sealed, so the next open lands on its successor.
func (r *Reader) advance(ctx context.Context) error {
	for attempt := 0; attempt < 2; attempt++ {
		c, v, err := r.b.provider.Chain(ctx, r.logID)
		if err != nil {
			return err
		}
		if r.successorKnown(c) {
			return nil
		}
		if attempt > 0 {
			break
		}
		r.b.opts.logger.Debug("reader waiting for reconfiguration",
			log.Uint64("log_id", uint64(r.logID)), log.Str("segment", r.seg.String()), log.Uint64("version", uint64(v)))
		if _, err := r.b.waitForChange(ctx, v); err != nil {
			return err
		}
	}
	return ErrSealed
}

func (r *Reader) successorKnown(c logs.Chain) bool {
	for _, s := range c.Segments {
		if s.Index == r.seg.Index {
			return s.Sealed() && r.pos >= s.UntilLSN
		}
	}
	// the finished segment left the chain, so it was trimmed away
	return true
}

func (r *Reader) closeStream() {
	if r.stream != nil {
		_ = r.stream.Close()
		r.stream = nil
	}
}

// Close releases the reader. Further calls to Next fail.
func (r *Reader) Close() error {
	r.closeStream()
	r.closed = true
	return nil
}
