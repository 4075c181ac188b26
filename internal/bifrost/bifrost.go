package bifrost

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rzbill/bifrost/internal/envelope"
	"github.com/rzbill/bifrost/internal/loglet"
	"github.com/rzbill/bifrost/internal/logs"
	"github.com/rzbill/bifrost/internal/metadata"
	"github.com/rzbill/bifrost/internal/provider"
	"github.com/rzbill/bifrost/pkg/id"
	"github.com/rzbill/bifrost/pkg/log"
)

// DefaultReconfigureTimeout bounds the wait for a metadata change after a
// seal was observed.
const DefaultReconfigureTimeout = 5 * time.Second

type options struct {
	codec              *envelope.Codec
	retry              RetryPolicy
	reconfigureTimeout time.Duration
	logger             log.Logger
	metrics            Metrics
}

// Option configures a Bifrost handle.
type Option func(*options)

// WithCodec sets the envelope codec. The handle does not close it.
func WithCodec(c *envelope.Codec) Option { return func(o *options) { o.codec = c } }

// WithRetryPolicy sets the policy for ErrUnavailable.
func WithRetryPolicy(p RetryPolicy) Option { return func(o *options) { o.retry = p } }

// WithReconfigureTimeout bounds waits for metadata after a seal.
func WithReconfigureTimeout(d time.Duration) Option {
	return func(o *options) { o.reconfigureTimeout = d }
}

func WithLogger(l log.Logger) Option { return func(o *options) { o.logger = l } }

func WithMetrics(m Metrics) Option { return func(o *options) { o.metrics = m } }

// LogRecord is one decoded record.
type LogRecord struct {
	LogID    logs.LogID
	LSN      logs.LSN
	Envelope envelope.Envelope
}

// Bifrost is the handle to every log of the node.
type Bifrost struct {
	store    *metadata.Store
	provider *provider.Provider
	opts     options
	ids      *id.Generator
	ownCodec bool

	mu        sync.Mutex
	appenders map[logs.LogID]*Appender
	closed    atomic.Bool
}

// New builds a handle over store and prov. Both must outlive it.
func New(store *metadata.Store, prov *provider.Provider, opts ...Option) (*Bifrost, error) {
	o := options{
		retry:              DefaultRetryPolicy(),
		reconfigureTimeout: DefaultReconfigureTimeout,
		metrics:            noopMetrics{},
	}
	for _, fn := range opts {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = log.NewNopLogger()
	}
	o.logger = o.logger.WithComponent("bifrost")
	b := &Bifrost{store: store, provider: prov, ids: id.NewGenerator(), appenders: map[logs.LogID]*Appender{}}
	if o.codec == nil {
		c, err := envelope.NewCodec(envelope.Options{})
		if err != nil {
			return nil, err
		}
		o.codec = c
		b.ownCodec = true
	}
	b.opts = o
	return b, nil
}

func (b *Bifrost) checkOpen() error {
	if b.closed.Load() {
		return ErrClosed
	}
	return nil
}

// Appender returns the shared appender of logID.
func (b *Bifrost) Appender(logID logs.LogID) (*Appender, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.appenders[logID]
	if !ok {
		a = newAppender(b, logID, b.ids.Next())
		b.appenders[logID] = a
	}
	return a, nil
}

// NewAppender returns a private appender with its own producer identity.
func (b *Bifrost) NewAppender(logID logs.LogID) (*Appender, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}
	return newAppender(b, logID, b.ids.Next()), nil
}

// Append appends one record and returns its LSN.
func (b *Bifrost) Append(ctx context.Context, logID logs.LogID, env envelope.Envelope) (logs.LSN, error) {
	return b.AppendBatch(ctx, logID, []envelope.Envelope{env})
}

// AppendBatch appends envs atomically and returns the LSN of the first.
func (b *Bifrost) AppendBatch(ctx context.Context, logID logs.LogID, envs []envelope.Envelope) (logs.LSN, error) {
	a, err := b.Appender(logID)
	if err != nil {
		return logs.LSNInvalid, wrap("append", logID, logs.LSNInvalid, err)
	}
	return a.AppendBatch(ctx, envs)
}

// AppendWithToken appends under a caller-owned token. Repeating a call with
// the same token after an unknown outcome (a cancelled append, say) returns
// the LSN of the first successful attempt instead of appending twice.
func (b *Bifrost) AppendWithToken(ctx context.Context, logID logs.LogID, token loglet.Token, envs ...envelope.Envelope) (logs.LSN, error) {
	if err := b.checkOpen(); err != nil {
		return logs.LSNInvalid, wrap("append", logID, logs.LSNInvalid, err)
	}
	if token.IsZero() {
		return logs.LSNInvalid, wrap("append", logID, logs.LSNInvalid, errors.New("zero token"))
	}
	a := newAppender(b, logID, token.Producer)
	return a.appendWithToken(ctx, token, envs)
}

// NewProducer returns a fresh producer identity for AppendWithToken.
func (b *Bifrost) NewProducer() id.ID { return b.ids.Next() }

// Tail returns the next LSN logID would assign.
func (b *Bifrost) Tail(ctx context.Context, logID logs.LogID) (logs.LSN, error) {
	if err := b.checkOpen(); err != nil {
		return logs.LSNInvalid, wrap("tail", logID, logs.LSNInvalid, err)
	}
	r, err := b.provider.WriteTarget(ctx, logID)
	if err != nil {
		return logs.LSNInvalid, wrap("tail", logID, logs.LSNInvalid, err)
	}
	ts, err := r.Loglet.Tail(ctx)
	if err != nil {
		return logs.LSNInvalid, wrap("tail", logID, logs.LSNInvalid, err)
	}
	return ts.Offset, nil
}

// TrimPoint returns the lowest retrievable LSN of logID.
func (b *Bifrost) TrimPoint(ctx context.Context, logID logs.LogID) (logs.LSN, error) {
	if err := b.checkOpen(); err != nil {
		return logs.LSNInvalid, wrap("trim_point", logID, logs.LSNInvalid, err)
	}
	c, _, err := b.provider.Chain(ctx, logID)
	if err != nil {
		return logs.LSNInvalid, wrap("trim_point", logID, logs.LSNInvalid, err)
	}
	return c.TrimPoint, nil
}

var errNoChange = errors.New("no change")

// Trim drops every record below lsn. lsn is capped at the tail; trims at or
// below the current trim point are no-ops. Sealed segments that end at or
// before the new trim point leave the chain and their storage is released.
func (b *Bifrost) Trim(ctx context.Context, logID logs.LogID, lsn logs.LSN) error {
	if err := b.checkOpen(); err != nil {
		return wrap("trim", logID, lsn, err)
	}
	c, _, err := b.provider.Chain(ctx, logID)
	if err != nil {
		return wrap("trim", logID, lsn, err)
	}
	tail, err := b.Tail(ctx, logID)
	if err != nil {
		return err
	}
	if lsn > tail {
		lsn = tail
	}
	if lsn <= c.TrimPoint {
		return nil
	}

	for _, seg := range c.Segments {
		if seg.BaseLSN >= lsn {
			break
		}
		to := lsn
		if seg.UntilLSN < to {
			to = seg.UntilLSN
		}
		ll, err := b.provider.Loglet(ctx, logID, seg)
		if err != nil {
			return wrap("trim", logID, lsn, err)
		}
		if err := ll.Trim(ctx, to); err != nil {
			return wrap("trim", logID, lsn, err)
		}
	}

	var removed []logs.Segment
	for attempt := 0; attempt < 2; attempt++ {
		removed = removed[:0]
		_, err = b.store.Update(ctx, func(md *logs.Metadata) error {
			chain, ok := md.Chains[logID]
			if !ok || chain.TrimPoint >= lsn {
				return errNoChange
			}
			chain.TrimPoint = lsn
			kept := chain.Segments[:0:0]
			for _, seg := range chain.Segments {
				if seg.Sealed() && seg.UntilLSN <= lsn {
					removed = append(removed, seg)
					continue
				}
				kept = append(kept, seg)
			}
			chain.Segments = kept
			md.Chains[logID] = chain
			return nil
		})
		if !errors.Is(err, ErrStaleVersion) {
			break
		}
	}
	if errors.Is(err, errNoChange) {
		return nil
	}
	if err != nil {
		return wrap("trim", logID, lsn, err)
	}

	for _, seg := range removed {
		if err := b.provider.Forget(ctx, logID, seg); err != nil {
			b.opts.logger.Warn("releasing trimmed segment failed", log.Uint64("log_id", uint64(logID)), log.Str("segment", seg.String()), log.Err(err))
		}
	}
	b.opts.metrics.Trimmed(logID)
	b.opts.logger.Info("log trimmed", log.Uint64("log_id", uint64(logID)), log.Uint64("trim_point", uint64(lsn)), log.Int("segments_removed", len(removed)))
	return nil
}

// Reconfigure seals the open segment of logID and continues the log on a new
// segment of kind, starting at the sealed tail.
func (b *Bifrost) Reconfigure(ctx context.Context, logID logs.LogID, kind logs.ProviderKind) (logs.Segment, error) {
	if err := b.checkOpen(); err != nil {
		return logs.Segment{}, wrap("reconfigure", logID, logs.LSNInvalid, err)
	}
	f, err := b.provider.Factory(kind)
	if err != nil {
		return logs.Segment{}, wrap("reconfigure", logID, logs.LSNInvalid, err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		var r provider.Resolved
		r, err = b.provider.WriteTarget(ctx, logID)
		if err != nil {
			return logs.Segment{}, wrap("reconfigure", logID, logs.LSNInvalid, err)
		}
		var next logs.Segment
		next, err = b.extend(ctx, logID, r, f)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, ErrStaleVersion) {
			break
		}
		b.opts.logger.Debug("reconfigure raced a metadata change", log.Uint64("log_id", uint64(logID)), log.Err(err))
	}
	return logs.Segment{}, wrap("reconfigure", logID, logs.LSNInvalid, err)
}

// extend seals the segment r resolved to and publishes a successor of f's
// kind at the sealed tail. Producer dedup state moves to the successor
// before it becomes visible, so a token retried after the switch is still
// recognised.
func (b *Bifrost) extend(ctx context.Context, logID logs.LogID, r provider.Resolved, f loglet.Factory) (logs.Segment, error) {
	tail, err := r.Loglet.Seal(ctx)
	if err != nil {
		return logs.Segment{}, err
	}
	next := logs.Segment{
		Index:    r.Segment.Index + 1,
		BaseLSN:  tail,
		UntilLSN: logs.LSNMax,
		Kind:     f.Kind(),
		Params:   f.Params(logID, r.Segment.Index+1),
	}
	producers, err := r.Loglet.Producers(ctx)
	if err != nil {
		return logs.Segment{}, err
	}
	successor, err := b.provider.Loglet(ctx, logID, next)
	if err != nil {
		return logs.Segment{}, err
	}
	if err := successor.AdoptProducers(ctx, producers); err != nil {
		return logs.Segment{}, err
	}
	md, err := b.store.Update(ctx, func(md *logs.Metadata) error {
		chain := md.Chains[logID]
		last, ok := chain.Tail()
		if !ok || last.Index != r.Segment.Index || last.Sealed() {
			return fmt.Errorf("%w: open segment moved", ErrStaleVersion)
		}
		chain.Segments[len(chain.Segments)-1].UntilLSN = tail
		chain.Segments = append(chain.Segments, next)
		md.Chains[logID] = chain
		return nil
	})
	if err != nil {
		return logs.Segment{}, err
	}
	b.opts.metrics.Reconfigured(logID)
	b.opts.logger.Info("log reconfigured",
		log.Uint64("log_id", uint64(logID)),
		log.Str("sealed", r.Segment.String()),
		log.Str("open", next.String()),
		log.Int("producers", len(producers)),
		log.Uint64("version", uint64(md.Version)))
	return next, nil
}

// CreateReader returns a reader of logID. It does no I/O until Next.
func (b *Bifrost) CreateReader(logID logs.LogID, opts ReadOptions) *Reader {
	return newReader(b, logID, opts)
}

// ReadAll reads logID from from up to the tail observed at the call.
func (b *Bifrost) ReadAll(ctx context.Context, logID logs.LogID, from logs.LSN) ([]LogRecord, error) {
	r := b.CreateReader(logID, ReadOptions{From: from})
	defer r.Close()
	var out []LogRecord
	for {
		rec, err := r.Next(ctx)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}

// Version returns the current metadata version.
func (b *Bifrost) Version() logs.Version { return b.store.Version() }

// WatchVersion streams metadata versions, starting with the current one.
func (b *Bifrost) WatchVersion(ctx context.Context) <-chan logs.Version {
	return b.store.Watch(ctx)
}

// waitForChange waits, at most the reconfigure timeout, for a version newer
// than seen. It reports whether one arrived.
func (b *Bifrost) waitForChange(ctx context.Context, seen logs.Version) (bool, error) {
	wctx, cancel := context.WithTimeout(ctx, b.opts.reconfigureTimeout)
	defer cancel()
	_, err := b.store.WaitForVersion(wctx, seen.Next())
	if err == nil {
		return true, nil
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if errors.Is(err, metadata.ErrClosed) {
		return false, ErrClosed
	}
	return false, nil
}

// Close rejects further operations. The store and provider stay open.
func (b *Bifrost) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	b.mu.Lock()
	b.appenders = map[logs.LogID]*Appender{}
	b.mu.Unlock()
	if b.ownCodec {
		b.opts.codec.Close()
	}
	b.opts.logger.Info("bifrost closed")
	return nil
}
