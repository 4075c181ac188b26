package bifrost

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rzbill/bifrost/internal/envelope"
	"github.com/rzbill/bifrost/internal/loglet"
	"github.com/rzbill/bifrost/internal/logs"
	"github.com/rzbill/bifrost/internal/provider"
	"github.com/rzbill/bifrost/pkg/id"
	"github.com/rzbill/bifrost/pkg/log"
)

// Appender writes to one log. It caches the open segment and the last
// assigned LSN, and serializes its own appends so they land in call order.
type Appender struct {
	b        *Bifrost
	logID    logs.LogID
	producer id.ID

	mu      sync.Mutex
	seq     uint64
	target  *provider.Resolved
	lastLSN logs.LSN
}

func newAppender(b *Bifrost, logID logs.LogID, producer id.ID) *Appender {
	return &Appender{b: b, logID: logID, producer: producer}
}

// LogID returns the log this appender writes to.
func (a *Appender) LogID() logs.LogID { return a.logID }

// LastLSN is the LSN of the last record this appender wrote, or
// LSNInvalid before the first append.
func (a *Appender) LastLSN() logs.LSN {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastLSN
}

// Append appends one record.
func (a *Appender) Append(ctx context.Context, env envelope.Envelope) (logs.LSN, error) {
	return a.AppendBatch(ctx, []envelope.Envelope{env})
}

// AppendBatch appends envs atomically and returns the LSN of the first.
func (a *Appender) AppendBatch(ctx context.Context, envs []envelope.Envelope) (logs.LSN, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	return a.appendLocked(ctx, loglet.Token{Producer: a.producer, Seq: a.seq}, envs)
}

func (a *Appender) appendWithToken(ctx context.Context, token loglet.Token, envs []envelope.Envelope) (logs.LSN, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.appendLocked(ctx, token, envs)
}

// resolveLocked returns the cached write target while the metadata version
// it was resolved at is still current.
func (a *Appender) resolveLocked(ctx context.Context) (provider.Resolved, error) {
	if a.target != nil && a.target.Version == a.b.store.Version() {
		return *a.target, nil
	}
	r, err := a.b.provider.WriteTarget(ctx, a.logID)
	if err != nil {
		return provider.Resolved{}, err
	}
	a.target = &r
	return r, nil
}

func (a *Appender) invalidateLocked() { a.target = nil }

func (a *Appender) appendLocked(ctx context.Context, token loglet.Token, envs []envelope.Envelope) (logs.LSN, error) {
	if err := a.b.checkOpen(); err != nil {
		return logs.LSNInvalid, wrap("append", a.logID, logs.LSNInvalid, err)
	}
	if len(envs) == 0 {
		return logs.LSNInvalid, wrap("append", a.logID, logs.LSNInvalid, errors.New("empty batch"))
	}
	payloads := make([][]byte, len(envs))
	for i, env := range envs {
		p, err := a.b.opts.codec.Encode(env)
		if err != nil {
			return logs.LSNInvalid, wrap("append", a.logID, logs.LSNInvalid, err)
		}
		payloads[i] = p
	}

	start := time.Now()
	lsn, err := a.appendResolved(ctx, token, payloads)
	if err != nil {
		a.b.opts.metrics.AppendFailed(errorKind(err))
		return logs.LSNInvalid, wrap("append", a.logID, logs.LSNInvalid, err)
	}
	a.b.opts.metrics.ObserveAppend(a.logID, len(payloads), time.Since(start))
	a.lastLSN = lsn + logs.LSN(len(payloads)) - 1
	return lsn, nil
}

// appendResolved writes to the open segment. A seal or metadata race
// invalidates the cached target and is retried exactly once against the
// refreshed chain, under the same token. A seal that sees no metadata change
// within the reconfigure timeout is repaired before the retry.
func (a *Appender) appendResolved(ctx context.Context, token loglet.Token, payloads [][]byte) (logs.LSN, error) {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		var r provider.Resolved
		r, err = a.resolveLocked(ctx)
		if err == nil {
			var lsn logs.LSN
			lsn, err = a.appendToLoglet(ctx, r, token, payloads)
			if err == nil {
				return lsn, nil
			}
		}
		if !errors.Is(err, ErrSealed) && !errors.Is(err, ErrReconfigured) && !errors.Is(err, ErrStaleVersion) {
			return logs.LSNInvalid, err
		}
		a.invalidateLocked()
		if attempt > 0 {
			break
		}
		a.b.opts.logger.Debug("append hit a reconfiguration; refreshing",
			log.Uint64("log_id", uint64(a.logID)), log.Uint64("version", uint64(r.Version)), log.Err(err))
		seen := r.Version
		if seen == logs.VersionInvalid {
			seen = a.b.store.Version()
		}
		changed, werr := a.b.waitForChange(ctx, seen)
		if werr != nil {
			return logs.LSNInvalid, werr
		}
		if !changed && errors.Is(err, ErrSealed) && r.Loglet != nil {
			a.repairLocked(ctx, r)
		}
	}
	return logs.LSNInvalid, err
}

// repairLocked publishes a successor for a segment that was sealed by a
// reconfiguration that never committed its metadata. The successor keeps
// the segment's kind. Losing the race to a concurrent reconfiguration is
// fine: the retry resolves whichever successor won.
func (a *Appender) repairLocked(ctx context.Context, r provider.Resolved) {
	f, err := a.b.provider.Factory(r.Segment.Kind)
	if err == nil {
		_, err = a.b.extend(ctx, a.logID, r, f)
	}
	if err != nil {
		a.b.opts.logger.Warn("continuing a sealed segment failed",
			log.Uint64("log_id", uint64(a.logID)), log.Str("segment", r.Segment.String()), log.Err(err))
		return
	}
	a.b.opts.logger.Warn("sealed segment had no successor; continued it",
		log.Uint64("log_id", uint64(a.logID)), log.Str("segment", r.Segment.String()))
}

func (a *Appender) appendToLoglet(ctx context.Context, r provider.Resolved, token loglet.Token, payloads [][]byte) (logs.LSN, error) {
	var lsn logs.LSN
	err := a.b.opts.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		lsn, err = r.Loglet.Append(ctx, token, payloads)
		return err
	}, func(attempt int, wait time.Duration, err error) {
		a.b.opts.logger.Warn("append failed; retrying",
			log.Uint64("log_id", uint64(a.logID)),
			log.Str("segment", r.Segment.String()),
			log.Int("attempt", attempt),
			log.Duration("backoff", wait),
			log.Err(err))
	})
	return lsn, err
}
