package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rzbill/bifrost/internal/loglet"
	"github.com/rzbill/bifrost/internal/logs"
	"github.com/rzbill/bifrost/internal/metadata"
	"github.com/rzbill/bifrost/pkg/log"
)

var (
	// ErrReconfigured means the resolved chain no longer describes the log.
	// Refresh the metadata and retry once.
	ErrReconfigured = errors.New("provider: log reconfigured")
	// ErrUnknownKind reports a segment whose provider kind has no factory.
	ErrUnknownKind = errors.New("provider: unknown provider kind")
)

// Resolved is a segment together with its loglet, as seen at Version.
type Resolved struct {
	LogID   logs.LogID
	Segment logs.Segment
	Loglet  loglet.Loglet
	Version logs.Version
}

type cacheKey struct {
	logID  logs.LogID
	index  uint32
	kind   logs.ProviderKind
	params string
}

// Provider maps logs to loglets.
type Provider struct {
	store       *metadata.Store
	defaultKind logs.ProviderKind
	factories   map[logs.ProviderKind]loglet.Factory
	logger      log.Logger

	mu      sync.Mutex
	loglets map[cacheKey]loglet.Loglet
	opening sync.Mutex
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the provider logger.
func WithLogger(l log.Logger) Option {
	return func(p *Provider) { p.logger = l.WithComponent("provider") }
}

// New builds a provider. Logs opened implicitly use defaultKind, which must
// be among the factories.
func New(store *metadata.Store, defaultKind logs.ProviderKind, factories []loglet.Factory, opts ...Option) (*Provider, error) {
	p := &Provider{
		store:       store,
		defaultKind: defaultKind,
		factories:   make(map[logs.ProviderKind]loglet.Factory, len(factories)),
		logger:      log.NewNopLogger(),
		loglets:     map[cacheKey]loglet.Loglet{},
	}
	for _, o := range opts {
		o(p)
	}
	for _, f := range factories {
		if _, dup := p.factories[f.Kind()]; dup {
			return nil, fmt.Errorf("provider: factory %q registered twice", f.Kind())
		}
		p.factories[f.Kind()] = f
	}
	if _, ok := p.factories[defaultKind]; !ok {
		return nil, fmt.Errorf("%w: default %q", ErrUnknownKind, defaultKind)
	}
	return p, nil
}

// Store returns the metadata store the provider resolves against.
func (p *Provider) Store() *metadata.Store { return p.store }

// DefaultKind is the provider kind of implicitly opened logs.
func (p *Provider) DefaultKind() logs.ProviderKind { return p.defaultKind }

// Factory returns the factory registered for kind.
func (p *Provider) Factory(kind logs.ProviderKind) (loglet.Factory, error) {
	f, ok := p.factories[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return f, nil
}

// Chain returns the chain of logID, opening the log on first use.
func (p *Provider) Chain(ctx context.Context, logID logs.LogID) (logs.Chain, logs.Version, error) {
	md := p.store.Get()
	if c, ok := md.Chain(logID); ok {
		return c, md.Version, nil
	}
	return p.open(ctx, logID)
}

// open creates the chain of a new log with a single open segment. A racing
// metadata change gets one retry.
func (p *Provider) open(ctx context.Context, logID logs.LogID) (logs.Chain, logs.Version, error) {
	p.opening.Lock()
	defer p.opening.Unlock()

	f := p.factories[p.defaultKind]
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		md := p.store.Get()
		if c, ok := md.Chain(logID); ok {
			return c, md.Version, nil
		}
		var next *logs.Metadata
		next, err = p.store.Update(ctx, func(md *logs.Metadata) error {
			if _, ok := md.Chains[logID]; ok {
				return nil
			}
			md.Chains[logID] = logs.NewChain(p.defaultKind, f.Params(logID, 0))
			return nil
		})
		if err == nil {
			p.logger.Info("log opened", log.Uint64("log_id", uint64(logID)), log.Str("kind", string(p.defaultKind)), log.Uint64("version", uint64(next.Version)))
			c, _ := next.Chain(logID)
			return c, next.Version, nil
		}
		if !errors.Is(err, metadata.ErrStaleVersion) {
			return logs.Chain{}, logs.VersionInvalid, err
		}
	}
	return logs.Chain{}, logs.VersionInvalid, fmt.Errorf("%w: opening log %s: %v", ErrReconfigured, logID, err)
}

// Bootstrap opens logs 0..numLogs-1.
func (p *Provider) Bootstrap(ctx context.Context, numLogs uint64) error {
	for i := uint64(0); i < numLogs; i++ {
		if _, _, err := p.Chain(ctx, logs.LogID(i)); err != nil {
			return fmt.Errorf("bootstrap log %d: %w", i, err)
		}
	}
	return nil
}

// WriteTarget resolves the open segment of logID at the current version.
func (p *Provider) WriteTarget(ctx context.Context, logID logs.LogID) (Resolved, error) {
	c, v, err := p.Chain(ctx, logID)
	if err != nil {
		return Resolved{}, err
	}
	seg, ok := c.Tail()
	if !ok || seg.Sealed() {
		return Resolved{}, fmt.Errorf("%w: log %s has no open segment at %s", ErrReconfigured, logID, v)
	}
	ll, err := p.Loglet(ctx, logID, seg)
	if err != nil {
		return Resolved{}, err
	}
	return Resolved{LogID: logID, Segment: seg, Loglet: ll, Version: v}, nil
}

// ReadTarget resolves the segment containing lsn. Positions below the trim
// point fail with a *loglet.TrimmedError.
func (p *Provider) ReadTarget(ctx context.Context, logID logs.LogID, lsn logs.LSN) (Resolved, error) {
	c, v, err := p.Chain(ctx, logID)
	if err != nil {
		return Resolved{}, err
	}
	if lsn < c.TrimPoint {
		return Resolved{}, &loglet.TrimmedError{LSN: lsn, TrimPoint: c.TrimPoint}
	}
	seg, ok := c.Find(lsn)
	if !ok {
		return Resolved{}, fmt.Errorf("%w: no segment of log %s holds %s at %s", ErrReconfigured, logID, lsn, v)
	}
	ll, err := p.Loglet(ctx, logID, seg)
	if err != nil {
		return Resolved{}, err
	}
	return Resolved{LogID: logID, Segment: seg, Loglet: ll, Version: v}, nil
}

// Loglet returns the cached loglet of segment, creating it on first use.
func (p *Provider) Loglet(ctx context.Context, logID logs.LogID, seg logs.Segment) (loglet.Loglet, error) {
	key := cacheKey{logID: logID, index: seg.Index, kind: seg.Kind, params: seg.Params}
	p.mu.Lock()
	defer p.mu.Unlock()
	if ll, ok := p.loglets[key]; ok {
		return ll, nil
	}
	f, ok := p.factories[seg.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q in %s of log %s", ErrUnknownKind, seg.Kind, seg, logID)
	}
	ll, err := f.Get(ctx, logID, seg)
	if err != nil {
		return nil, err
	}
	p.loglets[key] = ll
	return ll, nil
}

// Forget drops the cached loglet of a segment that was removed from the
// chain and releases its storage.
func (p *Provider) Forget(ctx context.Context, logID logs.LogID, seg logs.Segment) error {
	p.mu.Lock()
	delete(p.loglets, cacheKey{logID: logID, index: seg.Index, kind: seg.Kind, params: seg.Params})
	p.mu.Unlock()
	f, err := p.Factory(seg.Kind)
	if err != nil {
		return err
	}
	if err := f.Release(ctx, logID, seg); err != nil {
		return err
	}
	p.logger.Debug("segment released", log.Uint64("log_id", uint64(logID)), log.Str("segment", seg.String()))
	return nil
}

// Close closes every factory.
func (p *Provider) Close() error {
	p.mu.Lock()
	p.loglets = map[cacheKey]loglet.Loglet{}
	p.mu.Unlock()
	var errs []error
	for _, f := range p.factories {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
