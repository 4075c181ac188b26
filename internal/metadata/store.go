package metadata

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rzbill/bifrost/internal/logs"
	"github.com/rzbill/bifrost/pkg/log"
)

var (
	// ErrStaleVersion means the caller's expected version is not current.
	// Refresh with Get and retry.
	ErrStaleVersion = errors.New("metadata: stale version")
	// ErrClosed is returned once Close has been called.
	ErrClosed = errors.New("metadata: store closed")
)

// Backend persists published metadata.
type Backend interface {
	// Load returns the last saved metadata, or nil when nothing was saved.
	Load(ctx context.Context) (*logs.Metadata, error)
	Save(ctx context.Context, md *logs.Metadata) error
}

// Options configures a Store.
type Options struct {
	// Backend is optional; without it the store lives in memory only.
	Backend Backend
	Logger  log.Logger
}

// snapshot pairs a published metadata value with the channel closed when
// it is superseded.
type snapshot struct {
	md         *logs.Metadata
	superseded chan struct{}
}

// Store is the log metadata store.
type Store struct {
	cur     atomic.Pointer[snapshot]
	mu      sync.Mutex
	backend Backend
	logger  log.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// NewStore loads the persisted metadata, if any, and returns a ready store.
func NewStore(ctx context.Context, opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	s := &Store{backend: opts.Backend, logger: logger.WithComponent("metadata"), done: make(chan struct{})}

	md := logs.NewMetadata()
	if s.backend != nil {
		loaded, err := s.backend.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("metadata: load: %w", err)
		}
		if loaded != nil {
			if err := validate(loaded); err != nil {
				return nil, fmt.Errorf("metadata: load: %w", err)
			}
			md = loaded
		}
	}
	s.cur.Store(&snapshot{md: md, superseded: make(chan struct{})})
	s.logger.Info("metadata store ready", log.Uint64("version", uint64(md.Version)), log.Int("logs", len(md.Chains)))
	return s, nil
}

func validate(md *logs.Metadata) error {
	if md.Version == logs.VersionInvalid {
		return fmt.Errorf("invalid version %s", md.Version)
	}
	for _, id := range md.LogIDs() {
		if err := md.Chains[id].Validate(); err != nil {
			return fmt.Errorf("log %s: %w", id, err)
		}
	}
	return nil
}

// Get returns the current snapshot. Callers must not modify it.
func (s *Store) Get() *logs.Metadata { return s.cur.Load().md }

// Version returns the current version.
func (s *Store) Version() logs.Version { return s.cur.Load().md.Version }

// CompareAndSwap publishes next as version expected+1 if expected is still
// current. next is copied; the caller keeps ownership of its value.
func (s *Store) CompareAndSwap(ctx context.Context, expected logs.Version, next *logs.Metadata) error {
	_, err := s.compareAndSwap(ctx, expected, next)
	return err
}

func (s *Store) compareAndSwap(ctx context.Context, expected logs.Version, next *logs.Metadata) (*logs.Metadata, error) {
	if next == nil {
		return nil, errors.New("metadata: nil metadata")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.done:
		return nil, ErrClosed
	default:
	}
	cur := s.cur.Load()
	if cur.md.Version != expected {
		return nil, fmt.Errorf("%w: expected %s, current %s", ErrStaleVersion, expected, cur.md.Version)
	}

	published := next.Clone()
	published.Version = expected.Next()
	if err := validate(published); err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}
	if s.backend != nil {
		if err := s.backend.Save(ctx, published); err != nil {
			return nil, fmt.Errorf("metadata: save %s: %w", published.Version, err)
		}
	}

	s.cur.Store(&snapshot{md: published, superseded: make(chan struct{})})
	close(cur.superseded)
	s.logger.Debug("metadata published", log.Uint64("version", uint64(published.Version)))
	return published, nil
}

// Update applies fn to a copy of the current metadata and publishes it with
// a single compare-and-swap. It does not retry on ErrStaleVersion.
func (s *Store) Update(ctx context.Context, fn func(md *logs.Metadata) error) (*logs.Metadata, error) {
	cur := s.Get()
	next := cur.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	return s.compareAndSwap(ctx, cur.Version, next)
}

// WaitForVersion blocks until the store reaches at least min.
func (s *Store) WaitForVersion(ctx context.Context, min logs.Version) (logs.Version, error) {
	for {
		snap := s.cur.Load()
		if snap.md.Version >= min {
			return snap.md.Version, nil
		}
		select {
		case <-snap.superseded:
		case <-s.done:
			return snap.md.Version, ErrClosed
		case <-ctx.Done():
			return snap.md.Version, ctx.Err()
		}
	}
}

// Watch emits the current version and then every newer one. Versions
// published faster than the receiver drains are coalesced into the latest.
// The channel closes when ctx ends or the store closes.
func (s *Store) Watch(ctx context.Context) <-chan logs.Version {
	ch := make(chan logs.Version, 1)
	go func() {
		defer close(ch)
		var last logs.Version
		for {
			snap := s.cur.Load()
			if v := snap.md.Version; v > last {
				select {
				case ch <- v:
					last = v
				case <-ctx.Done():
					return
				case <-s.done:
					return
				}
				continue
			}
			select {
			case <-snap.superseded:
			case <-ctx.Done():
				return
			case <-s.done:
				return
			}
		}
	}()
	return ch
}

// Close stops watchers and rejects further mutations.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		close(s.done)
		s.mu.Unlock()
		s.logger.Info("metadata store closed", log.Uint64("version", uint64(s.Version())))
	})
	return nil
}
