package local

import (
	"context"
	"fmt"
	"sync"

	"github.com/rzbill/bifrost/internal/loglet"
	"github.com/rzbill/bifrost/internal/logs"
	pebblestore "github.com/rzbill/bifrost/internal/storage/pebble"
	"github.com/rzbill/bifrost/pkg/log"
)

// Factory opens local loglets on a shared Pebble database. The database is
// owned by the caller and outlives the factory.
type Factory struct {
	db     *pebblestore.DB
	logger log.Logger

	mu      sync.Mutex
	loglets map[string]*Loglet
	closed  bool
}

// NewFactory returns a factory storing segments in db.
func NewFactory(db *pebblestore.DB, logger log.Logger) *Factory {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Factory{db: db, logger: logger.WithComponent("loglet.local"), loglets: map[string]*Loglet{}}
}

func (f *Factory) Kind() logs.ProviderKind { return logs.ProviderLocal }

// Params names the segment's key prefix as "{log}/{segment}".
func (f *Factory) Params(logID logs.LogID, segmentIndex uint32) string {
	return fmt.Sprintf("%d/%d", logID, segmentIndex)
}

func parseParams(params string) (logs.LogID, uint32, error) {
	var logID uint64
	var seg uint32
	if _, err := fmt.Sscanf(params, "%d/%d", &logID, &seg); err != nil {
		return 0, 0, fmt.Errorf("local loglet: bad params %q: %w", params, err)
	}
	return logs.LogID(logID), seg, nil
}

// Get opens, or returns the cached, loglet for segment.
func (f *Factory) Get(_ context.Context, _ logs.LogID, segment logs.Segment) (loglet.Loglet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, loglet.ErrClosed
	}
	if l, ok := f.loglets[segment.Params]; ok {
		return l, nil
	}
	logID, seg, err := parseParams(segment.Params)
	if err != nil {
		return nil, err
	}
	l, err := Open(f.db, logID, seg, segment.BaseLSN, f.logger)
	if err != nil {
		return nil, err
	}
	f.loglets[segment.Params] = l
	return l, nil
}

// Release deletes the records and state of segment.
func (f *Factory) Release(ctx context.Context, _ logs.LogID, segment logs.Segment) error {
	logID, seg, err := parseParams(segment.Params)
	if err != nil {
		return err
	}
	f.mu.Lock()
	l, ok := f.loglets[segment.Params]
	delete(f.loglets, segment.Params)
	f.mu.Unlock()
	if !ok {
		if l, err = Open(f.db, logID, seg, segment.BaseLSN, f.logger); err != nil {
			return err
		}
	}
	return l.Destroy(ctx)
}

func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.loglets = map[string]*Loglet{}
	return nil
}
