package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/rzbill/bifrost/internal/loglet"
	"github.com/rzbill/bifrost/internal/logs"
)

// Factory hands out memory loglets, one per segment params.
type Factory struct {
	mu      sync.Mutex
	loglets map[string]*Loglet
	closed  bool
}

// NewFactory returns an empty factory.
func NewFactory() *Factory {
	return &Factory{loglets: map[string]*Loglet{}}
}

func (f *Factory) Kind() logs.ProviderKind { return logs.ProviderMemory }

func (f *Factory) Params(logID logs.LogID, segmentIndex uint32) string {
	return fmt.Sprintf("%d/%d", logID, segmentIndex)
}

// Get returns the loglet for segment, creating it at the segment's base.
func (f *Factory) Get(_ context.Context, _ logs.LogID, segment logs.Segment) (loglet.Loglet, error) {
	return f.Loglet(segment)
}

// Loglet is Get with the concrete type, for tests that inject faults.
func (f *Factory) Loglet(segment logs.Segment) (*Loglet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, loglet.ErrClosed
	}
	l, ok := f.loglets[segment.Params]
	if !ok {
		l = New(segment.BaseLSN)
		f.loglets[segment.Params] = l
	}
	return l, nil
}

func (f *Factory) Release(_ context.Context, _ logs.LogID, segment logs.Segment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.loglets, segment.Params)
	return nil
}

func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.loglets = map[string]*Loglet{}
	return nil
}
