package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/rzbill/bifrost/internal/loglet"
	"github.com/rzbill/bifrost/internal/loglet/memory"
	"github.com/rzbill/bifrost/internal/logs"
	"github.com/rzbill/bifrost/internal/metadata"
)

func newTestProvider(t *testing.T) (*Provider, *metadata.Store, *memory.Factory) {
	t.Helper()
	store, err := metadata.NewStore(context.Background(), metadata.Options{})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	f := memory.NewFactory()
	p, err := New(store, logs.ProviderMemory, []loglet.Factory{f})
	if err != nil {
		t.Fatalf("provider: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p, store, f
}

func TestNewRejectsUnknownDefault(t *testing.T) {
	store, _ := metadata.NewStore(context.Background(), metadata.Options{})
	defer store.Close()
	if _, err := New(store, logs.ProviderLocal, []loglet.Factory{memory.NewFactory()}); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("want unknown kind, got %v", err)
	}
	if _, err := New(store, logs.ProviderMemory, []loglet.Factory{memory.NewFactory(), memory.NewFactory()}); err == nil {
		t.Fatalf("expected duplicate factory error")
	}
}

func TestImplicitOpen(t *testing.T) {
	p, store, _ := newTestProvider(t)
	ctx := context.Background()
	c, v, err := p.Chain(ctx, 9)
	if err != nil {
		t.Fatalf("chain: %v", err)
	}
	if v != 2 || store.Version() != 2 {
		t.Fatalf("open did not publish a version: %s", v)
	}
	seg, _ := c.Tail()
	if seg.BaseLSN != logs.LSNOldest || seg.Sealed() || seg.Kind != logs.ProviderMemory {
		t.Fatalf("segment: %s", seg)
	}
	// second lookup is served from the snapshot
	if _, v2, _ := p.Chain(ctx, 9); v2 != v {
		t.Fatalf("reopened: %s", v2)
	}
}

func TestBootstrap(t *testing.T) {
	p, store, _ := newTestProvider(t)
	if err := p.Bootstrap(context.Background(), 4); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if ids := store.Get().LogIDs(); len(ids) != 4 || ids[3] != 3 {
		t.Fatalf("logs: %v", ids)
	}
}

func TestWriteTargetCachesLoglet(t *testing.T) {
	p, _, _ := newTestProvider(t)
	ctx := context.Background()
	a, err := p.WriteTarget(ctx, 1)
	if err != nil {
		t.Fatalf("write target: %v", err)
	}
	b, _ := p.WriteTarget(ctx, 1)
	if a.Loglet != b.Loglet {
		t.Fatalf("loglet not cached")
	}
	if a.Version != b.Version || a.Segment.Index != 0 {
		t.Fatalf("resolved: %+v", a)
	}
}

func sealAndExtend(t *testing.T, p *Provider, store *metadata.Store, logID logs.LogID, at logs.LSN) {
	t.Helper()
	_, err := store.Update(context.Background(), func(md *logs.Metadata) error {
		c := md.Chains[logID]
		last := &c.Segments[len(c.Segments)-1]
		last.UntilLSN = at
		idx := last.Index + 1
		c.Segments = append(c.Segments, logs.Segment{Index: idx, BaseLSN: at, UntilLSN: logs.LSNMax, Kind: logs.ProviderMemory, Params: "x"})
		md.Chains[logID] = c
		return nil
	})
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
}

func TestReadTarget(t *testing.T) {
	p, store, _ := newTestProvider(t)
	ctx := context.Background()
	if _, _, err := p.Chain(ctx, 1); err != nil {
		t.Fatalf("open: %v", err)
	}
	sealAndExtend(t, p, store, 1, 4)

	r, err := p.ReadTarget(ctx, 1, 3)
	if err != nil || r.Segment.Index != 0 {
		t.Fatalf("read target 3: %+v %v", r, err)
	}
	r, err = p.ReadTarget(ctx, 1, 4)
	if err != nil || r.Segment.Index != 1 {
		t.Fatalf("read target 4: %+v %v", r, err)
	}
	w, _ := p.WriteTarget(ctx, 1)
	if w.Segment.Index != 1 {
		t.Fatalf("write target after extend: %s", w.Segment)
	}

	_, _ = store.Update(ctx, func(md *logs.Metadata) error {
		c := md.Chains[1]
		c.TrimPoint = 2
		md.Chains[1] = c
		return nil
	})
	if _, err := p.ReadTarget(ctx, 1, 1); !errors.Is(err, loglet.ErrTrimmed) {
		t.Fatalf("want trimmed, got %v", err)
	}
}

func TestUnknownKindInChain(t *testing.T) {
	p, store, _ := newTestProvider(t)
	ctx := context.Background()
	_, _ = store.Update(ctx, func(md *logs.Metadata) error {
		md.Chains[5] = logs.NewChain(logs.ProviderLocal, "5/0")
		return nil
	})
	if _, err := p.WriteTarget(ctx, 5); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("want unknown kind, got %v", err)
	}
}

func TestForgetReleasesLoglet(t *testing.T) {
	p, _, f := newTestProvider(t)
	ctx := context.Background()
	w, _ := p.WriteTarget(ctx, 1)
	if _, err := w.Loglet.Append(ctx, loglet.Token{}, [][]byte{[]byte("a")}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := p.Forget(ctx, 1, w.Segment); err != nil {
		t.Fatalf("forget: %v", err)
	}
	fresh, _ := f.Loglet(w.Segment)
	if ts, _ := fresh.Tail(ctx); ts.Offset != logs.LSNOldest {
		t.Fatalf("released loglet kept its records: tail %d", ts.Offset)
	}
}
