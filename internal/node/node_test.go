package node

import (
	"context"
	"errors"
	"testing"

	cfgpkg "github.com/rzbill/bifrost/internal/config"
	"github.com/rzbill/bifrost/internal/envelope"
	"github.com/rzbill/bifrost/internal/logs"
	"github.com/rzbill/bifrost/internal/provider"
)

func testConfig() cfgpkg.Config {
	cfg := cfgpkg.Default()
	cfg.NodeName = "test-node"
	cfg.Bifrost.NumLogs = 2
	return cfg
}

func TestLifecycleAndHealth(t *testing.T) {
	ctx := context.Background()
	n, err := Open(ctx, Options{Config: testConfig(), DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if n.Status() != StatusStartingUp {
		t.Fatalf("status after open: %s", n.Status())
	}
	if err := n.CheckHealth(ctx); !errors.Is(err, ErrNotAlive) {
		t.Fatalf("health before start: %v", err)
	}
	n.Start()
	if n.Status() != StatusAlive {
		t.Fatalf("status after start: %s", n.Status())
	}
	if err := n.CheckHealth(ctx); err != nil {
		t.Fatalf("health: %v", err)
	}
	if err := n.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if n.Status() != StatusShuttingDown {
		t.Fatalf("status after close: %s", n.Status())
	}
	if err := n.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestBootstrapAndPersistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	n, err := Open(ctx, Options{Config: testConfig(), DataDir: dir})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	md := n.Metadata().Get()
	if len(md.Chains) != 2 {
		t.Fatalf("expected 2 bootstrapped logs, got %d", len(md.Chains))
	}
	for _, id := range md.LogIDs() {
		c, _ := md.Chain(id)
		seg, _ := c.Tail()
		if seg.Kind != logs.ProviderLocal {
			t.Fatalf("log %s uses %s", id, seg.Kind)
		}
	}
	n.Start()
	lsn, err := n.Bifrost().Append(ctx, 1, envelope.Envelope{Payload: []byte("kept")})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	version := n.MetadataVersion()
	if err := n.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	n, err = Open(ctx, Options{Config: testConfig(), DataDir: dir})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer n.Close()
	if got := n.MetadataVersion(); got != version {
		t.Fatalf("metadata version after reopen: %s, want %s", got, version)
	}
	recs, err := n.Bifrost().ReadAll(ctx, 1, lsn)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(recs) != 1 || string(recs[0].Envelope.Payload) != "kept" {
		t.Fatalf("unexpected records after reopen: %+v", recs)
	}
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Bifrost.DefaultProvider = "replicated"
	if _, err := Open(context.Background(), Options{Config: cfg, DataDir: t.TempDir()}); err == nil {
		t.Fatalf("expected config error")
	}
}

func TestOpenRejectsMemoryProvider(t *testing.T) {
	cfg := testConfig()
	cfg.Bifrost.DefaultProvider = string(logs.ProviderMemory)
	if _, err := Open(context.Background(), Options{Config: cfg, DataDir: t.TempDir()}); err == nil {
		t.Fatalf("memory provider accepted on a persisted node")
	}
}

func TestLSNsNotReusedAcrossRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	n, err := Open(ctx, Options{Config: testConfig(), DataDir: dir})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	n.Start()
	for i, s := range []string{"A", "B", "C"} {
		lsn, err := n.Bifrost().Append(ctx, 0, envelope.Envelope{Payload: []byte(s)})
		if err != nil || lsn != logs.LSN(i+1) {
			t.Fatalf("append %s: %d %v", s, lsn, err)
		}
	}
	if _, err := n.Bifrost().Reconfigure(ctx, 0, logs.ProviderMemory); !errors.Is(err, provider.ErrUnknownKind) {
		t.Fatalf("reconfigure to memory: %v", err)
	}
	if err := n.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	n, err = Open(ctx, Options{Config: testConfig(), DataDir: dir})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer n.Close()
	n.Start()
	lsn, err := n.Bifrost().Append(ctx, 0, envelope.Envelope{Payload: []byte("D")})
	if err != nil || lsn != 4 {
		t.Fatalf("append after restart: %d %v", lsn, err)
	}
}

func TestStatusString(t *testing.T) {
	tests := map[Status]string{
		StatusUnknown:      "unknown",
		StatusAlive:        "alive",
		StatusStartingUp:   "starting_up",
		StatusShuttingDown: "shutting_down",
		Status(42):         "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("Status(%d) = %q, want %q", int32(s), got, want)
		}
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range []Status{StatusUnknown, StatusAlive, StatusStartingUp, StatusShuttingDown} {
		if got := ParseStatus(s.String()); got != s {
			t.Errorf("ParseStatus(%q) = %s", s.String(), got)
		}
	}
	if got := ParseStatus("zombie"); got != StatusUnknown {
		t.Errorf("unknown name parsed as %s", got)
	}
}
