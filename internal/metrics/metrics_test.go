package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/rzbill/bifrost/internal/logs"
)

func TestCountersAccumulate(t *testing.T) {
	m := New()
	m.ObserveAppend(1, 3, time.Millisecond)
	m.ObserveAppend(1, 2, time.Millisecond)
	m.AppendFailed("unavailable")
	m.RecordsRead(1, 4)
	m.Trimmed(1)
	m.Reconfigured(2)
	m.ObserveBatchCommit(time.Millisecond, 3, 120)

	if got := testutil.ToFloat64(m.appends.WithLabelValues("1")); got != 5 {
		t.Fatalf("appends: %v", got)
	}
	if got := testutil.ToFloat64(m.appendErrors.WithLabelValues("unavailable")); got != 1 {
		t.Fatalf("append errors: %v", got)
	}
	if got := testutil.ToFloat64(m.recordsRead.WithLabelValues("1")); got != 4 {
		t.Fatalf("records read: %v", got)
	}
	if got := testutil.ToFloat64(m.reconfigs.WithLabelValues("2")); got != 1 {
		t.Fatalf("reconfigurations: %v", got)
	}
	if got := testutil.ToFloat64(m.storeCommitOps); got != 3 {
		t.Fatalf("commit ops: %v", got)
	}
}

func TestHandlerExposesGauges(t *testing.T) {
	m := New()
	v := logs.Version(7)
	if err := m.TrackMetadataVersion(func() logs.Version { return v }); err != nil {
		t.Fatalf("track version: %v", err)
	}
	if err := m.TrackDiskUsage(func() uint64 { return 4096 }); err != nil {
		t.Fatalf("track disk: %v", err)
	}
	if err := m.TrackMetadataVersion(func() logs.Version { return v }); err == nil {
		t.Fatalf("duplicate registration accepted")
	}

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{"bifrost_metadata_version 7", "bifrost_store_disk_usage_bytes 4096"} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("missing %q in exposition", want)
		}
	}
}
