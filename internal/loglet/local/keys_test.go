package local

import (
	"bytes"
	"testing"

	"github.com/rzbill/bifrost/internal/logs"
)

func TestEntryKeysSortByLSN(t *testing.T) {
	a := KeyEntry(1, 0, 9)
	b := KeyEntry(1, 0, 10)
	c := KeyEntry(1, 0, 256)
	if !(bytes.Compare(a, b) < 0 && bytes.Compare(b, c) < 0) {
		t.Fatalf("entry keys out of order")
	}
	if lsnFromEntryKey(c) != 256 {
		t.Fatalf("lsn from key: %d", lsnFromEntryKey(c))
	}
}

func TestSegmentsDoNotInterleave(t *testing.T) {
	lastOfFirst := KeyEntry(1, 0, logs.LSNMax)
	metaOfNext := KeyMeta(1, 1)
	if bytes.Compare(lastOfFirst, metaOfNext) >= 0 {
		t.Fatalf("segment 0 keys sort after segment 1")
	}
	if !bytes.HasPrefix(KeyProducer(1, 0, [16]byte{1}), segmentPrefix(1, 0)) {
		t.Fatalf("producer key outside segment prefix")
	}
}

func TestSegmentStateRoundTrip(t *testing.T) {
	in := segmentState{tail: 42, trimPoint: 7, sealed: true}
	out, ok := decodeSegmentState(in.encode())
	if !ok || out != in {
		t.Fatalf("got %+v ok=%v", out, ok)
	}
	if _, ok := decodeSegmentState([]byte{1, 2}); ok {
		t.Fatalf("short state decoded")
	}
}
