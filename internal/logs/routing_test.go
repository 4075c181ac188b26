package logs

import (
	"math"
	"testing"
)

func TestLogIDForCoversRange(t *testing.T) {
	tests := []struct {
		pk   PartitionKey
		n    int
		want LogID
	}{
		{0, 1, 0},
		{math.MaxUint64, 1, 0},
		{0, 4, 0},
		{math.MaxUint64, 4, 3},
		{PartitionKey(math.MaxUint64 / 2), 2, 1},
		{PartitionKey(math.MaxUint64/2 - 1), 2, 0},
		{12345, 0, 0},
	}
	for _, tt := range tests {
		if got := LogIDFor(tt.pk, tt.n); got != tt.want {
			t.Fatalf("LogIDFor(%d,%d)=%d want %d", tt.pk, tt.n, got, tt.want)
		}
	}
}

func TestPartitionKeyStable(t *testing.T) {
	a := PartitionKeyOf([]byte("counter/alice"))
	b := PartitionKeyOf([]byte("counter/alice"))
	if a != b {
		t.Fatalf("hash not deterministic")
	}
	if a == PartitionKeyOf([]byte("counter/bob")) {
		t.Fatalf("distinct keys collided")
	}
	for i := 0; i < 100; i++ {
		id := LogIDFor(PartitionKeyOf([]byte{byte(i)}), 8)
		if id >= 8 {
			t.Fatalf("log id out of range: %d", id)
		}
	}
}
