package logs

import (
	"errors"
	"testing"
)

func sealedChain() Chain {
	return Chain{
		TrimPoint: 1,
		Segments: []Segment{
			{Index: 0, BaseLSN: 1, UntilLSN: 10, Kind: ProviderMemory},
			{Index: 1, BaseLSN: 10, UntilLSN: 25, Kind: ProviderLocal},
			{Index: 2, BaseLSN: 25, UntilLSN: LSNMax, Kind: ProviderLocal},
		},
	}
}

func TestChainFind(t *testing.T) {
	c := sealedChain()
	tests := []struct {
		lsn   LSN
		index uint32
		ok    bool
	}{
		{0, 0, false},
		{1, 0, true},
		{9, 0, true},
		{10, 1, true},
		{24, 1, true},
		{25, 2, true},
		{1 << 40, 2, true},
	}
	for _, tt := range tests {
		s, ok := c.Find(tt.lsn)
		if ok != tt.ok {
			t.Fatalf("Find(%d) ok=%v want %v", tt.lsn, ok, tt.ok)
		}
		if ok && s.Index != tt.index {
			t.Fatalf("Find(%d)=%d want %d", tt.lsn, s.Index, tt.index)
		}
	}
	tail, _ := c.Tail()
	if tail.Sealed() || tail.Index != 2 {
		t.Fatalf("unexpected tail %s", tail)
	}
	next, ok := c.Next(0)
	if !ok || next.Index != 1 {
		t.Fatalf("Next(0)=%v,%v", next, ok)
	}
	if _, ok := c.Next(2); ok {
		t.Fatalf("Next of the open segment should not exist")
	}
}

func TestChainValidate(t *testing.T) {
	if err := sealedChain().Validate(); err != nil {
		t.Fatalf("valid chain rejected: %v", err)
	}
	if err := NewChain(ProviderMemory, "").Validate(); err != nil {
		t.Fatalf("new chain rejected: %v", err)
	}

	gap := sealedChain()
	gap.Segments[1].BaseLSN = 11
	openMiddle := sealedChain()
	openMiddle.Segments[0].UntilLSN = LSNMax
	badTrim := sealedChain()
	badTrim.Segments = badTrim.Segments[1:]
	reserved := NewChain(ProviderMemory, "")
	reserved.Segments[0].BaseLSN = LSNInvalid

	for name, c := range map[string]Chain{"gap": gap, "open-middle": openMiddle, "trim-before-first": badTrim, "reserved": reserved, "empty": {}} {
		if err := c.Validate(); !errors.Is(err, ErrInvalidChain) {
			t.Fatalf("%s: expected ErrInvalidChain, got %v", name, err)
		}
	}
}

func TestMetadataCloneIsDeep(t *testing.T) {
	m := NewMetadata()
	m.Chains[1] = NewChain(ProviderMemory, "a")
	c := m.Clone()
	ch := c.Chains[1]
	ch.Segments[0].Params = "b"
	c.Chains[1] = ch
	if m.Chains[1].Segments[0].Params != "a" {
		t.Fatalf("clone shares segment storage")
	}
	if ids := c.LogIDs(); len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("LogIDs=%v", ids)
	}
}

func TestLSNSaturation(t *testing.T) {
	if LSNMax.Next() != LSNMax {
		t.Fatalf("Next should saturate")
	}
	if LSNInvalid.Prev() != LSNInvalid {
		t.Fatalf("Prev should saturate")
	}
	if LSN(5).Next() != 6 || LSN(5).Prev() != 4 {
		t.Fatalf("Next/Prev arithmetic")
	}
}

func TestParseProviderKind(t *testing.T) {
	if k, err := ParseProviderKind("local"); err != nil || k != ProviderLocal {
		t.Fatalf("local: %v %v", k, err)
	}
	if _, err := ParseProviderKind("replicated"); err == nil {
		t.Fatalf("expected error")
	}
}
