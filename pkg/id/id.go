package id

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// ID is a 128-bit producer identifier: [8 bytes ms timestamp][4 bytes
// generator instance][4 bytes counter], big-endian.
type ID [16]byte

// Bytes returns a copy of the raw 16 bytes.
func (i ID) Bytes() []byte { b := make([]byte, 16); copy(b, i[:]); return b }

// String returns the hex form.
func (i ID) String() string { return hex.EncodeToString(i[:]) }

// Compare orders IDs byte-wise, which is also chronological per generator.
func (i ID) Compare(other ID) int { return bytes.Compare(i[:], other[:]) }

// TimeMs returns the embedded millisecond timestamp.
func (i ID) TimeMs() int64 { return int64(binary.BigEndian.Uint64(i[0:8])) }

// Parse reads the hex form produced by String.
func Parse(s string) (ID, error) {
	var out ID
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("id: %w", err)
	}
	if len(b) != len(out) {
		return out, fmt.Errorf("id: want %d bytes, got %d", len(out), len(b))
	}
	copy(out[:], b)
	return out, nil
}

// FromBytes copies a 16-byte slice into an ID.
func FromBytes(b []byte) (ID, bool) {
	var out ID
	if len(b) != len(out) {
		return out, false
	}
	copy(out[:], b)
	return out, true
}

// Generator produces strictly increasing IDs. The random instance word keeps
// IDs of different processes apart when their clocks agree.
type Generator struct {
	mu       sync.Mutex
	instance uint32
	lastMs   int64
	counter  uint32
}

// NewGenerator creates a Generator with a random instance word.
func NewGenerator() *Generator {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return &Generator{instance: binary.BigEndian.Uint32(b[:])}
}

// NowMs returns current time in milliseconds since Unix epoch.
var NowMs = func() int64 { return time.Now().UnixMilli() }

// Next returns a new ID. A regressing clock is pinned to the last seen
// millisecond; an exhausted counter waits for the next millisecond.
func (g *Generator) Next() ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := NowMs()
	if ms < g.lastMs {
		ms = g.lastMs
	}
	if ms == g.lastMs {
		if g.counter == ^uint32(0) {
			for ms <= g.lastMs {
				time.Sleep(time.Millisecond / 8)
				ms = NowMs()
			}
			g.counter = 0
		} else {
			g.counter++
		}
	} else {
		g.counter = 0
	}
	g.lastMs = ms

	var out ID
	binary.BigEndian.PutUint64(out[0:8], uint64(ms))
	binary.BigEndian.PutUint32(out[8:12], g.instance)
	binary.BigEndian.PutUint32(out[12:16], g.counter)
	return out
}
