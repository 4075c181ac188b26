package logs

import (
	"errors"
	"fmt"
)

// ErrInvalidChain is returned by Chain.Validate.
var ErrInvalidChain = errors.New("logs: invalid segment chain")

// Segment is a contiguous LSN range backed by exactly one loglet.
type Segment struct {
	Index    uint32       `msgpack:"index" json:"index"`
	BaseLSN  LSN          `msgpack:"base" json:"base_lsn"`
	UntilLSN LSN          `msgpack:"until" json:"until_lsn"`
	Kind     ProviderKind `msgpack:"kind" json:"kind"`
	// Params is opaque to everything but the loglet factory of Kind.
	Params string `msgpack:"params" json:"params"`
}

// Sealed reports whether the segment's upper bound has been fixed.
func (s Segment) Sealed() bool { return s.UntilLSN != LSNMax }

// Contains reports whether lsn falls in [BaseLSN, UntilLSN).
func (s Segment) Contains(lsn LSN) bool { return lsn >= s.BaseLSN && lsn < s.UntilLSN }

func (s Segment) String() string {
	return fmt.Sprintf("segment#%d[%s,%s)@%s", s.Index, s.BaseLSN, s.UntilLSN, s.Kind)
}

// Chain is the ordered list of segments of one log plus its trim point.
type Chain struct {
	TrimPoint LSN       `msgpack:"trim" json:"trim_point"`
	Segments  []Segment `msgpack:"segments" json:"segments"`
}

// NewChain returns a chain with a single open segment starting at LSNOldest.
func NewChain(kind ProviderKind, params string) Chain {
	return Chain{
		TrimPoint: LSNOldest,
		Segments: []Segment{{
			Index:    0,
			BaseLSN:  LSNOldest,
			UntilLSN: LSNMax,
			Kind:     kind,
			Params:   params,
		}},
	}
}

// Tail returns the last segment, which is the only one that may be open.
func (c Chain) Tail() (Segment, bool) {
	if len(c.Segments) == 0 {
		return Segment{}, false
	}
	return c.Segments[len(c.Segments)-1], true
}

// Find returns the segment containing lsn.
func (c Chain) Find(lsn LSN) (Segment, bool) {
	// chains are short; a linear scan from the tail is the common case
	for i := len(c.Segments) - 1; i >= 0; i-- {
		if c.Segments[i].Contains(lsn) {
			return c.Segments[i], true
		}
	}
	return Segment{}, false
}

// Next returns the segment following the one with the given index.
func (c Chain) Next(index uint32) (Segment, bool) {
	for i, s := range c.Segments {
		if s.Index == index && i+1 < len(c.Segments) {
			return c.Segments[i+1], true
		}
	}
	return Segment{}, false
}

// Validate checks ordering, contiguity and that only the last segment is open.
func (c Chain) Validate() error {
	if len(c.Segments) == 0 {
		return fmt.Errorf("%w: no segments", ErrInvalidChain)
	}
	for i, s := range c.Segments {
		if s.BaseLSN == LSNInvalid {
			return fmt.Errorf("%w: %s starts at the reserved lsn", ErrInvalidChain, s)
		}
		if s.UntilLSN < s.BaseLSN {
			return fmt.Errorf("%w: %s ends before it starts", ErrInvalidChain, s)
		}
		last := i == len(c.Segments)-1
		if !last {
			n := c.Segments[i+1]
			if !s.Sealed() {
				return fmt.Errorf("%w: %s is open but not last", ErrInvalidChain, s)
			}
			if n.BaseLSN != s.UntilLSN {
				return fmt.Errorf("%w: gap or overlap between %s and %s", ErrInvalidChain, s, n)
			}
			if n.Index <= s.Index {
				return fmt.Errorf("%w: segment indexes not increasing at %s", ErrInvalidChain, n)
			}
		}
	}
	if c.TrimPoint < c.Segments[0].BaseLSN {
		return fmt.Errorf("%w: trim point %s before first segment %s", ErrInvalidChain, c.TrimPoint, c.Segments[0])
	}
	return nil
}

// Clone returns a deep copy.
func (c Chain) Clone() Chain {
	out := Chain{TrimPoint: c.TrimPoint, Segments: make([]Segment, len(c.Segments))}
	copy(out.Segments, c.Segments)
	return out
}
