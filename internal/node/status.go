package node

import "sync/atomic"

// Status is the lifecycle state reported to membership and health tooling.
type Status int32

const (
	StatusUnknown Status = iota
	StatusAlive
	StatusStartingUp
	StatusShuttingDown
)

func (s Status) String() string {
	switch s {
	case StatusAlive:
		return "alive"
	case StatusStartingUp:
		return "starting_up"
	case StatusShuttingDown:
		return "shutting_down"
	default:
		return "unknown"
	}
}

type statusCell struct{ v atomic.Int32 }

func (c *statusCell) load() Status   { return Status(c.v.Load()) }
func (c *statusCell) store(s Status) { c.v.Store(int32(s)) }

// advance moves from one state to another and reports whether it did.
func (c *statusCell) advance(from, to Status) bool {
	return c.v.CompareAndSwap(int32(from), int32(to))
}

// ParseStatus is the inverse of String. Unrecognized names are unknown.
func ParseStatus(s string) Status {
	for _, st := range []Status{StatusAlive, StatusStartingUp, StatusShuttingDown} {
		if st.String() == s {
			return st
		}
	}
	return StatusUnknown
}
