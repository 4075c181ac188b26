package logs

import (
	"fmt"
	"math"
	"strconv"
)

// LogID names one independently-ordered log (one per partition).
type LogID uint64

func (id LogID) String() string { return strconv.FormatUint(uint64(id), 10) }

// LSN is a log sequence number, strictly increasing within a LogID.
type LSN uint64

const (
	// LSNInvalid is reserved and sorts before every record.
	LSNInvalid LSN = 0
	// LSNOldest is the first LSN ever assigned in a log.
	LSNOldest LSN = 1
	// LSNMax marks an open-ended segment.
	LSNMax LSN = math.MaxUint64
)

// Next returns lsn+1, saturating at LSNMax.
func (l LSN) Next() LSN {
	if l == LSNMax {
		return l
	}
	return l + 1
}

// Prev returns lsn-1, saturating at LSNInvalid.
func (l LSN) Prev() LSN {
	if l == LSNInvalid {
		return l
	}
	return l - 1
}

func (l LSN) String() string {
	if l == LSNMax {
		return "max"
	}
	return strconv.FormatUint(uint64(l), 10)
}

// Version is the log metadata version. It only ever grows.
type Version uint64

const (
	VersionInvalid Version = 0
	VersionMin     Version = 1
)

func (v Version) Next() Version { return v + 1 }

func (v Version) String() string { return "v" + strconv.FormatUint(uint64(v), 10) }

// ProviderKind selects the loglet backend of a segment.
type ProviderKind string

const (
	// ProviderMemory keeps records in process memory. Used for tests.
	ProviderMemory ProviderKind = "memory"
	// ProviderLocal stores records durably in the node's Pebble store.
	ProviderLocal ProviderKind = "local"
)

// ParseProviderKind validates a provider kind name.
func ParseProviderKind(s string) (ProviderKind, error) {
	switch k := ProviderKind(s); k {
	case ProviderMemory, ProviderLocal:
		return k, nil
	default:
		return "", fmt.Errorf("logs: unknown provider kind %q", s)
	}
}
