package loglet

import (
	"context"

	"github.com/rzbill/bifrost/internal/logs"
	"github.com/rzbill/bifrost/pkg/id"
)

// Entry is one record read from a loglet.
type Entry struct {
	LSN     logs.LSN
	Payload []byte
}

// TailState is the loglet's tail: the next LSN it would assign, and
// whether it is sealed.
type TailState struct {
	Offset logs.LSN
	Sealed bool
}

// Loglet is the minimal contract of a segment backend.
type Loglet interface {
	// Append durably stores payloads as one atomic batch and returns the
	// LSN assigned to the first one; the rest follow contiguously. A token
	// already seen returns its original LSN without appending again.
	Append(ctx context.Context, token Token, payloads [][]byte) (logs.LSN, error)

	// ReadFrom opens a stream positioned at the first LSN >= from.
	ReadFrom(ctx context.Context, from logs.LSN) (ReadStream, error)

	Tail(ctx context.Context) (TailState, error)

	// TrimPoint is the lowest retrievable LSN.
	TrimPoint(ctx context.Context) (logs.LSN, error)

	// Trim drops every record below lsn. Trims beyond the tail are capped
	// at the tail, trims at or below the current trim point are no-ops.
	Trim(ctx context.Context, lsn logs.LSN) error

	// Seal stops accepting appends and returns the final tail. Sealing a
	// sealed loglet returns the same tail.
	Seal(ctx context.Context) (logs.LSN, error)

	// Producers returns the dedup state of every producer that appended
	// with a token.
	Producers(ctx context.Context) (map[id.ID]Dedup, error)

	// AdoptProducers merges dedup state carried over from the predecessor
	// segment. A state never replaces a newer one of the same producer.
	AdoptProducers(ctx context.Context, states map[id.ID]Dedup) error
}

// ReadStream yields entries in strictly increasing LSN order.
type ReadStream interface {
	// Next blocks until the next entry exists. It fails with ErrSealed once
	// the stream passed the seal point, with a *TrimmedError when the next
	// position was trimmed, and with ctx.Err() on cancellation.
	Next(ctx context.Context) (Entry, error)

	// Position is the LSN the next call to Next will return.
	Position() logs.LSN

	Close() error
}

// Factory creates and caches loglets of one provider kind.
type Factory interface {
	Kind() logs.ProviderKind

	// Params returns the loglet parameters recorded in the metadata for a
	// new segment of logID.
	Params(logID logs.LogID, segmentIndex uint32) string

	// Get returns the loglet backing segment of logID.
	Get(ctx context.Context, logID logs.LogID, segment logs.Segment) (Loglet, error)

	// Release drops a segment the metadata no longer references, including
	// its stored records.
	Release(ctx context.Context, logID logs.LogID, segment logs.Segment) error

	Close() error
}
