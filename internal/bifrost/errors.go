package bifrost

import (
	"errors"
	"fmt"

	"github.com/rzbill/bifrost/internal/envelope"
	"github.com/rzbill/bifrost/internal/loglet"
	"github.com/rzbill/bifrost/internal/logs"
	"github.com/rzbill/bifrost/internal/metadata"
	"github.com/rzbill/bifrost/internal/provider"
)

// Error taxonomy, re-exported so callers need not import the layers below.
var (
	ErrUnavailable        = loglet.ErrUnavailable
	ErrSealed             = loglet.ErrSealed
	ErrTrimmed            = loglet.ErrTrimmed
	ErrReconfigured       = provider.ErrReconfigured
	ErrStaleVersion       = metadata.ErrStaleVersion
	ErrCorrupt            = envelope.ErrCorrupt
	ErrUnsupportedVersion = envelope.ErrUnsupportedVersion

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("bifrost: closed")
)

type (
	TrimmedError = loglet.TrimmedError
	DecodeError  = envelope.DecodeError
)

// Error carries the log, position and operation of a failure.
type Error struct {
	Op    string
	LogID logs.LogID
	// LSN is the position involved, or LSNInvalid when there is none.
	LSN logs.LSN
	Err error
}

func (e *Error) Error() string {
	if e.LSN == logs.LSNInvalid {
		return fmt.Sprintf("bifrost: %s log %s: %v", e.Op, e.LogID, e.Err)
	}
	return fmt.Sprintf("bifrost: %s log %s at lsn %s: %v", e.Op, e.LogID, e.LSN, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func wrap(op string, logID logs.LogID, lsn logs.LSN, err error) error {
	if err == nil {
		return nil
	}
	var be *Error
	if errors.As(err, &be) {
		return err
	}
	return &Error{Op: op, LogID: logID, LSN: lsn, Err: err}
}

// errorKind labels err for metrics.
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrSealed):
		return "sealed"
	case errors.Is(err, ErrReconfigured), errors.Is(err, ErrStaleVersion):
		return "reconfigured"
	case errors.Is(err, ErrTrimmed):
		return "trimmed"
	case errors.Is(err, ErrCorrupt), errors.Is(err, ErrUnsupportedVersion):
		return "decode"
	case errors.Is(err, ErrClosed):
		return "closed"
	default:
		return "other"
	}
}
