package envelope

import (
	"errors"
	"fmt"
)

var (
	// ErrCorrupt reports malformed envelope bytes.
	ErrCorrupt = errors.New("envelope: corrupt")
	// ErrUnsupportedVersion reports an envelope written by a newer format.
	ErrUnsupportedVersion = errors.New("envelope: unsupported version")
)

// DecodeKind classifies a DecodeError.
type DecodeKind int

const (
	DecodeCorrupt DecodeKind = iota
	DecodeUnsupportedVersion
)

// DecodeError is returned by Codec.Decode. Both kinds are permanent.
type DecodeError struct {
	Kind    DecodeKind
	Version uint8
	Reason  string
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Kind == DecodeUnsupportedVersion {
		return fmt.Sprintf("envelope: unsupported format version %d (max %d)", e.Version, FormatVersion)
	}
	if e.Err != nil {
		return fmt.Sprintf("envelope: corrupt: %s: %v", e.Reason, e.Err)
	}
	return "envelope: corrupt: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is matches the ErrCorrupt/ErrUnsupportedVersion sentinels.
func (e *DecodeError) Is(target error) bool {
	switch target {
	case ErrCorrupt:
		return e.Kind == DecodeCorrupt
	case ErrUnsupportedVersion:
		return e.Kind == DecodeUnsupportedVersion
	}
	return false
}

func corrupt(reason string, err error) error {
	return &DecodeError{Kind: DecodeCorrupt, Reason: reason, Err: err}
}
