package loglet

import (
	"errors"
	"fmt"

	"github.com/rzbill/bifrost/internal/logs"
)

var (
	// ErrUnavailable is a transient backend failure; retry with backoff.
	ErrUnavailable = errors.New("loglet: unavailable")
	// ErrSealed means the segment is closed; move on to the next segment.
	ErrSealed = errors.New("loglet: sealed")
	// ErrTrimmed matches every *TrimmedError.
	ErrTrimmed = errors.New("loglet: trimmed")
	// ErrDuplicate reports a token older than the last one seen for its producer.
	ErrDuplicate = errors.New("loglet: duplicate sequence token")
	// ErrClosed reports use of a closed loglet or factory.
	ErrClosed = errors.New("loglet: closed")
)

// TrimmedError reports a read below the trim point.
type TrimmedError struct {
	LSN       logs.LSN
	TrimPoint logs.LSN
}

func (e *TrimmedError) Error() string {
	return fmt.Sprintf("loglet: lsn %s is trimmed (trim point %s)", e.LSN, e.TrimPoint)
}

func (e *TrimmedError) Is(target error) bool { return target == ErrTrimmed }

// Unavailable wraps a backend failure as retryable.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// IsRetryable reports whether err may succeed when retried as is.
func IsRetryable(err error) bool { return errors.Is(err, ErrUnavailable) }
