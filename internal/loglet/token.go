package loglet

import (
	"fmt"

	"github.com/rzbill/bifrost/pkg/id"
)

// Token identifies one append attempt of a producer. Retrying an append with
// the same token is idempotent. The zero token disables deduplication.
type Token struct {
	Producer id.ID
	Seq      uint64
}

// IsZero reports whether deduplication is disabled for the append.
func (t Token) IsZero() bool { return t.Producer == id.ID{} }

func (t Token) String() string {
	return fmt.Sprintf("%s/%d", t.Producer, t.Seq)
}

// Dedup is the per-producer state a backend keeps to honour tokens.
type Dedup struct {
	Seq   uint64
	First uint64
}

// Check decides what to do with token given the producer's last state.
// It returns (first LSN, true, nil) for a repeat of the last token, an
// ErrDuplicate for an older one and (0, false, nil) when the append is new.
func (d Dedup) Check(t Token) (uint64, bool, error) {
	switch {
	case t.Seq == d.Seq:
		return d.First, true, nil
	case t.Seq < d.Seq:
		return 0, false, fmt.Errorf("%w: %s (last %d)", ErrDuplicate, t, d.Seq)
	default:
		return 0, false, nil
	}
}
