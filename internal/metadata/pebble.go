package metadata

import (
	"context"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/rzbill/bifrost/internal/logs"
	pebblestore "github.com/rzbill/bifrost/internal/storage/pebble"
)

// KeyMetadata is where PebbleBackend keeps the metadata.
var KeyMetadata = []byte("bifrost/metadata")

// PebbleBackend stores metadata msgpack-encoded under a single key.
type PebbleBackend struct {
	db *pebblestore.DB
}

// NewPebbleBackend returns a backend writing to db.
func NewPebbleBackend(db *pebblestore.DB) *PebbleBackend {
	return &PebbleBackend{db: db}
}

func (b *PebbleBackend) Load(context.Context) (*logs.Metadata, error) {
	raw, err := b.db.Get(KeyMetadata)
	if errors.Is(err, pebblestore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	md := &logs.Metadata{}
	if err := msgpack.Unmarshal(raw, md); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if md.Chains == nil {
		md.Chains = map[logs.LogID]logs.Chain{}
	}
	return md, nil
}

func (b *PebbleBackend) Save(ctx context.Context, md *logs.Metadata) error {
	raw, err := msgpack.Marshal(md)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	return b.db.Set(ctx, KeyMetadata, raw)
}
