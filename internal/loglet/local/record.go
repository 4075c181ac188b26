package local

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
)

// ErrCorrupt reports a stored record that fails its checksum.
var ErrCorrupt = errors.New("local loglet: corrupt record")

// Record encoding: payload | crc32c(payload)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func encodeRecord(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+4)
	out = append(out, payload...)
	return binary.BigEndian.AppendUint32(out, crc32.Checksum(payload, castagnoli))
}

func decodeRecord(b []byte) ([]byte, error) {
	if len(b) < 4 {
		return nil, ErrCorrupt
	}
	payload := b[:len(b)-4]
	if crc32.Checksum(payload, castagnoli) != binary.BigEndian.Uint32(b[len(b)-4:]) {
		return nil, ErrCorrupt
	}
	return append([]byte(nil), payload...), nil
}
