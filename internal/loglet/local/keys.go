package local

import (
	"encoding/binary"

	"github.com/rzbill/bifrost/internal/loglet"
	"github.com/rzbill/bifrost/internal/logs"
	"github.com/rzbill/bifrost/pkg/id"
)

// Keyspace of one segment, byte-wise sortable:
//   - bifrost/loglet/{log_be8}/{seg_be4}/m               tail | trim | sealed
//   - bifrost/loglet/{log_be8}/{seg_be4}/e/{lsn_be8}     payload | crc32c
//   - bifrost/loglet/{log_be8}/{seg_be4}/p/{producer}    seq | first lsn

var (
	logletPrefix = []byte("bifrost/loglet/")
	metaSuffix   = []byte("/m")
	entrySeg     = []byte("/e/")
	producerSeg  = []byte("/p/")
)

func appendBE4(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

func segmentPrefix(logID logs.LogID, segment uint32) []byte {
	k := make([]byte, 0, len(logletPrefix)+16)
	k = append(k, logletPrefix...)
	k = appendBE8(k, uint64(logID))
	k = append(k, '/')
	return appendBE4(k, segment)
}

// KeyMeta builds the segment state key.
func KeyMeta(logID logs.LogID, segment uint32) []byte {
	return append(segmentPrefix(logID, segment), metaSuffix...)
}

// KeyEntry builds the key of the record at lsn.
func KeyEntry(logID logs.LogID, segment uint32, lsn logs.LSN) []byte {
	k := append(segmentPrefix(logID, segment), entrySeg...)
	return appendBE8(k, uint64(lsn))
}

func producerPrefix(logID logs.LogID, segment uint32) []byte {
	return append(segmentPrefix(logID, segment), producerSeg...)
}

// KeyProducer builds the dedup state key of a producer.
func KeyProducer(logID logs.LogID, segment uint32, producer id.ID) []byte {
	return append(producerPrefix(logID, segment), producer.Bytes()...)
}

// prefixEnd is the smallest key greater than every key starting with prefix.
// Prefixes here always end in '/', so the last byte never overflows.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	end[len(end)-1]++
	return end
}

func encodeProducerState(d loglet.Dedup) []byte {
	var v [16]byte
	binary.BigEndian.PutUint64(v[0:8], d.Seq)
	binary.BigEndian.PutUint64(v[8:16], d.First)
	return v[:]
}

func decodeProducerState(b []byte) (loglet.Dedup, bool) {
	if len(b) != 16 {
		return loglet.Dedup{}, false
	}
	return loglet.Dedup{Seq: binary.BigEndian.Uint64(b[0:8]), First: binary.BigEndian.Uint64(b[8:16])}, true
}

// lsnFromEntryKey extracts the lsn suffix of an entry key.
func lsnFromEntryKey(k []byte) logs.LSN {
	return logs.LSN(binary.BigEndian.Uint64(k[len(k)-8:]))
}

// segmentState is the value stored under KeyMeta.
type segmentState struct {
	tail      logs.LSN
	trimPoint logs.LSN
	sealed    bool
}

func (s segmentState) encode() []byte {
	out := make([]byte, 17)
	binary.BigEndian.PutUint64(out[0:8], uint64(s.tail))
	binary.BigEndian.PutUint64(out[8:16], uint64(s.trimPoint))
	if s.sealed {
		out[16] = 1
	}
	return out
}

func decodeSegmentState(b []byte) (segmentState, bool) {
	if len(b) != 17 {
		return segmentState{}, false
	}
	return segmentState{
		tail:      logs.LSN(binary.BigEndian.Uint64(b[0:8])),
		trimPoint: logs.LSN(binary.BigEndian.Uint64(b[8:16])),
		sealed:    b[16] == 1,
	}, true
}
