package logs

import (
	"math"

	"github.com/cespare/xxhash/v2"
)

// PartitionKey places a routing key in the partition key space.
type PartitionKey uint64

// PartitionKeyOf hashes a routing key (a service key, an invocation id)
// into the partition key space.
func PartitionKeyOf(key []byte) PartitionKey {
	return PartitionKey(xxhash.Sum64(key))
}

// LogIDFor maps pk onto one of numLogs logs, each owning a contiguous range
// of the key space.
func LogIDFor(pk PartitionKey, numLogs int) LogID {
	if numLogs <= 1 {
		return 0
	}
	width := uint64(math.MaxUint64) / uint64(numLogs)
	id := uint64(pk) / width
	if id >= uint64(numLogs) {
		id = uint64(numLogs) - 1
	}
	return LogID(id)
}
