// Package envelope encodes routed records to the bytes stored on a loglet.
//
// Wire layout (all integers big-endian unless noted):
//
//	"BE"                 magic (2 bytes)
//	version              format version (1 byte, currently 1)
//	flags                bit0 = payload zstd-compressed (1 byte)
//	headerLen            uvarint
//	header               msgpack, structs encoded as arrays
//	payload              raw or compressed bytes
//	crc32c               Castagnoli over [version, end-4) (4 bytes)
//
// Encoding is deterministic. Decoding never skips data: malformed input
// fails with ErrCorrupt and a newer format version with
// ErrUnsupportedVersion.
package envelope
