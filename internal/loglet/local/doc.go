// Package local implements the durable loglet of the "local" provider kind.
// Each segment owns a key prefix in the node's Pebble database; records are
// framed with a crc32c and appended in one batch together with the segment
// tail and the producer's dedup state.
package local
