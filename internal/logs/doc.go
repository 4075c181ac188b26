// Package logs defines the data model shared by every bifrost component:
// log identifiers, log sequence numbers, metadata versions, loglet segments
// and the per-log segment chain.
//
// LSN 0 is reserved and means "before the first record"; the first record
// of a log is assigned LSN 1. A segment covers the half-open range
// [BaseLSN, UntilLSN); the last segment of a chain is open (UntilLSN ==
// LSNMax) until it is sealed by a reconfiguration.
//
// Trimming is exclusive of the trim point: after a trim to x every record
// with LSN < x is gone and x is the lowest retrievable LSN.
package logs
