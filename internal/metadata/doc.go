// Package metadata holds the authoritative mapping of every log to its
// segment chain, stamped with a version. Reads are lock-free snapshots;
// mutations are compare-and-swap on the version and serialize under one
// mutex. A Backend may persist each published version before it becomes
// visible.
//
// The store is constructed explicitly and must exist before any provider or
// bifrost handle that uses it. Close it after those are closed.
package metadata
