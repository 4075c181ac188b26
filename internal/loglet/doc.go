// Package loglet defines the capability set a storage/replication backend
// implements to hold one segment of a log: append, read, tail, trim and
// seal. Backends live in sub-packages (memory, local) and are registered
// with the provider through a Factory keyed by logs.ProviderKind.
//
// Loglets address records by absolute LSN: a loglet backing the segment
// [base, until) assigns base to its first record.
package loglet
