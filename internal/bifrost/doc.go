// Package bifrost is the public face of the log substrate. A Bifrost handle
// addresses logs by LogID and hides segments: appends go to the open
// segment, reads stitch sealed and open segments into one ordered stream,
// and reconfiguration swaps the open segment without the caller noticing.
//
// Metadata races (ErrReconfigured, ErrStaleVersion) and seals are absorbed by
// refreshing and retrying exactly once. ErrUnavailable is retried under a
// bounded RetryPolicy. Everything else reaches the caller as an *Error
// carrying the log and position.
package bifrost
