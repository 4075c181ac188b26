// Package transports provides pluggable transport implementations for the CLI.
package transports

import (
	"context"
	"errors"
)

// ErrNotSupported is returned by transports lacking an operation.
var ErrNotSupported = errors.New("transport: operation not supported")

// Ident is a node's self-description.
type Ident struct {
	NodeName        string `json:"node_name,omitempty"`
	Status          string `json:"status"`
	StatusCode      int32  `json:"status_code"`
	MetadataVersion uint64 `json:"metadata_version"`
}

// NodeTransport abstracts the transport used by the CLI (gRPC/HTTP).
type NodeTransport interface {
	MetadataVersion(ctx context.Context) (uint64, error)
	Ident(ctx context.Context) (Ident, error)
	// WatchMetadataVersion calls fn for the current version and then every
	// newer one until fn or the transport fails, or ctx ends.
	WatchMetadataVersion(ctx context.Context, fn func(uint64) error) error
	Close() error
}
