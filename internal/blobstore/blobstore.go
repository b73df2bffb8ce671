package blobstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the path does not exist, distinct
// from any I/O failure.
var ErrNotFound = errors.New("blobstore: not found")

// Store is the external collaborator every file-store read/write goes
// through. Put must appear atomic to a concurrent Get: no reader may ever
// observe a partial write.
type Store interface {
	// Get returns the bytes at path, or ErrNotFound if absent.
	Get(ctx context.Context, path string) ([]byte, error)

	// Put writes data to path atomically from the caller's perspective.
	Put(ctx context.Context, path string, data []byte) error

	// Tag is a short identifier used to label metrics for this store
	// instance (e.g. "local", "gcs").
	Tag() string
}
