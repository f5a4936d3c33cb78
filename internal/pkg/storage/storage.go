package storage

import (
	"context"
	"io"
)

// Storage archives reconciliation artifacts: authoritative snapshots
// going in, run reports coming out. Keys are slash-separated paths,
// e.g. "reconciliation/reports/<run-id>.json".
type Storage interface {
	// Put stores an object under key, replacing any previous object.
	Put(ctx context.Context, key string, reader io.Reader, contentType string) error

	// Get opens the object stored under key. The caller closes it.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the object under key. Deleting a missing key is
	// not an error; retention sweeps may race each other.
	Delete(ctx context.Context, key string) error

	// GetURL returns the public URL an operator can fetch the object
	// from.
	GetURL(key string) string
}
