// Package storage persists meeting audio recordings as opaque blobs.
//
// The gateway buffers raw PCM while a meeting is active and finalizes it
// here when the meeting ends or the device disconnects. Backends: local
// disk for single-host deployments, S3-compatible object stores
// otherwise.
package storage

import (
	"context"
	"io"
)

// BlobStore stores and retrieves finalized recordings.
//
// Paths are forward-slash separated, relative to the store root.
// Implementations must be safe for concurrent use.
type BlobStore interface {
	// Put stores the contents of r under path, replacing any existing
	// blob.
	Put(ctx context.Context, path string, r io.Reader) error

	// Open opens the blob at path for reading. The caller must close
	// the returned ReadCloser. If the blob does not exist, an error
	// wrapping os.ErrNotExist is returned.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes the blob at path. Deleting a missing blob is not
	// an error.
	Delete(ctx context.Context, path string) error
}
