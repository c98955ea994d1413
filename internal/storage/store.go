// Package storage abstracts remote object access for shard downloads.
//
// The Open Buildings bucket is public, so there is exactly one strategy:
// anonymous HTTP against storage.googleapis.com. The interface keeps the
// fetcher testable against httptest servers.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned when the remote object does not exist.
var ErrObjectNotFound = errors.New("object not found")

// SizeUnknown is returned by Size when the store cannot determine the
// object's length (e.g. no Content-Length header).
const SizeUnknown int64 = -1

// ObjectStore provides read access to remote objects by key.
type ObjectStore interface {
	// Size returns the object's size in bytes, or SizeUnknown. Returns
	// ErrObjectNotFound for a missing object, so it doubles as the
	// existence check before a download starts.
	Size(ctx context.Context, key string) (int64, error)

	// Open returns the object's content stream and its total size
	// (SizeUnknown if not reported). Returns ErrObjectNotFound for a
	// missing object. The caller must close the reader.
	Open(ctx context.Context, key string) (io.ReadCloser, int64, error)
}
