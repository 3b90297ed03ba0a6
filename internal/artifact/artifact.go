// Package artifact defines the key-addressed binary blob storage contract
// used for source images and generated outputs, together with the
// deterministic naming rules for derived artifacts.
package artifact

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned when a requested key does not exist in the store.
var ErrObjectNotFound = errors.New("artifact not found")

// Store is key-addressed blob storage. Implementations must make Put an
// atomic overwrite so reprocessing a job replaces its artifacts rather
// than accumulating copies.
type Store interface {
	// Put writes an object under the given key, replacing any existing
	// object. size may be -1 when unknown.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// Get opens the object stored under the given key for reading.
	// Returns ErrObjectNotFound if no such object exists.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists reports whether an object is stored under the given key.
	Exists(ctx context.Context, key string) (bool, error)
}
