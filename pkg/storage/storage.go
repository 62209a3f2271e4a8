package storage

import (
	"context"
	"errors"
)

// Storage is the persistence medium for serialized store state.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Load retrieves the entry stored under name.
	// Returns (nil, nil) if the entry doesn't exist.
	// Returns (nil, err) on backend errors.
	Load(ctx context.Context, name string) ([]byte, error)

	// Save stores data under name, overwriting any previous entry.
	Save(ctx context.Context, name string, data []byte) error

	// Remove deletes the entry stored under name.
	// Should not return an error if the entry doesn't exist.
	Remove(ctx context.Context, name string) error
}

// Watcher is implemented by backends that can report changes made to an
// entry by another writer (another process, another store instance).
type Watcher interface {
	// Watch calls fn whenever the entry stored under name may have changed.
	// fn runs on a backend goroutine and must not block for long.
	// The returned stop function is idempotent.
	Watch(ctx context.Context, name string, fn func()) (stop func(), err error)
}

// Closer is implemented by backends that hold resources.
type Closer interface {
	Close() error
}

// ErrClosed is returned when operations are attempted on a closed backend.
var ErrClosed = errors.New("storage: closed")

// ErrInvalidName is returned for entry names a backend cannot represent.
var ErrInvalidName = errors.New("storage: invalid entry name")

// copyBytes returns a private copy of b so callers cannot mutate stored data.
func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
