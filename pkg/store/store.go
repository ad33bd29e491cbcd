// The sync handler keeps every cached record, and the index describing those records, in one persistent key-value
// store. This module defines the store contract; the cache index and the ports are written against it so that the
// backing medium (memory, local files, Postgres, a remote HTTP store) can be swapped without touching them.

package store

import (
	"context"
	"errors"
)

var ErrKeyNotFound = errors.New("key was not found")

// Store is the persistence contract consumed by the cache index. All calls suspend on the underlying medium;
// implementations decide their own durability and concurrency guarantees. Deleting a key that does not exist
// must not be reported as an error.
type Store interface {
	// Get returns the value stored under `key` or an error wrapping ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores `value` under `key`, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes `key` and its value. Missing keys are a no-op.
	Delete(ctx context.Context, key string) error
	// Keys lists every key currently held by the store, in no particular order.
	Keys(ctx context.Context) ([]string, error)
	Close() error
}
