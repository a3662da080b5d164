package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Store.Get when the key does not exist.
	ErrNotFound = errors.New("key not found")
	// ErrCorrupt is returned by Store.Get when a stored item exists but its
	// value cannot be read back by the backend.
	ErrCorrupt = errors.New("stored value is unreadable")
)

// Store - represents a generic key-value store interface
//
// Implementations must treat Put as an unconditional overwrite and Delete of
// a missing key as success. Keys returns every key currently stored; backends
// that page internally must drain all pages.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}
