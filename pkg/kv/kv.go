// Package kv provides the key-value store behind device, reminder,
// meeting, and conversation records. Keys are slash-joined paths built
// with Key (e.g. "reminder/dev-1/42").
//
// Badger backs the store in production; Memory serves tests.
package kv

import (
	"context"
	"errors"
	"iter"
	"strings"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("kv: not found")

// Key joins path segments into a storage key. Segments must not
// contain '/'.
func Key(segments ...string) string {
	return strings.Join(segments, "/")
}

// Entry is a key-value pair yielded by List.
type Entry struct {
	Key   string
	Value []byte
}

// Store is a key-value store with prefix scans.
type Store interface {
	// Get retrieves the value for a key. Returns ErrNotFound if not present.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a key-value pair, overwriting any existing value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List iterates over all entries whose key starts with prefix,
	// in lexicographic key order.
	List(ctx context.Context, prefix string) iter.Seq2[Entry, error]

	// Close releases resources held by the store.
	Close() error
}
