// Package repository defines storage interfaces implemented by concrete backends.
package repository

import "context"

// KV is a string-keyed store of whole values. Put replaces the previous value atomically,
// so readers never observe a partially written value.
type KV interface {
	// Get returns the value for key or errs.ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put stores value under key, overwriting any previous value.
	Put(ctx context.Context, key string, value []byte) error
	// Delete removes key; deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
