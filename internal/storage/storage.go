package storage

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned when a key has no persisted value.
var ErrKeyNotFound = errors.New("key not found")

// Store persists the small set of client-side keys that must survive
// restarts: the bearer token, the session snapshot and the guest-cart
// staging blob. Each key has a single writing code path; deleting a key
// that does not exist is not an error.
type Store interface {
	// Get returns the value for key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set writes the value for key, overwriting any prior value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Removing an absent key succeeds.
	Delete(ctx context.Context, key string) error
}
