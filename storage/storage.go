// Package storage holds the persistent tier of the cache: an opaque,
// possibly failing key/value store of text values.
package storage

import (
	"context"

	"github.com/pkg/errors"
)

var (
	ErrClosed = errors.New("storage closed")
)

/*
Backend is the durable key/value store sitting under the memory tier.

Every method may fail; the cache logs such failures and carries on as if the
key was absent. Keys arrive already namespaced by the cache, so a backend can
be shared with other data as long as prefixes don't collide.
*/
type Backend interface {
	// GetItem returns the stored text and true, or false when the key is absent.
	GetItem(ctx context.Context, key string) (string, bool, error)

	// SetItem stores or replaces the value of key.
	SetItem(ctx context.Context, key, value string) error

	// RemoveItem deletes key. Removing an absent key is not an error.
	RemoveItem(ctx context.Context, key string) error

	// GetAllKeys lists every key in the backend, in no particular order.
	GetAllKeys(ctx context.Context) ([]string, error)

	// MultiRemove deletes all the given keys.
	MultiRemove(ctx context.Context, keys []string) error

	// Close releases the backend. Later calls fail with ErrClosed.
	Close() error
}
