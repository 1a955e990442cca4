package writepolicy

import (
	"context"

	"github.com/krisalay/api-cache/types"
)

/*
This file defines what a "write policy" is: how a write that already landed in
the memory tier reaches the persistent tier.

- Write-through: persist before Set returns
- Write-back: persist later from a background worker
*/

// Writer performs the actual persistence of one entry. It owns error
// handling; a policy never sees a persistence failure.
type Writer func(ctx context.Context, key string, ent *types.CacheEntry)

/*
WritePolicy is the contract that all write policies must follow.
The store does not care which policy is used. It simply calls these methods.
*/
type WritePolicy interface {

	// OnWrite is called after key was written to memory.
	OnWrite(ctx context.Context, key string, ent *types.CacheEntry)

	// Forget drops any write of key not yet persisted. Called on invalidation
	// so a queued write can't bring an invalidated entry back.
	Forget(key string)

	// Reset drops every write not yet persisted.
	Reset()

	// Close is called when the cache is shutting down.
	Close()
}
