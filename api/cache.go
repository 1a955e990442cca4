package api

import (
	"context"
	"time"

	"github.com/krisalay/api-cache/types"
)

/*
Cache defines the PUBLIC API of the read-through cache.
This is a contract that guarantees certain behaviors, without exposing internals.
All of the details (memory vs persistent tier, request coalescing, background
revalidation, write policy) are hidden behind this interface.

None of these methods fail because of the cache itself. Storage trouble turns
into a miss or a no-op; the only errors callers ever see come from their own
fetch functions.
*/
type Cache interface {

	/*
		FetchWithCache returns the data for key, fetching it if necessary.

		BEHAVIOR:
		-------------------
		1. A fetch for key already in flight:
		   - Wait for it, get its value or its error
		2. A valid cached entry:
		   - Return it immediately
		   - With StaleWhileRevalidate, refresh it in the background
		3. Nothing cached:
		   - Run fetch once for all concurrent callers
		   - Store the result with opts.TTL, or store nothing on error

		RETURNED TYPE:
		-------------------
		- Data cached by this process comes back as fetch returned it
		- Data promoted from the persistent tier (say after a restart) comes
		  back as raw JSON (jsoniter.RawMessage), not the original Go type
		- Use the typed Fetch[T] / GetAs[T] helpers to get T either way
	*/
	FetchWithCache(ctx context.Context, key string, fetch types.FetchFunc, opts types.FetchOptions) (any, error)

	/*
		Prefetch fills key if it holds no valid entry.
		Failures are logged and dropped.
	*/
	Prefetch(ctx context.Context, key string, fetch types.FetchFunc, opts types.FetchOptions)

	// Get reads key from memory, then from the persistent tier. Data read
	// from the persistent tier is raw JSON, as with FetchWithCache.
	Get(ctx context.Context, key string) (any, bool)

	/*
		Set stores data under key.

		TTL (Time-To-Live):
		-------------------
		- The entry is valid strictly before now + ttl
		- ttl <= 0 means the default (5 minutes)
	*/
	Set(ctx context.Context, key string, data any, ttl time.Duration)

	// Invalidate removes key from both tiers. Removing a missing key is safe.
	Invalidate(ctx context.Context, key string)

	/*
		InvalidatePattern invalidates every key containing substr.

		Only keys resident in memory are considered unless the cache was built
		to scan the persistent tier too.
	*/
	InvalidatePattern(ctx context.Context, substr string)

	// Clear drops everything this cache owns, in both tiers.
	Clear(ctx context.Context)

	// Size counts memory-resident entries.
	Size() int

	/*
		Close gracefully shuts down the cache.

		BEHAVIOR:
		---------
		- Waits for background revalidations
		- Flushes any pending write-back operations
	*/
	Close()
}
