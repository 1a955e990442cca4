package types

import (
	"context"
	"time"
)

/*
FetchFunc is the caller-supplied retrieval the cache runs on a miss or during
revalidation.

It may be called without the original caller being involved (a coalesced
caller, a background revalidation) so it must be safe to call more than once
for the same key. The context it receives is detached from any single caller's
cancellation because its result is shared.
*/
type FetchFunc func(ctx context.Context) (any, error)

// FetchOptions are the per-call knobs of FetchWithCache and Prefetch.
type FetchOptions struct {
	// TTL of the stored result. Zero or negative means the cache default.
	TTL time.Duration

	// StaleWhileRevalidate serves a hit immediately and refreshes the entry
	// in the background.
	StaleWhileRevalidate bool
}
