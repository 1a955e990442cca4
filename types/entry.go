package types

import "time"

// DefaultTTL applies whenever a caller passes a non-positive ttl.
const DefaultTTL = 5 * time.Minute

/*
CacheEntry is one cached payload together with its lifetime.

Timestamps are integer milliseconds since the epoch. This is also the exact
shape written to the persistent tier, so the JSON names must not change.
*/
type CacheEntry struct {
	Data      any   `json:"data"`
	Timestamp int64 `json:"timestamp"`
	ExpiresAt int64 `json:"expiresAt"` // Timestamp + ttl, always > Timestamp
}

// ValidAt reports whether the entry can still be served at now (ms).
// The expiry instant itself is already stale.
func (e *CacheEntry) ValidAt(now int64) bool {
	return now < e.ExpiresAt
}
