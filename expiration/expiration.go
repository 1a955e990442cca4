// This file defines how cache entries expire over time.

package expiration

import (
	"time"

	"github.com/krisalay/api-cache/types"
)

/*
Strategy is the interface that all expiration rules must follow. Instead of hard-coding
expiration logic into the cache, we define a strategy so expiration behavior can be swapped easily.

All instants are epoch milliseconds.
*/
type Strategy interface {

	// IsExpired checks if the entry is expired at now.
	IsExpired(ent *types.CacheEntry, now int64) bool

	// OnWrite stamps a freshly written entry with its creation and expiry time.
	OnWrite(ent *types.CacheEntry, now int64, ttl time.Duration)
}

/*
Absolute expires an entry a fixed ttl after it was written. Reads never extend
its life; only a new write (a fetch or a revalidation) does.
*/
type Absolute struct{}

// IsExpired is true from the expiry instant onwards.
func (Absolute) IsExpired(ent *types.CacheEntry, now int64) bool {
	return !ent.ValidAt(now)
}

/*
OnWrite sets Timestamp to now and ExpiresAt to now + ttl.

A ttl shorter than one millisecond still gets one millisecond so that
ExpiresAt is always strictly after Timestamp.
*/
func (Absolute) OnWrite(ent *types.CacheEntry, now int64, ttl time.Duration) {
	ms := ttl.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	ent.Timestamp = now
	ent.ExpiresAt = now + ms
}
