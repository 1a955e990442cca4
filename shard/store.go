package shard

import "github.com/krisalay/api-cache/types"

/*
This file defines how entries are held inside a shard.

The memory tier is unbounded and written on every fetch, so a plain map
guarded by the shard lock is used.
*/

// ShardStore is the interface used by a shard to store and retrieve cache entries.
// Callers hold the shard lock.
type ShardStore interface {

	// Get retrieves an entry by key.
	Get(string) (*types.CacheEntry, bool)

	// Put inserts or replaces an entry.
	Put(string, *types.CacheEntry)

	// Delete removes an entry.
	Delete(string)

	// Keys lists every key held.
	Keys() []string

	// Size returns how many entries are stored.
	Size() int
}

type mapStore map[string]*types.CacheEntry

func NewMapStore() ShardStore {
	return mapStore(make(map[string]*types.CacheEntry))
}

func (s mapStore) Get(key string) (*types.CacheEntry, bool) {
	ent, ok := s[key]
	return ent, ok
}

func (s mapStore) Put(key string, ent *types.CacheEntry) { s[key] = ent }

func (s mapStore) Delete(key string) { delete(s, key) }

func (s mapStore) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	return keys
}

func (s mapStore) Size() int { return len(s) }
