package shard

import (
	"sync"

	"github.com/krisalay/api-cache/types"
)

/*
This file defines what a "Shard" is. A shard is a small, independent piece of the memory tier.
Instead of having: One big map and one big lock
We split the memory tier into many shards. Each shard:
- Holds some portion of the entries
- Has its own lock
*/

type Shard struct {
	mu    sync.RWMutex
	store ShardStore
}

func NewShard() *Shard {
	return &Shard{store: NewMapStore()}
}

func (s *Shard) Get(key string) (*types.CacheEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Get(key)
}

func (s *Shard) Put(key string, ent *types.CacheEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.Put(key, ent)
}

func (s *Shard) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.Delete(key)
}

// DeleteIf removes key only while it still maps to ent. A reader that found
// an expired entry uses it so it can't drop a fresher one written meanwhile.
func (s *Shard) DeleteIf(key string, ent *types.CacheEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.store.Get(key); ok && cur == ent {
		s.store.Delete(key)
		return true
	}
	return false
}

func (s *Shard) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Keys()
}

func (s *Shard) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Size()
}

func (s *Shard) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store = NewMapStore()
}

// PutIfAbsent stores ent unless key already holds a valid entry at now.
// Promotion from the persistent tier uses it so an older persisted entry
// never replaces one written to memory in the meantime.
func (s *Shard) PutIfAbsent(key string, ent *types.CacheEntry, now int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.store.Get(key); ok && cur.ValidAt(now) {
		return false
	}
	s.store.Put(key, ent)
	return true
}
