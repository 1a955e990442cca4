// Package store is the two-tier Cache Store: a sharded memory tier shadowing
// a persistent storage.Backend, both holding TTL-bound entries.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/krisalay/api-cache/engine"
	"github.com/krisalay/api-cache/shard"
	"github.com/krisalay/api-cache/storage"
	"github.com/krisalay/api-cache/types"
	"github.com/krisalay/api-cache/writepolicy"
)

const (
	// DefaultPrefix namespaces every key this store writes to its backend.
	DefaultPrefix = "@api_cache:"

	DefaultShards = 16
)

// Options tune a Store. The zero value is a write-through store with the
// default prefix and shard count.
type Options struct {
	Prefix string
	Shards int

	// WriteBack persists from a background worker instead of inside Set.
	WriteBack      bool
	WriteBackLimit int

	// ScanPersisted makes InvalidatePattern also match keys that only exist
	// in the persistent tier. Off by default: only memory-resident keys are
	// matched, so entries not yet promoted after a restart are left alone.
	ScanPersisted bool
}

type Store struct {
	engine   *engine.CacheEngine
	backend  storage.Backend
	prefix   string
	shards   []*shard.Shard
	selector shard.Selector
	policy   writepolicy.WritePolicy
	scan     bool
}

func New(e *engine.CacheEngine, backend storage.Backend, opts Options) *Store {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.Shards <= 0 {
		opts.Shards = DefaultShards
	}

	s := &Store{
		engine:   e,
		backend:  backend,
		prefix:   opts.Prefix,
		shards:   make([]*shard.Shard, opts.Shards),
		selector: shard.HashSelector{},
		scan:     opts.ScanPersisted,
	}
	for i := range s.shards {
		s.shards[i] = shard.NewShard()
	}

	if opts.WriteBack {
		s.policy = writepolicy.NewWriteBackPolicy(s.write, opts.WriteBackLimit, e.Log.WithField("policy", "write-back"))
	} else {
		s.policy = writepolicy.NewWriteThroughPolicy(s.write)
	}
	return s
}

func (s *Store) shardFor(key string) *shard.Shard {
	return s.selector.Select(key, s.shards)
}

/*
Get returns the cached data for key, or false.

Memory is checked first. Otherwise the persistent tier is consulted: a valid
entry there is promoted into memory, an expired one is deleted. A persistent
tier failure is logged and reported as a miss.
*/
func (s *Store) Get(ctx context.Context, key string) (any, bool) {
	ent, ok := s.Lookup(ctx, key)
	if !ok {
		return nil, false
	}
	return ent.Data, true
}

// Resident returns the valid memory entry for key. It never reads the
// backend and records no metrics.
func (s *Store) Resident(key string) (any, bool) {
	ent, ok := s.shardFor(key).Get(key)
	if !ok || s.engine.IsExpired(ent) {
		return nil, false
	}
	return ent.Data, true
}

// Lookup is Get returning the whole entry, timestamps included.
func (s *Store) Lookup(ctx context.Context, key string) (*types.CacheEntry, bool) {
	m := s.engine.Metrics
	sh := s.shardFor(key)

	expired := false
	if ent, ok := sh.Get(key); ok {
		if !s.engine.IsExpired(ent) {
			m.Hit()
			return ent, true
		}
		sh.DeleteIf(key, ent)
		m.Expire()
		expired = true
	}

	ent, ok, err := s.load(ctx, key)
	if err != nil {
		s.swallow(err)
		m.Miss()
		return nil, false
	}
	if !ok {
		m.Miss()
		return nil, false
	}

	now := s.engine.Now()
	if s.engine.Expiration.IsExpired(ent, now) {
		// one expiry, even when both tiers held it
		if !expired {
			m.Expire()
		}
		m.Miss()
		if err := s.removePersisted(ctx, key); err != nil {
			s.swallow(err)
		}
		return nil, false
	}

	if !sh.PutIfAbsent(key, ent, now) {
		// memory got a fresher write while we were reading disk
		if cur, ok := sh.Get(key); ok {
			ent = cur
		}
	}
	m.Hit()
	return ent, true
}

/*
Set stores data under key for ttl (the default ttl when ttl <= 0).

Memory is written unconditionally; the persistent write goes through the
configured write policy and any failure there is logged, never returned.
*/
func (s *Store) Set(ctx context.Context, key string, data any, ttl time.Duration) {
	ent := s.engine.NewEntry(data, ttl)
	s.shardFor(key).Put(key, ent)
	s.policy.OnWrite(ctx, key, ent)
}

// Invalidate removes key from both tiers.
func (s *Store) Invalidate(ctx context.Context, key string) {
	s.shardFor(key).Delete(key)
	s.policy.Forget(key)
	if err := s.removePersisted(ctx, key); err != nil {
		s.engine.Log.WithError(err).Debug("ignoring failed invalidation")
	}
}

// InvalidatePattern invalidates every key containing substr.
func (s *Store) InvalidatePattern(ctx context.Context, substr string) {
	for _, key := range s.matchKeys(ctx, substr) {
		s.Invalidate(ctx, key)
	}
}

func (s *Store) matchKeys(ctx context.Context, substr string) []string {
	seen := make(map[string]struct{})
	var keys []string
	add := func(k string) {
		if !strings.Contains(k, substr) {
			return
		}
		if _, dup := seen[k]; dup {
			return
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}

	for _, sh := range s.shards {
		for _, k := range sh.Keys() {
			add(k)
		}
	}

	if s.scan {
		persisted, err := s.persistedKeys(ctx)
		if err != nil {
			s.swallow(err)
		}
		for _, k := range persisted {
			add(k)
		}
	}
	return keys
}

// Clear drops every memory entry and every persisted entry under the prefix.
// Items of the backend outside the prefix are left untouched.
func (s *Store) Clear(ctx context.Context) {
	for _, sh := range s.shards {
		sh.Reset()
	}
	s.policy.Reset()

	keys, err := s.persistedKeys(ctx)
	if err != nil {
		s.swallow(err)
		return
	}
	if len(keys) == 0 {
		return
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.prefix + k
	}
	if err := s.backend.MultiRemove(ctx, full); err != nil {
		s.swallow(storageErr("clear", "", err))
	}
}

// Size counts memory-resident entries. Entries that only exist in the
// persistent tier are not counted.
func (s *Store) Size() int {
	n := 0
	for _, sh := range s.shards {
		n += sh.Size()
	}
	return n
}

// Close flushes pending persistent writes. The backend itself is owned by
// whoever passed it in.
func (s *Store) Close() {
	s.policy.Close()
}

// write is the writepolicy.Writer of this store.
func (s *Store) write(ctx context.Context, key string, ent *types.CacheEntry) {
	if err := s.persist(ctx, key, ent); err != nil {
		s.swallow(err)
	}
}

func (s *Store) persist(ctx context.Context, key string, ent *types.CacheEntry) error {
	text, err := types.EncodeEntry(ent)
	if err != nil {
		return storageErr("encode", key, err)
	}
	return storageErr("set", key, s.backend.SetItem(ctx, s.prefix+key, text))
}

func (s *Store) load(ctx context.Context, key string) (*types.CacheEntry, bool, error) {
	text, ok, err := s.backend.GetItem(ctx, s.prefix+key)
	if err != nil {
		return nil, false, storageErr("get", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	ent, err := types.DecodeEntry(text)
	if err != nil {
		return nil, false, storageErr("decode", key, err)
	}
	return ent, true, nil
}

func (s *Store) removePersisted(ctx context.Context, key string) error {
	return storageErr("remove", key, s.backend.RemoveItem(ctx, s.prefix+key))
}

// persistedKeys lists backend keys under the prefix, prefix stripped.
func (s *Store) persistedKeys(ctx context.Context) ([]string, error) {
	all, err := s.backend.GetAllKeys(ctx)
	if err != nil {
		return nil, storageErr("list", "", err)
	}
	keys := make([]string, 0, len(all))
	for _, k := range all {
		if strings.HasPrefix(k, s.prefix) {
			keys = append(keys, strings.TrimPrefix(k, s.prefix))
		}
	}
	return keys, nil
}

func (s *Store) swallow(err error) {
	s.engine.Metrics.StorageError()
	s.engine.Log.Warnf("cache storage failure, degrading to miss: %+v", err)
}
