package shard

import (
	"fmt"
	"testing"

	"github.com/krisalay/api-cache/types"
	"github.com/stretchr/testify/assert"
)

func TestShardDeleteIfKeepsNewerEntry(t *testing.T) {
	s := NewShard()
	old := &types.CacheEntry{Data: 1}
	fresh := &types.CacheEntry{Data: 2}

	s.Put("k", old)
	s.Put("k", fresh)

	assert.False(t, s.DeleteIf("k", old))
	got, ok := s.Get("k")
	assert.True(t, ok)
	assert.Same(t, fresh, got)

	assert.True(t, s.DeleteIf("k", fresh))
	assert.Equal(t, 0, s.Size())
}

func TestShardReset(t *testing.T) {
	s := NewShard()
	s.Put("a", &types.CacheEntry{})
	s.Put("b", &types.CacheEntry{})
	assert.ElementsMatch(t, []string{"a", "b"}, s.Keys())

	s.Reset()
	assert.Equal(t, 0, s.Size())
	assert.Empty(t, s.Keys())
}

func TestHashSelectorIsStable(t *testing.T) {
	shards := []*Shard{NewShard(), NewShard(), NewShard(), NewShard()}
	var sel HashSelector
	for i := 0; i < 100; i++ {
		key := fmt.Sprintf("user:%d", i)
		assert.Same(t, sel.Select(key, shards), sel.Select(key, shards))
	}
}

func TestShardPutIfAbsent(t *testing.T) {
	s := NewShard()
	live := &types.CacheEntry{Data: "live", ExpiresAt: 100}
	s.Put("k", live)

	assert.False(t, s.PutIfAbsent("k", &types.CacheEntry{Data: "disk", ExpiresAt: 200}, 50))
	got, _ := s.Get("k")
	assert.Same(t, live, got)

	disk := &types.CacheEntry{Data: "disk", ExpiresAt: 200}
	assert.True(t, s.PutIfAbsent("k", disk, 100))
	got, _ = s.Get("k")
	assert.Same(t, disk, got)

	assert.True(t, s.PutIfAbsent("other", disk, 0))
}
