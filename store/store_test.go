package store

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/krisalay/api-cache/engine"
	"github.com/krisalay/api-cache/storage"
	"github.com/krisalay/api-cache/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBackend = errors.New("backend unavailable")

// flakyBackend fails the operations it is told to.
type flakyBackend struct {
	storage.Backend
	failGet, failSet, failRemove, failList bool
}

func (f *flakyBackend) GetItem(ctx context.Context, key string) (string, bool, error) {
	if f.failGet {
		return "", false, errBackend
	}
	return f.Backend.GetItem(ctx, key)
}

func (f *flakyBackend) SetItem(ctx context.Context, key, value string) error {
	if f.failSet {
		return errBackend
	}
	return f.Backend.SetItem(ctx, key, value)
}

func (f *flakyBackend) RemoveItem(ctx context.Context, key string) error {
	if f.failRemove {
		return errBackend
	}
	return f.Backend.RemoveItem(ctx, key)
}

func (f *flakyBackend) GetAllKeys(ctx context.Context) ([]string, error) {
	if f.failList {
		return nil, errBackend
	}
	return f.Backend.GetAllKeys(ctx)
}

// countingMetrics records the events the store reports.
type countingMetrics struct {
	types.NoopMetrics
	hits, misses, expired int
}

func (c *countingMetrics) Hit()    { c.hits++ }
func (c *countingMetrics) Miss()   { c.misses++ }
func (c *countingMetrics) Expire() { c.expired++ }

type fixture struct {
	store   *Store
	backend *flakyBackend
	mem     *storage.Memory
	clock   *clock.Mock
	hook    *test.Hook
	metrics *countingMetrics
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	mock := clock.NewMock()
	mem := storage.NewMemory()
	backend := &flakyBackend{Backend: mem}
	metrics := &countingMetrics{}
	e := engine.NewCacheEngine(mock, 0, nil, metrics, logger)
	s := New(e, backend, opts)
	t.Cleanup(s.Close)
	return &fixture{store: s, backend: backend, mem: mem, clock: mock, hook: hook, metrics: metrics}
}

// restart builds a second store over the same backend, like a new process.
func (f *fixture) restart(opts Options) *Store {
	e := engine.NewCacheEngine(f.clock, 0, nil, nil, f.store.engine.Log)
	return New(e, f.backend, opts)
}

func TestTTLBoundary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})

	f.store.Set(ctx, "k", map[string]int{"v": 1}, time.Second)

	f.clock.Add(999 * time.Millisecond)
	v, ok := f.store.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, map[string]int{"v": 1}, v)

	f.clock.Add(time.Millisecond)
	_, ok = f.store.Get(ctx, "k")
	assert.False(t, ok)
}

func TestDefaultTTLIsFiveMinutes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})

	f.store.Set(ctx, "k", "v", 0)
	ent, ok := f.store.Lookup(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, int64(5*60*1000), ent.ExpiresAt-ent.Timestamp)
}

func TestSetPersistsWithPrefix(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})

	f.store.Set(ctx, "user:1", map[string]any{"name": "ada"}, time.Minute)

	text, ok, err := f.mem.GetItem(ctx, "@api_cache:user:1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"data":{"name":"ada"},"timestamp":0,"expiresAt":60000}`, text)
}

func TestPromotionFromPersistentTier(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	f.store.Set(ctx, "user:1", map[string]any{"name": "ada"}, time.Minute)

	cold := f.restart(Options{})
	assert.Equal(t, 0, cold.Size())

	v, ok := cold.Get(ctx, "user:1")
	require.True(t, ok)
	assert.Equal(t, 1, cold.Size())

	got, err := types.Decode[map[string]string](v)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"name": "ada"}, got)
}

func TestExpiredPersistedEntryIsDeleted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	f.store.Set(ctx, "k", "v", time.Second)

	cold := f.restart(Options{})
	f.clock.Add(time.Second)

	_, ok := cold.Get(ctx, "k")
	assert.False(t, ok)
	_, ok, _ = f.mem.GetItem(ctx, "@api_cache:k")
	assert.False(t, ok)
	assert.Equal(t, 0, cold.Size())
}

func TestExpiredMemoryEntryIsDropped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	f.store.Set(ctx, "k", "v", time.Second)
	require.Equal(t, 1, f.store.Size())

	f.clock.Add(2 * time.Second)
	_, ok := f.store.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, f.store.Size())
}

func TestExpiryInBothTiersCountsOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	f.store.Set(ctx, "k", "v", time.Second)

	f.clock.Add(time.Second)
	_, ok := f.store.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 1, f.metrics.expired)
	assert.Equal(t, 1, f.metrics.misses)
	assert.Equal(t, 0, f.metrics.hits)
}

func TestReadErrorIsAMiss(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	f.backend.failGet = true

	_, ok := f.store.Get(ctx, "k")
	assert.False(t, ok)
	require.NotNil(t, f.hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, f.hook.LastEntry().Level)
	assert.Contains(t, f.hook.LastEntry().Message, "backend unavailable")
}

func TestCorruptPersistedEntryIsAMiss(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	require.NoError(t, f.mem.SetItem(ctx, "@api_cache:k", "{not json"))

	_, ok := f.store.Get(ctx, "k")
	assert.False(t, ok)
	assert.Contains(t, f.hook.LastEntry().Message, "decode")
}

func TestWriteErrorKeepsMemory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	f.backend.failSet = true

	f.store.Set(ctx, "k", "v", time.Minute)

	v, ok := f.store.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
	assert.Contains(t, f.hook.LastEntry().Message, "backend unavailable")
}

func TestUnencodableValueStaysInMemory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	ch := make(chan int)

	f.store.Set(ctx, "k", ch, time.Minute)

	v, ok := f.store.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, ch, v)
	_, persisted, _ := f.mem.GetItem(ctx, "@api_cache:k")
	assert.False(t, persisted)
	assert.Contains(t, f.hook.LastEntry().Message, "encode")
}

func TestInvalidate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	f.store.Set(ctx, "k", "v", time.Hour)

	f.store.Invalidate(ctx, "k")

	_, ok := f.store.Get(ctx, "k")
	assert.False(t, ok)
	_, ok, _ = f.mem.GetItem(ctx, "@api_cache:k")
	assert.False(t, ok)
}

func TestInvalidateToleratesRemoveError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	f.store.Set(ctx, "k", "v", time.Hour)
	f.backend.failRemove = true

	f.store.Invalidate(ctx, "k")

	assert.Equal(t, 0, f.store.Size())
	assert.Equal(t, logrus.DebugLevel, f.hook.LastEntry().Level)
}

func TestInvalidatePattern(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	f.store.Set(ctx, "user:1", 1, time.Hour)
	f.store.Set(ctx, "user:2", 2, time.Hour)
	f.store.Set(ctx, "post:1", 3, time.Hour)

	f.store.InvalidatePattern(ctx, "user:")

	_, ok := f.store.Get(ctx, "user:1")
	assert.False(t, ok)
	_, ok = f.store.Get(ctx, "user:2")
	assert.False(t, ok)
	v, ok := f.store.Get(ctx, "post:1")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestInvalidatePatternSkipsPersistedOnlyKeys(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	f.store.Set(ctx, "user:1", 1, time.Hour)

	cold := f.restart(Options{})
	cold.InvalidatePattern(ctx, "user:")

	_, ok := cold.Get(ctx, "user:1")
	assert.True(t, ok, "memory-only scan must not reach persisted-only keys")
}

func TestInvalidatePatternScanPersisted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	f.store.Set(ctx, "user:1", 1, time.Hour)
	f.store.Set(ctx, "post:1", 1, time.Hour)
	require.NoError(t, f.mem.SetItem(ctx, "foreign:user:9", "x"))

	cold := f.restart(Options{ScanPersisted: true})
	cold.InvalidatePattern(ctx, "user:")

	_, ok := cold.Get(ctx, "user:1")
	assert.False(t, ok)
	_, ok = cold.Get(ctx, "post:1")
	assert.True(t, ok)
	_, ok, _ = f.mem.GetItem(ctx, "foreign:user:9")
	assert.True(t, ok)
}

func TestClearKeepsForeignKeys(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	f.store.Set(ctx, "a", 1, time.Hour)
	f.store.Set(ctx, "b", 2, time.Hour)
	require.NoError(t, f.mem.SetItem(ctx, "settings", "keep"))

	f.store.Clear(ctx)

	assert.Equal(t, 0, f.store.Size())
	keys, err := f.mem.GetAllKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"settings"}, keys)
}

func TestClearListErrorStillDropsMemory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	f.store.Set(ctx, "a", 1, time.Hour)
	f.backend.failList = true

	f.store.Clear(ctx)
	assert.Equal(t, 0, f.store.Size())
}

func TestSizeCountsMemoryOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{Shards: 4})
	for _, k := range []string{"a", "b", "c"} {
		f.store.Set(ctx, k, k, time.Hour)
	}
	assert.Equal(t, 3, f.store.Size())

	cold := f.restart(Options{Shards: 4})
	assert.Equal(t, 0, cold.Size())
}

func TestWriteBackPersistsOnClose(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{WriteBack: true, WriteBackLimit: 8})
	f.store.Set(ctx, "k", "v", time.Hour)
	f.store.Close()

	_, ok, err := f.mem.GetItem(ctx, "@api_cache:k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStorageErrorUnwraps(t *testing.T) {
	err := storageErr("get", "k", errBackend)
	assert.ErrorIs(t, err, errBackend)
	assert.Equal(t, errBackend, errors.Cause(err))
	assert.Nil(t, storageErr("get", "k", nil))
}
