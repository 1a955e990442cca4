package cache

import (
	"context"
	"time"

	"github.com/krisalay/api-cache/api"
	"github.com/krisalay/api-cache/engine"
	"github.com/krisalay/api-cache/inflight"
	"github.com/krisalay/api-cache/queue"
	"github.com/krisalay/api-cache/refresh"
	"github.com/krisalay/api-cache/storage"
	"github.com/krisalay/api-cache/store"
	"github.com/krisalay/api-cache/types"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

/*
Cache is the read-through cache.
This struct is the orchestrator that connects:
- the two-tier store (memory over a persistent backend)
- the in-flight tracker that coalesces concurrent fetches of a key
- the refresh hook that runs stale-while-revalidate in the background
- the engine (clock, default ttl, metrics, logging)

A Cache is safe for concurrent use. Build as many as needed; they share nothing
unless they share a backend and prefix.
*/
type Cache struct {
	engine *engine.CacheEngine
	store  *store.Store

	// flights coalesces miss-path fetches. A key pending here makes every
	// new caller wait for that fetch.
	flights *inflight.Tracker

	// revalidations coalesces background refreshes separately, so a refresh
	// never makes readers wait.
	revalidations *inflight.Tracker

	refresh refresh.Hook
	ownBg   *refresh.Background

	queue *queue.Queue
}

// New builds a Cache over backend. The backend stays owned by the caller.
func New(backend storage.Backend, opts ...Option) *Cache {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.StandardLogger().WithField("component", "apicache")
	}

	e := engine.NewCacheEngine(o.clock, o.defaultTTL, nil, o.metrics, o.logger)
	c := &Cache{
		engine:        e,
		store:         store.New(e, backend, o.store),
		flights:       inflight.NewTracker(),
		revalidations: inflight.NewTracker(),
		refresh:       o.refresh,
		queue:         o.queue,
	}
	if c.refresh == nil {
		c.ownBg = refresh.NewBackground(e.Log)
		c.refresh = c.ownBg
	}
	return c
}

/*
FetchWithCache returns the data for key, fetching it with fn if necessary.

 1. If a fetch for key is in flight, wait for it and return its outcome.
 2. On a cache hit, return the cached data. With StaleWhileRevalidate set, fn
    is also started in the background; on success it overwrites the entry,
    on failure the error is logged and the served data stands.
 3. On a miss, run fn once for all concurrent callers. Success is stored with
    opts.TTL and returned to everyone; failure is returned to everyone and
    nothing is stored.

The only errors returned come from fn (or from ctx ending while waiting).
Storage trouble is never an error here: it just behaves like a miss.
*/
func (c *Cache) FetchWithCache(ctx context.Context, key string, fn types.FetchFunc, opts types.FetchOptions) (any, error) {
	if c.flights.Pending(key) {
		c.engine.Metrics.Coalesced()
		return c.fetch(ctx, key, fn, opts)
	}

	if v, ok := c.store.Get(ctx, key); ok {
		if opts.StaleWhileRevalidate {
			c.revalidate(ctx, key, fn, opts)
		}
		return v, nil
	}

	return c.fetch(ctx, key, fn, opts)
}

// fetch is the miss path. Memory is checked again once inside the flight:
// a caller that missed just before another caller's fetch settled would
// otherwise fetch a second time.
func (c *Cache) fetch(ctx context.Context, key string, fn types.FetchFunc, opts types.FetchOptions) (any, error) {
	v, err, _ := c.flights.Do(ctx, key, func(ctx context.Context) (any, error) {
		if v, ok := c.store.Resident(key); ok {
			return v, nil
		}
		return c.load(ctx, key, fn, opts)
	})
	return v, err
}

// load runs fn, through the queue when there is one, and stores its result.
func (c *Cache) load(ctx context.Context, key string, fn types.FetchFunc, opts types.FetchOptions) (any, error) {
	if c.queue != nil {
		fn = c.queue.Wrap(fn)
	}
	v, err := fn(ctx)
	if err != nil {
		return nil, err
	}
	c.store.Set(ctx, key, v, opts.TTL)
	return v, nil
}

func (c *Cache) revalidate(ctx context.Context, key string, fn types.FetchFunc, opts types.FetchOptions) {
	c.engine.Metrics.Revalidate()
	c.refresh.OnRead(ctx, key, func(ctx context.Context) error {
		_, err, _ := c.revalidations.Do(ctx, key, func(ctx context.Context) (any, error) {
			return c.load(ctx, key, fn, opts)
		})
		if err != nil {
			c.engine.Metrics.RevalidateError()
			return errors.Wrapf(err, "revalidate %s", key)
		}
		return nil
	})
}

/*
Prefetch warms key: if it has no valid entry, fn is run through the same
coalesced miss path as FetchWithCache and the result is stored, not returned.

Prefetch is best-effort. A failing fn is logged and swallowed. It blocks until
the fetch settles; run it on its own goroutine to fire and forget.
*/
func (c *Cache) Prefetch(ctx context.Context, key string, fn types.FetchFunc, opts types.FetchOptions) {
	if _, ok := c.store.Get(ctx, key); ok {
		return
	}
	if _, err := c.fetch(ctx, key, fn, opts); err != nil {
		c.engine.Metrics.RevalidateError()
		c.engine.Log.WithField("key", key).Warnf("prefetch failed: %+v", err)
	}
}

// Get returns the cached data for key without fetching.
// Data promoted from the backend is raw JSON; use GetAs to decode it.
func (c *Cache) Get(ctx context.Context, key string) (any, bool) {
	return c.store.Get(ctx, key)
}

// Set stores data for ttl (the default ttl when ttl <= 0).
func (c *Cache) Set(ctx context.Context, key string, data any, ttl time.Duration) {
	c.store.Set(ctx, key, data, ttl)
}

// Lookup returns the entry for key with its timestamps.
func (c *Cache) Lookup(ctx context.Context, key string) (*types.CacheEntry, bool) {
	return c.store.Lookup(ctx, key)
}

func (c *Cache) Invalidate(ctx context.Context, key string) {
	c.store.Invalidate(ctx, key)
}

// InvalidatePattern invalidates every memory-resident key containing substr
// (and persisted keys too when built WithScanPersisted).
func (c *Cache) InvalidatePattern(ctx context.Context, substr string) {
	c.store.InvalidatePattern(ctx, substr)
}

func (c *Cache) Clear(ctx context.Context) {
	c.store.Clear(ctx)
}

// Size counts memory-resident entries.
func (c *Cache) Size() int {
	return c.store.Size()
}

// InFlight is the number of callers waiting on a miss-path fetch of key.
func (c *Cache) InFlight(key string) int {
	return c.flights.Waiters(key)
}

/*
Close gracefully shuts down the cache: running background revalidations are
waited for, then queued write-back writes are flushed. The backend is not
closed.
*/
func (c *Cache) Close() {
	if c.ownBg != nil {
		c.ownBg.Close()
	}
	c.store.Close()
}

var _ api.Cache = (*Cache)(nil)
