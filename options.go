package cache

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/krisalay/api-cache/queue"
	"github.com/krisalay/api-cache/refresh"
	"github.com/krisalay/api-cache/store"
	"github.com/krisalay/api-cache/types"
	log "github.com/sirupsen/logrus"
)

type options struct {
	clock      clock.Clock
	defaultTTL time.Duration
	metrics    types.Metrics
	logger     log.FieldLogger
	store      store.Options
	refresh    refresh.Hook
	queue      *queue.Queue
}

// Option configures a Cache built by New.
type Option func(*options)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithDefaultTTL changes the ttl used when a caller passes none (5 minutes otherwise).
func WithDefaultTTL(ttl time.Duration) Option {
	return func(o *options) { o.defaultTTL = ttl }
}

func WithMetrics(m types.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func WithLogger(l log.FieldLogger) Option {
	return func(o *options) { o.logger = l }
}

// WithPrefix namespaces the keys written to the backend (default "@api_cache:").
func WithPrefix(prefix string) Option {
	return func(o *options) { o.store.Prefix = prefix }
}

func WithShards(n int) Option {
	return func(o *options) { o.store.Shards = n }
}

// WithWriteBack persists entries from a background worker holding at most
// limit pending keys, instead of persisting inside every write.
func WithWriteBack(limit int) Option {
	return func(o *options) {
		o.store.WriteBack = true
		o.store.WriteBackLimit = limit
	}
}

// WithScanPersisted makes InvalidatePattern also match keys that exist only
// in the backend.
func WithScanPersisted() Option {
	return func(o *options) { o.store.ScanPersisted = true }
}

// WithRefreshHook replaces the goroutine-per-refresh runner used for
// stale-while-revalidate.
func WithRefreshHook(h refresh.Hook) Option {
	return func(o *options) { o.refresh = h }
}

// WithQueue routes every fetch the cache runs, misses and background
// refreshes alike, through q. The queue stays owned by the caller.
func WithQueue(q *queue.Queue) Option {
	return func(o *options) { o.queue = q }
}
