package engine

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/krisalay/api-cache/expiration"
	"github.com/krisalay/api-cache/types"
	log "github.com/sirupsen/logrus"
)

/*
CacheEngine is the "brain" of the cache system.
It is responsible for the "behavior" of the cache, NOT storage.
This acts as the policy layer.

It decides:
- What time it is (a swappable clock, so tests can stand on an expiry boundary)
- Which ttl applies when the caller gives none
- When data is expired
- How metrics are recorded and where failures are logged

It does NOT:
- Store data
- Talk to the persistent tier
- Coalesce requests
*/
type CacheEngine struct {

	// Clock is the source of "now". Production uses the wall clock.
	Clock clock.Clock

	// DefaultTTL is used whenever a caller passes ttl <= 0.
	DefaultTTL time.Duration

	// Expiration decides whether an entry is still servable.
	Expiration expiration.Strategy

	// Metrics is how we keep track of what the cache is doing.
	Metrics types.Metrics

	// Log receives every swallowed failure.
	Log log.FieldLogger
}

/*
NewCacheEngine creates a CacheEngine. Any nil argument gets a working default,
so the rest of the code never has to nil-check.
*/
func NewCacheEngine(
	clk clock.Clock,
	defaultTTL time.Duration,
	exp expiration.Strategy,
	metrics types.Metrics,
	logger log.FieldLogger,
) *CacheEngine {
	if clk == nil {
		clk = clock.New()
	}
	if defaultTTL <= 0 {
		defaultTTL = types.DefaultTTL
	}
	if exp == nil {
		exp = expiration.Absolute{}
	}
	if metrics == nil {
		metrics = types.NoopMetrics{}
	}
	if logger == nil {
		logger = log.StandardLogger().WithField("component", "apicache")
	}

	return &CacheEngine{
		Clock:      clk,
		DefaultTTL: defaultTTL,
		Expiration: exp,
		Metrics:    metrics,
		Log:        logger,
	}
}

// Now returns the current instant in epoch milliseconds.
func (e *CacheEngine) Now() int64 {
	return e.Clock.Now().UnixMilli()
}

// TTL resolves a caller ttl against the default.
func (e *CacheEngine) TTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return e.DefaultTTL
	}
	return ttl
}

// NewEntry wraps data in an entry stamped with the current time.
func (e *CacheEngine) NewEntry(data any, ttl time.Duration) *types.CacheEntry {
	ent := &types.CacheEntry{Data: data}
	e.Expiration.OnWrite(ent, e.Now(), e.TTL(ttl))
	return ent
}

// IsExpired checks whether a cache entry is expired right now.
func (e *CacheEngine) IsExpired(ent *types.CacheEntry) bool {
	return e.Expiration.IsExpired(ent, e.Now())
}
