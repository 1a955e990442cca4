package cache

import (
	"context"

	"github.com/krisalay/api-cache/types"
)

/*
Fetch is FetchWithCache with a typed fetch function and result.

If a cached value can't be decoded into T (say a persisted entry written by an
older shape of T) the entry is dropped and fn is run instead; the caller never
sees the decoding problem.
*/
func Fetch[T any](ctx context.Context, c *Cache, key string, fn func(context.Context) (T, error), opts types.FetchOptions) (T, error) {
	var zero T
	untyped := func(ctx context.Context) (any, error) { return fn(ctx) }

	v, err := c.FetchWithCache(ctx, key, untyped, opts)
	if err != nil {
		return zero, err
	}
	out, err := types.Decode[T](v)
	if err == nil {
		return out, nil
	}

	c.engine.Metrics.StorageError()
	c.engine.Log.WithField("key", key).Warnf("cached value does not decode, refetching: %v", err)
	c.Invalidate(ctx, key)

	v, err = c.fetch(ctx, key, untyped, opts)
	if err != nil {
		return zero, err
	}
	return types.Decode[T](v)
}

// GetAs is Get decoding the data into T. A value that doesn't decode is a miss.
func GetAs[T any](ctx context.Context, c *Cache, key string) (T, bool) {
	var zero T
	v, ok := c.Get(ctx, key)
	if !ok {
		return zero, false
	}
	out, err := types.Decode[T](v)
	if err != nil {
		c.engine.Log.WithField("key", key).Debugf("cached value does not decode: %v", err)
		return zero, false
	}
	return out, true
}
