package main

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	cache "github.com/krisalay/api-cache"
	"github.com/krisalay/api-cache/types"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// ================= FAKE API =================

type user struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// fakeAPI stands in for a slow remote endpoint and counts its calls.
type fakeAPI struct {
	latency time.Duration
	calls   atomic.Int32
	fail    atomic.Bool
}

func (a *fakeAPI) user(id int) func(context.Context) (user, error) {
	return func(ctx context.Context) (user, error) {
		n := a.calls.Add(1)
		fmt.Printf("API    → GET /users/%d (call #%d)\n", id, n)
		select {
		case <-time.After(a.latency):
		case <-ctx.Done():
			return user{}, ctx.Err()
		}
		if a.fail.Load() {
			return user{}, errors.New("api: 503 service unavailable")
		}
		return user{ID: id, Name: fmt.Sprintf("user-%d-v%d", id, n)}, nil
	}
}

func (a *fakeAPI) untyped(id int) types.FetchFunc {
	fn := a.user(id)
	return func(ctx context.Context) (any, error) { return fn(ctx) }
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Walk through misses, hits, expiry, coalescing and revalidation",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := prometheus.NewRegistry()
		r, err := Init(cmd, reg)
		if err != nil {
			return err
		}
		defer Release(r)

		ctx := cmd.Context()
		c := r.Cache
		api := &fakeAPI{latency: 200 * time.Millisecond}
		key := func(id int) string { return fmt.Sprintf("demo:user:%d", id) }
		short := types.FetchOptions{TTL: time.Second}

		fmt.Println("\n==================== SYSTEM BOOT ====================")
		fmt.Println("BACKEND     :", r.Config.Backend, r.Config.DataPath)
		fmt.Println("KEY PREFIX  :", r.Config.KeyPrefix)
		fmt.Println("WRITE MODE  :", r.Config.WriteMode)
		fmt.Println("DEFAULT TTL :", r.Config.DefaultTTL)

		// ====================================================
		fmt.Println("\n==================== 1) CACHE MISS ====================")
		u, err := cache.Fetch(ctx, c, key(1), api.user(1), types.FetchOptions{})
		if err != nil {
			return err
		}
		fmt.Printf("CACHE  → FETCH %s = %+v\n", key(1), u)

		// ====================================================
		fmt.Println("\n==================== 2) CACHE HIT ====================")
		u, _ = cache.Fetch(ctx, c, key(1), api.user(1), types.FetchOptions{})
		fmt.Printf("CACHE  → FETCH %s = %+v (api calls so far: %d)\n", key(1), u, api.calls.Load())

		// ====================================================
		fmt.Println("\n==================== 3) TTL EXPIRATION ====================")
		c.Set(ctx, key(2), user{ID: 2, Name: "temp"}, time.Second)
		fmt.Printf("CACHE  → SET %s (TTL = 1s)\n", key(2))
		time.Sleep(1100 * time.Millisecond)
		_, ok := c.Get(ctx, key(2))
		fmt.Printf("CACHE  → GET %s after TTL: found=%v\n", key(2), ok)

		// ====================================================
		fmt.Println("\n==================== 4) COALESCING ====================")
		wg := sync.WaitGroup{}
		before := api.calls.Load()
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				v, _ := cache.Fetch(ctx, c, key(3), api.user(3), short)
				fmt.Printf("GOROUTINE-%d → FETCH %s = %+v\n", id, key(3), v)
			}(i)
		}
		wg.Wait()
		fmt.Printf("API    → %d call(s) for 5 concurrent fetches\n", api.calls.Load()-before)

		// ====================================================
		fmt.Println("\n==================== 5) STALE-WHILE-REVALIDATE ====================")
		swr := types.FetchOptions{TTL: time.Minute, StaleWhileRevalidate: true}
		v, _ := c.FetchWithCache(ctx, key(3), api.untyped(3), swr)
		fmt.Printf("CACHE  → served %v immediately, refreshing in background\n", v)
		time.Sleep(2 * api.latency)
		u, _ = cache.GetAs[user](ctx, c, key(3))
		fmt.Printf("CACHE  → after refresh %s = %+v\n", key(3), u)

		api.fail.Store(true)
		c.FetchWithCache(ctx, key(3), api.untyped(3), swr)
		time.Sleep(2 * api.latency)
		u, _ = cache.GetAs[user](ctx, c, key(3))
		fmt.Printf("CACHE  → failed refresh keeps %s = %+v\n", key(3), u)
		api.fail.Store(false)

		// ====================================================
		fmt.Println("\n==================== 6) PREFETCH ====================")
		c.Prefetch(ctx, key(4), api.untyped(4), types.FetchOptions{})
		u, ok = cache.GetAs[user](ctx, c, key(4))
		fmt.Printf("CACHE  → GET %s after prefetch = %+v (found=%v)\n", key(4), u, ok)

		// ====================================================
		fmt.Println("\n==================== 7) INVALIDATE ====================")
		fmt.Println("CACHE  → size before:", c.Size())
		c.Invalidate(ctx, key(1))
		c.InvalidatePattern(ctx, "demo:")
		fmt.Println("CACHE  → size after :", c.Size())

		// ====================================================
		return printMetrics(reg)
	},
}

func printMetrics(reg prometheus.Gatherer) error {
	families, err := reg.Gather()
	if err != nil {
		return errors.Wrap(err, "gather metrics")
	}
	sort.Slice(families, func(i, j int) bool { return families[i].GetName() < families[j].GetName() })

	fmt.Println("\n==================== METRICS ====================")
	for _, f := range families {
		for _, m := range f.GetMetric() {
			fmt.Printf("%-34s: %.0f\n", f.GetName(), m.GetCounter().GetValue())
		}
	}
	return nil
}

func init() {
	RootCmd.AddCommand(demoCmd)
}
