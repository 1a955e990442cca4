package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	cache "github.com/krisalay/api-cache"
	"github.com/krisalay/api-cache/storage"
	"github.com/krisalay/api-cache/types"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	shards      int
	preloadKeys int
	goroutines  int
	opsPerG     int
	herdKeys    int
	latency     time.Duration
)

var benchCmd = &cobra.Command{
	Use:   "benchmark",
	Short: "Load the cache with concurrent hits and a thundering herd",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkFlags(); err != nil {
			return err
		}
		bench(cmd.Context())
		return nil
	},
}

func checkFlags() error {
	if shards < 1 || preloadKeys < 1 || goroutines < 1 {
		return errors.Errorf("shards, keys and goroutines must be positive (got %d, %d, %d)", shards, preloadKeys, goroutines)
	}
	if opsPerG < 0 || herdKeys < 0 || latency < 0 {
		return errors.New("ops, herd and latency must not be negative")
	}
	return nil
}

func init() {
	benchCmd.Flags().IntVar(&shards, "shards", 8, "memory shards")
	benchCmd.Flags().IntVar(&preloadKeys, "keys", 100000, "keys preloaded before the hit run")
	benchCmd.Flags().IntVar(&goroutines, "goroutines", 200, "concurrent callers")
	benchCmd.Flags().IntVar(&opsPerG, "ops", 5000, "fetches per caller")
	benchCmd.Flags().IntVar(&herdKeys, "herd", 100, "cold keys hit by every caller at once")
	benchCmd.Flags().DurationVar(&latency, "latency", 5*time.Millisecond, "simulated api latency")
}

func main() {
	if err := benchCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// ================= BENCHMARK =================

func bench(ctx context.Context) {
	logger := log.New()
	logger.SetLevel(log.WarnLevel)

	fmt.Println("\n================ CACHE LOAD BENCHMARK =================")
	fmt.Println("CONFIG")
	fmt.Println("---------------------------------")
	fmt.Println("Shards       :", shards)
	fmt.Println("Preload Keys :", preloadKeys)
	fmt.Println("Goroutines   :", goroutines)
	fmt.Println("Ops/Goroutine:", opsPerG)
	fmt.Println("Herd Keys    :", herdKeys)
	fmt.Println("API Latency  :", latency)
	fmt.Println("---------------------------------")

	c := cache.New(storage.NewMemory(), cache.WithShards(shards), cache.WithLogger(logger))
	defer c.Close()

	var apiCalls atomic.Int64
	api := func(v int) types.FetchFunc {
		return func(context.Context) (any, error) {
			apiCalls.Add(1)
			time.Sleep(latency)
			return v, nil
		}
	}

	// ---------------- Preload Cache ----------------
	fmt.Println("Preloading cache...")
	for i := 0; i < preloadKeys; i++ {
		c.Set(ctx, fmt.Sprintf("key-%d", i), i, time.Hour)
	}
	fmt.Println("Preload complete.")

	// ---------------- Hit Run ----------------
	fmt.Println("Running hit benchmark...")
	start := time.Now()
	run(goroutines, func(int) {
		for j := 0; j < opsPerG; j++ {
			i := j % preloadKeys
			c.FetchWithCache(ctx, fmt.Sprintf("key-%d", i), api(i), types.FetchOptions{})
		}
	})
	hitTime := time.Since(start)
	hitOps := goroutines * opsPerG

	// ---------------- Herd Run ----------------
	fmt.Println("Running thundering herd...")
	before := apiCalls.Load()
	start = time.Now()
	run(goroutines, func(int) {
		for k := 0; k < herdKeys; k++ {
			c.FetchWithCache(ctx, fmt.Sprintf("cold-%d", k), api(k), types.FetchOptions{})
		}
	})
	herdTime := time.Since(start)
	herdCalls := apiCalls.Load() - before

	fmt.Println("\n================ RESULTS =================")
	fmt.Printf("Hit Operations   : %d\n", hitOps)
	fmt.Printf("Hit Time         : %v\n", hitTime)
	fmt.Printf("Hit Throughput   : %.2f ops/sec\n", float64(hitOps)/hitTime.Seconds())
	fmt.Printf("Herd Fetches     : %d\n", goroutines*herdKeys)
	fmt.Printf("Herd API Calls   : %d (ideal %d)\n", herdCalls, herdKeys)
	fmt.Printf("Herd Time        : %v\n", herdTime)
	fmt.Printf("Memory Entries   : %d\n", c.Size())
	fmt.Println("=========================================")
}

func run(goroutines int, work func(id int)) {
	wg := sync.WaitGroup{}
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()
			work(id)
		}(i)
	}
	wg.Wait()
}
