// Package queue throttles fetches before they reach the network: a cap on
// concurrent requests, a per-request timeout, an optional rate limit and
// optional retries.
package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go"
	"github.com/krisalay/api-cache/types"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

var (
	ErrTimeout     = errors.New("request timed out")
	ErrQueueClosed = errors.New("request queue closed")
)

const (
	DefaultConcurrency = 4
	DefaultTimeout     = 30 * time.Second
	DefaultRetryDelay  = 200 * time.Millisecond
)

type Options struct {
	// Concurrency caps requests running at once.
	Concurrency int

	// Timeout bounds one attempt. Zero means DefaultTimeout, negative means none.
	Timeout time.Duration

	// Rate is requests per second; zero disables rate limiting.
	Rate  float64
	Burst int

	// Retries is how many times a failed attempt is repeated.
	Retries    uint
	RetryDelay time.Duration
}

type Stats struct {
	Active int
	Queued int
}

/*
Queue runs fetch functions under its limits.

A timed-out attempt returns ErrTimeout right away and frees its slot; the
fetch itself keeps running until it notices its cancelled context, and
whatever it returns then is dropped.
*/
type Queue struct {
	opts    Options
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	log     log.FieldLogger

	active atomic.Int64
	queued atomic.Int64

	mu     sync.RWMutex
	closed bool
}

func New(opts Options, logger log.FieldLogger) *Queue {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	q := &Queue{
		opts: opts,
		sem:  semaphore.NewWeighted(int64(opts.Concurrency)),
		log:  logger,
	}
	if opts.Rate > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		q.limiter = rate.NewLimiter(rate.Limit(opts.Rate), burst)
	}
	return q
}

// Wrap returns fn routed through the queue, ready to hand to the cache.
func (q *Queue) Wrap(fn types.FetchFunc) types.FetchFunc {
	return func(ctx context.Context) (any, error) {
		return q.Do(ctx, fn)
	}
}

// Do waits for a slot and runs fn, retrying failed attempts as configured.
func (q *Queue) Do(ctx context.Context, fn types.FetchFunc) (any, error) {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return nil, ErrQueueClosed
	}

	q.queued.Add(1)
	err := q.sem.Acquire(ctx, 1)
	q.queued.Add(-1)
	if err != nil {
		return nil, err
	}
	defer q.sem.Release(1)

	q.active.Add(1)
	defer q.active.Add(-1)

	var v any
	err = retry.Do(
		func() error {
			var err error
			v, err = q.attempt(ctx, fn)
			return err
		},
		retry.Attempts(q.opts.Retries+1),
		retry.Delay(q.opts.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(error) bool { return ctx.Err() == nil }),
		retry.OnRetry(func(n uint, err error) {
			q.log.Debugf("request attempt %d failed, retrying: %v", n+1, err)
		}),
	)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (q *Queue) attempt(ctx context.Context, fn types.FetchFunc) (any, error) {
	if q.limiter != nil {
		if err := q.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if q.opts.Timeout < 0 {
		return fn(ctx)
	}

	actx, cancel := context.WithTimeout(ctx, q.opts.Timeout)
	defer cancel()

	type result struct {
		v   any
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(actx)
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-actx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrapf(ErrTimeout, "after %s", q.opts.Timeout)
	}
}

func (q *Queue) Stats() Stats {
	return Stats{
		Active: int(q.active.Load()),
		Queued: int(q.queued.Load()),
	}
}

// Close makes later Do calls fail with ErrQueueClosed. Running requests finish.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}
