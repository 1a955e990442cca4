// Package inflight makes concurrent fetches of one key share a single call.
package inflight

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

/*
Tracker is a per-key single-flight primitive.

The underlying call is owned by singleflight; on top of it the tracker counts
the callers waiting on each key. The count is a reference count: it goes up
when a caller joins and down when that caller gets its result or gives up,
and the key is torn down when it reaches zero.
*/
type Tracker struct {
	group singleflight.Group

	mu      sync.Mutex
	waiters map[string]int
}

func NewTracker() *Tracker {
	return &Tracker{waiters: make(map[string]int)}
}

/*
Do runs fn for key unless a call for key is already running, in which case it
waits for that call instead. Every caller sharing a call sees the same value
and the same error; shared reports whether the result went to more than one
caller.

fn gets a context detached from ctx's cancellation: other callers may be
relying on it. If ctx ends first, Do returns ctx.Err() and the call keeps
going for everyone else.
*/
func (t *Tracker) Do(ctx context.Context, key string, fn func(context.Context) (any, error)) (v any, err error, shared bool) {
	detached := context.WithoutCancel(ctx)

	// Registering under mu means a waiter count always covers callers that
	// are attached to the call, never ones about to attach.
	t.mu.Lock()
	t.waiters[key]++
	ch := t.group.DoChan(key, func() (any, error) {
		return fn(detached)
	})
	t.mu.Unlock()
	defer t.leave(key)

	select {
	case res := <-ch:
		return res.Val, res.Err, res.Shared
	case <-ctx.Done():
		return nil, ctx.Err(), false
	}
}

// Pending reports whether anyone is waiting on key.
func (t *Tracker) Pending(key string) bool {
	return t.Waiters(key) > 0
}

// Waiters is the number of callers currently waiting on key.
func (t *Tracker) Waiters(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.waiters[key]
}

// Len is the number of keys with at least one waiter.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.waiters)
}

// Forget makes the next Do for key start a new call even if one is running.
// Callers already waiting keep waiting on the old one.
func (t *Tracker) Forget(key string) {
	t.group.Forget(key)
}

func (t *Tracker) leave(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.waiters[key] <= 1 {
		delete(t.waiters, key)
		return
	}
	t.waiters[key]--
}
