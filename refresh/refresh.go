// This file defines the idea of a "refresh hook".
// This hook allows the cache to do something extra WHEN data is served from the cache.
// The goal of refresh is: "Keep data fresh without slowing down reads"

package refresh

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Task refreshes one key. Its error is only ever logged.
type Task func(ctx context.Context) error

/*
Hook is the interface for refresh behavior.
It is called on a cache hit served with stale-while-revalidate.

OnRead MUST be fast and non blocking because it runs on the hot read path.
*/
type Hook interface {
	OnRead(ctx context.Context, key string, task Task)
}

/*
Background runs every task on its own goroutine, detached from the reader's
context, and logs failures. Close stops accepting tasks and waits for the
running ones.
*/
type Background struct {
	log log.FieldLogger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewBackground(logger log.FieldLogger) *Background {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Background{log: logger}
}

func (b *Background) OnRead(ctx context.Context, key string, task Task) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()
		if err := task(context.WithoutCancel(ctx)); err != nil {
			b.log.WithField("key", key).Warnf("background revalidation failed, keeping stale entry: %+v", err)
		}
	}()
}

// Wait blocks until every started task has returned.
func (b *Background) Wait() {
	b.wg.Wait()
}

func (b *Background) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.wg.Wait()
}
