package writepolicy

import (
	"context"
	"sync"

	"github.com/krisalay/api-cache/types"
	log "github.com/sirupsen/logrus"
)

// This file implements the "write-back" policy.

// DefaultWriteBackLimit is used when NewWriteBackPolicy gets no limit.
const DefaultWriteBackLimit = 1024

// writeReq represents one pending write operation that needs to be sent to the persistent tier.
type writeReq struct {
	ctx context.Context
	ent *types.CacheEntry
}

/*
WriteBackPolicy manages asynchronous writes to the persistent tier.

Pending writes are kept per key, so a key rewritten before the worker gets to
it is persisted once with its latest entry.
*/
type WriteBackPolicy struct {
	write Writer
	log   log.FieldLogger

	// limit is the most distinct keys allowed to wait at once.
	limit int

	mu      sync.Mutex
	pending map[string]writeReq
	closed  bool

	// wake has capacity one; a send only has to tell the worker "there is work".
	wake chan struct{}
	done chan struct{}

	// wg is used to wait for the worker to finish during shutdown.
	wg sync.WaitGroup
}

// NewWriteBackPolicy creates a new write-back policy and starts its worker.
func NewWriteBackPolicy(write Writer, limit int, logger log.FieldLogger) *WriteBackPolicy {
	if limit <= 0 {
		limit = DefaultWriteBackLimit
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	w := &WriteBackPolicy{
		write:   write,
		log:     logger,
		limit:   limit,
		pending: make(map[string]writeReq),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	w.wg.Add(1)
	go w.worker()

	return w
}

// OnWrite queues the entry. If the queue is full the write is dropped: memory
// stays authoritative for this process and blocking would defeat write-back.
func (w *WriteBackPolicy) OnWrite(ctx context.Context, key string, ent *types.CacheEntry) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		w.log.Debugf("write-back closed, not persisting %s", key)
		return
	}
	if _, queued := w.pending[key]; !queued && len(w.pending) >= w.limit {
		w.mu.Unlock()
		w.log.Warnf("write-back queue full (%d), dropping write of %s", w.limit, key)
		return
	}
	w.pending[key] = writeReq{ctx: context.WithoutCancel(ctx), ent: ent}
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *WriteBackPolicy) Forget(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.pending, key)
}

func (w *WriteBackPolicy) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = make(map[string]writeReq)
}

// Pending reports how many keys are waiting to be persisted.
func (w *WriteBackPolicy) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

func (w *WriteBackPolicy) worker() {
	defer w.wg.Done()

	for {
		select {
		case <-w.wake:
			w.flush()
		case <-w.done:
			w.flush()
			return
		}
	}
}

func (w *WriteBackPolicy) flush() {
	w.mu.Lock()
	batch := w.pending
	w.pending = make(map[string]writeReq)
	w.mu.Unlock()

	for key, req := range batch {
		w.write(req.ctx, key, req.ent)
	}
}

/*
Close shuts down the write-back policy gracefully.
1. Stop accepting writes
2. Wait for the worker to persist whatever is still queued
*/
func (w *WriteBackPolicy) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()

	close(w.done)
	w.wg.Wait()
}
