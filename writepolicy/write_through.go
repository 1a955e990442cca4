package writepolicy

import (
	"context"

	"github.com/krisalay/api-cache/types"
)

// WriteThroughPolicy persists every write before returning.
type WriteThroughPolicy struct {
	write Writer
}

func NewWriteThroughPolicy(write Writer) *WriteThroughPolicy {
	return &WriteThroughPolicy{write: write}
}

func (w *WriteThroughPolicy) OnWrite(ctx context.Context, key string, ent *types.CacheEntry) {
	w.write(ctx, key, ent)
}

// Nothing is ever pending, so these are no-ops.
func (w *WriteThroughPolicy) Forget(string) {}
func (w *WriteThroughPolicy) Reset()        {}
func (w *WriteThroughPolicy) Close()        {}
