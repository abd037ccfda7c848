// Package fanout runs one task per language on a bounded worker pool and
// waits for all of them.
package fanout

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"narration-gateway/pkg/logging/logging"
)

// DefaultLimit caps concurrent upstream calls per request. Larger limits
// passed to Run are clamped to it.
const DefaultLimit = 5

// Run calls fn once per item with at most min(limit, DefaultLimit) calls in
// flight and returns when every call has finished. A panicking call is logged and counted as
// finished. fn must record its own result.
func Run(ctx context.Context, items []string, limit int, fn func(ctx context.Context, item string)) error {
	if len(items) == 0 {
		return nil
	}
	if limit <= 0 || limit > DefaultLimit {
		limit = DefaultLimit
	}
	size := min(len(items), limit)

	logger := logging.FromContext(ctx)
	pool, err := ants.NewPool(size, ants.WithPanicHandler(func(p any) {
		logger.Error("fanout task panicked", zap.Any("panic", p))
	}))
	if err != nil {
		return fmt.Errorf("fanout: create pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for _, item := range items {
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			fn(ctx, item)
		}); err != nil {
			wg.Done()
			logger.Warn("fanout submit failed", zap.String("item", item), zap.Error(err))
		}
	}
	wg.Wait()
	return nil
}
