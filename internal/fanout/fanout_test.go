package fanout

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"narration-gateway/pkg/logging/logging"
)

func TestRunBoundsConcurrency(t *testing.T) {
	t.Parallel()

	items := []string{"en-US", "zh-CN", "yue-HK", "zh-TW", "ja-JP", "ko-KR", "fr-FR", "de-DE"}

	var inFlight, peak atomic.Int32
	var mu sync.Mutex
	seen := map[string]bool{}

	err := Run(context.Background(), items, 3, func(_ context.Context, item string) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)

		mu.Lock()
		seen[item] = true
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(seen) != len(items) {
		t.Fatalf("expected %d items processed, got %d", len(items), len(seen))
	}
	if peak.Load() > 3 {
		t.Fatalf("peak concurrency %d exceeds limit", peak.Load())
	}
}

func TestRunClampsLimit(t *testing.T) {
	t.Parallel()

	items := []string{"en-US", "zh-CN", "yue-HK", "zh-TW", "ja-JP", "ko-KR", "fr-FR", "de-DE"}

	var inFlight, peak, done atomic.Int32
	err := Run(context.Background(), items, len(items), func(_ context.Context, _ string) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		done.Add(1)
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if done.Load() != int32(len(items)) {
		t.Fatalf("expected %d items processed, got %d", len(items), done.Load())
	}
	if peak.Load() > DefaultLimit {
		t.Fatalf("peak concurrency %d exceeds %d", peak.Load(), DefaultLimit)
	}
}

func TestRunSurvivesPanic(t *testing.T) {
	t.Parallel()

	ctx := logging.WithLogger(context.Background(), zaptest.NewLogger(t))

	var done atomic.Int32
	err := Run(ctx, []string{"a", "b", "c"}, 0, func(_ context.Context, item string) {
		if item == "b" {
			panic("boom")
		}
		done.Add(1)
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if done.Load() != 2 {
		t.Fatalf("expected 2 completed tasks, got %d", done.Load())
	}
}

func TestRunEmpty(t *testing.T) {
	called := false
	if err := Run(context.Background(), nil, 5, func(context.Context, string) { called = true }); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if called {
		t.Fatalf("fn should not run for no items")
	}
}
