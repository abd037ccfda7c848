package logging

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestNewHonoursLevel(t *testing.T) {
	logger, err := New(Options{Env: "production", Level: "warn"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if logger.Core().Enabled(zap.InfoLevel) {
		t.Fatalf("info should be disabled at warn level")
	}
	if !logger.Core().Enabled(zap.ErrorLevel) {
		t.Fatalf("error should be enabled at warn level")
	}
}

func TestContextRoundTrip(t *testing.T) {
	base := zaptest.NewLogger(t)
	ctx := WithLogger(context.Background(), base)
	if FromContext(ctx) != base {
		t.Fatalf("expected attached logger back")
	}
}

func TestOrPrefersContextLogger(t *testing.T) {
	fallback := zaptest.NewLogger(t)
	if Or(context.Background(), fallback) != fallback {
		t.Fatalf("expected fallback without context logger")
	}

	attached := zaptest.NewLogger(t)
	ctx := WithLogger(context.Background(), attached)
	if Or(ctx, fallback) != attached {
		t.Fatalf("expected context logger to win")
	}
}
