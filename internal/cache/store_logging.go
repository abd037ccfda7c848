package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"narration-gateway/internal/narration"
	"narration-gateway/pkg/logging/logging"
)

// LoggingStore wraps a Store with structured logging.
type LoggingStore struct {
	inner  Store
	logger *zap.Logger
}

// NewLoggingStore returns a store that logs every lookup and write.
func NewLoggingStore(inner Store, logger *zap.Logger) Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingStore{inner: inner, logger: logger.Named("cache")}
}

func (s *LoggingStore) Get(ctx context.Context, language, narrationContext string) (Entry, bool, error) {
	start := time.Now()
	entry, ok, err := s.inner.Get(ctx, language, narrationContext)

	result := "miss"
	if err != nil {
		result = "error"
	} else if ok {
		result = "hit"
	}

	fields := []zap.Field{
		zap.String("cache_tier", "message"),
		zap.String("cache_key", narration.DeriveKey(language, narrationContext)),
		zap.String("cache_result", result),
		zap.Bool("has_audio", entry.AudioURL != ""),
		zap.Float64("latency_ms", latencyMs(start)),
	}

	logger := logging.Or(ctx, s.logger)
	if err != nil {
		logger.Error("message_cache_get", append(fields, zap.Error(err))...)
	} else {
		logger.Info("message_cache_get", fields...)
	}
	return entry, ok, err
}

func (s *LoggingStore) Put(ctx context.Context, req PutRequest) error {
	start := time.Now()
	err := s.inner.Put(ctx, req)

	fields := []zap.Field{
		zap.String("cache_tier", "message"),
		zap.String("cache_key", narration.DeriveKey(req.Language, req.Context)),
		zap.String("course_id", req.CourseID),
		zap.Bool("has_audio", req.AudioURL != ""),
		zap.Float64("latency_ms", latencyMs(start)),
	}

	logger := logging.Or(ctx, s.logger)
	if err != nil {
		logger.Error("message_cache_put", append(fields, zap.Error(err))...)
	} else {
		logger.Info("message_cache_put", fields...)
	}
	return err
}

func latencyMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
