package cache

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"narration-gateway/internal/narration"
	"narration-gateway/pkg/logging/logging"
)

// MessageCache derives keys and enforces write rules over a Backend.
type MessageCache struct {
	backend Backend
	logger  *zap.Logger
	now     func() time.Time
}

// NewMessageCache wraps backend.
func NewMessageCache(backend Backend, logger *zap.Logger) *MessageCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageCache{
		backend: backend,
		logger:  logger.Named("cache"),
		now:     time.Now,
	}
}

// Get looks up the entry for language and context. A miss is (Entry{}, false, nil).
func (c *MessageCache) Get(ctx context.Context, language, narrationContext string) (Entry, bool, error) {
	return c.backend.Fetch(ctx, narration.DeriveKey(language, narrationContext))
}

// Put merges text, and optionally an audio URL and course id, into the entry
// for (language, context). Empty text or empty context is logged and skipped.
func (c *MessageCache) Put(ctx context.Context, req PutRequest) error {
	logger := logging.Or(ctx, c.logger)

	text := strings.TrimSpace(req.Text)
	if text == "" {
		logger.Warn("cache_put_skipped_empty_text", zap.String("language", req.Language))
		return nil
	}

	norm := narration.Normalize(req.Context)
	if norm == "" {
		logger.Debug("cache_put_skipped_empty_context", zap.String("language", req.Language))
		return nil
	}

	key := narration.DeriveKey(req.Language, norm)
	doc := Document{
		Language:    strings.TrimSpace(req.Language),
		Context:     norm,
		ContextHash: narration.ContextHash(norm),
		Message:     text,
		AudioURL:    strings.TrimSpace(req.AudioURL),
		CourseID:    strings.TrimSpace(req.CourseID),
		UpdatedAt:   c.now().UTC(),
	}

	return c.backend.MergeDocument(ctx, key, doc)
}
