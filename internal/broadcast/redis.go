package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"narration-gateway/internal/narration"
)

// RedisPublisher writes to a redis deployment separate from the cache:
//
//	<prefix>:<scope>:presentations:<ppt>                hash, presentation doc
//	<prefix>:<scope>:presentations:<ppt>:slides:<slide> hash, one field per language plus metadata
//	<prefix>:<scope>:live                               string, live pointer JSON
//
// Every live pointer write is also published on channel <prefix>:<scope>.
type RedisPublisher struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
	now    func() time.Time
}

func NewRedisPublisher(client *redis.Client, prefix string, logger *zap.Logger) *RedisPublisher {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPublisher{
		client: client,
		prefix: prefix,
		logger: logger.Named("broadcast"),
		now:    time.Now,
	}
}

// Key segments pass through KeyToken so ids containing ':' cannot add
// segments of their own.
func (p *RedisPublisher) scopeKey(scope string) string {
	return p.prefix + ":" + KeyToken(scope)
}

func (p *RedisPublisher) presentationKey(scope, ppt string) string {
	return p.scopeKey(scope) + ":presentations:" + KeyToken(ppt)
}

func (p *RedisPublisher) slideKey(scope, ppt, slide string) string {
	return p.presentationKey(scope, ppt) + ":slides:" + KeyToken(slide)
}

func (p *RedisPublisher) liveKey(scope string) string {
	return p.scopeKey(scope) + ":live"
}

// LanguageField is the slide hash field holding one language's content.
func LanguageField(lang string) string {
	return "languages." + lang
}

// Publish merges the registry entry (when the slide is known) and replaces
// the live pointer in one MULTI/EXEC, then notifies subscribers.
func (p *RedisPublisher) Publish(ctx context.Context, b Broadcast) error {
	now := p.now().UTC()
	scope := b.Scope()
	pointer := livePointer(b, uuid.NewString(), now)

	payload, err := json.Marshal(pointer)
	if err != nil {
		return fmt.Errorf("broadcast: marshal live pointer: %w", err)
	}

	var slideFields map[string]any
	if b.hasSlide() {
		slideFields, err = registryFields(b, now)
		if err != nil {
			return err
		}
	}

	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if slideFields != nil {
			pipe.HSet(ctx, p.presentationKey(scope, b.PresentationID), map[string]any{
				"updated_at":        now.Format(time.RFC3339Nano),
				"course_id":         b.CourseID,
				"ppt_filename_norm": b.PresentationID,
			})
			pipe.HSet(ctx, p.slideKey(scope, b.PresentationID, b.SlideID), slideFields)
		}
		pipe.Set(ctx, p.liveKey(scope), payload, 0)
		pipe.Publish(ctx, p.scopeKey(scope), payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("broadcast: redis publish: %w: %w", narration.ErrPublishFailed, err)
	}

	p.logger.Info("broadcast published",
		zap.String("scope", scope),
		zap.String("presentation_id", b.PresentationID),
		zap.String("slide_id", b.SlideID),
		zap.Int("languages", len(b.Languages)),
		zap.Bool("registry", slideFields != nil),
	)
	return nil
}

func registryFields(b Broadcast, now time.Time) (map[string]any, error) {
	meta := slideMeta(b, now)
	fields := map[string]any{
		"context_hash":      meta.ContextHash,
		"original_context":  meta.OriginalContext,
		"updated_at":        now.Format(time.RFC3339Nano),
		"ppt_filename_norm": meta.PptFilenameNorm,
	}
	if meta.PageNumber != nil {
		fields["page_number"] = strconv.Itoa(*meta.PageNumber)
	}
	if meta.CourseID != "" {
		fields["course_id"] = meta.CourseID
	}
	if meta.PptFilename != "" {
		fields["ppt_filename"] = meta.PptFilename
	}
	if len(meta.SupportedLanguages) > 0 {
		raw, err := json.Marshal(meta.SupportedLanguages)
		if err != nil {
			return nil, fmt.Errorf("broadcast: marshal supported languages: %w", err)
		}
		fields["supported_languages"] = string(raw)
	}
	for lang, content := range b.Languages {
		raw, err := json.Marshal(content)
		if err != nil {
			return nil, fmt.Errorf("broadcast: marshal %s content: %w", lang, err)
		}
		fields[LanguageField(lang)] = string(raw)
	}
	return fields, nil
}

// Live reads the live pointer for scope.
func (p *RedisPublisher) Live(ctx context.Context, scope string) (LivePointer, bool, error) {
	raw, err := p.client.Get(ctx, p.liveKey(scope)).Bytes()
	if errors.Is(err, redis.Nil) {
		return LivePointer{}, false, nil
	}
	if err != nil {
		return LivePointer{}, false, fmt.Errorf("broadcast: redis get live pointer: %w", err)
	}
	var lp LivePointer
	if err := json.Unmarshal(raw, &lp); err != nil {
		return LivePointer{}, false, fmt.Errorf("broadcast: decode live pointer: %w", err)
	}
	return lp, true, nil
}

// Subscribe returns a subscription to live pointer updates for scope.
func (p *RedisPublisher) Subscribe(ctx context.Context, scope string) *redis.PubSub {
	return p.client.Subscribe(ctx, p.scopeKey(scope))
}
