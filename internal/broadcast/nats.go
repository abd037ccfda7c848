package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"narration-gateway/internal/narration"
)

// KVPublisher writes to a JetStream key-value bucket:
//
//	<scope>.presentations.<ppt>                       presentation doc
//	<scope>.presentations.<ppt>.slides.<slide>.meta   slide metadata
//	<scope>.presentations.<ppt>.slides.<slide>.lang.<lang>
//	<scope>.live                                      live pointer
//
// Audience clients watch <scope>.live for real-time updates.
type KVPublisher struct {
	kv     nats.KeyValue
	logger *zap.Logger
	now    func() time.Time
}

// NewKVPublisher creates the bucket, or binds to it when it already exists.
func NewKVPublisher(js nats.JetStreamContext, bucket string, logger *zap.Logger) (*KVPublisher, error) {
	if bucket == "" {
		bucket = DefaultPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	kv, err := js.CreateKeyValue(&nats.KeyValueConfig{
		Bucket:      bucket,
		Description: "Narration registry and live pointers.",
		History:     5,
		Storage:     nats.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			return nil, fmt.Errorf("failed to create key-value bucket '%s': %w", bucket, err)
		}
		kv, err = js.KeyValue(bucket)
		if err != nil {
			return nil, fmt.Errorf("failed to bind to existing key-value bucket '%s': %w", bucket, err)
		}
	}

	return &KVPublisher{kv: kv, logger: logger.Named("broadcast"), now: time.Now}, nil
}

// KeyToken makes s usable as a single key token.
func KeyToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '=':
			return r
		default:
			return '_'
		}
	}, s)
}

func presentationKey(scope, ppt string) string {
	return KeyToken(scope) + ".presentations." + KeyToken(ppt)
}

func slideKey(scope, ppt, slide string) string {
	return presentationKey(scope, ppt) + ".slides." + KeyToken(slide)
}

func liveKey(scope string) string {
	return KeyToken(scope) + ".live"
}

type presentationDoc struct {
	CourseID        string    `json:"course_id,omitempty"`
	PptFilenameNorm string    `json:"ppt_filename_norm"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Publish writes each language under its own key, so earlier languages of
// the slide survive, then replaces the live pointer.
func (p *KVPublisher) Publish(ctx context.Context, b Broadcast) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	now := p.now().UTC()
	scope := b.Scope()

	if b.hasSlide() {
		if err := p.putJSON(presentationKey(scope, b.PresentationID), presentationDoc{
			CourseID:        b.CourseID,
			PptFilenameNorm: b.PresentationID,
			UpdatedAt:       now,
		}); err != nil {
			return err
		}

		base := slideKey(scope, b.PresentationID, b.SlideID)
		if err := p.putJSON(base+".meta", slideMeta(b, now)); err != nil {
			return err
		}
		for lang, content := range b.Languages {
			if err := p.putJSON(base+".lang."+KeyToken(lang), content); err != nil {
				return err
			}
		}
	}

	if err := p.putJSON(liveKey(scope), livePointer(b, uuid.NewString(), now)); err != nil {
		return err
	}

	p.logger.Info("broadcast published",
		zap.String("scope", scope),
		zap.String("presentation_id", b.PresentationID),
		zap.String("slide_id", b.SlideID),
		zap.Int("languages", len(b.Languages)),
		zap.Bool("registry", b.hasSlide()),
	)
	return nil
}

func (p *KVPublisher) putJSON(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("broadcast: marshal %s: %w", key, err)
	}
	if _, err := p.kv.Put(key, raw); err != nil {
		return fmt.Errorf("broadcast: kv put %s: %w: %w", key, narration.ErrPublishFailed, err)
	}
	return nil
}

func (p *KVPublisher) Live(_ context.Context, scope string) (LivePointer, bool, error) {
	entry, err := p.kv.Get(liveKey(scope))
	if errors.Is(err, nats.ErrKeyNotFound) {
		return LivePointer{}, false, nil
	}
	if err != nil {
		return LivePointer{}, false, fmt.Errorf("broadcast: kv get live pointer: %w", err)
	}
	var lp LivePointer
	if err := json.Unmarshal(entry.Value(), &lp); err != nil {
		return LivePointer{}, false, fmt.Errorf("broadcast: decode live pointer: %w", err)
	}
	return lp, true, nil
}

// SlideLanguages reads the registry content stored for one slide.
func (p *KVPublisher) SlideLanguages(_ context.Context, scope, ppt, slide string) (map[string]SlideContent, error) {
	prefix := slideKey(scope, ppt, slide) + ".lang."
	keys, err := p.kv.Keys()
	if err != nil && !errors.Is(err, nats.ErrNoKeysFound) {
		return nil, fmt.Errorf("broadcast: kv keys: %w", err)
	}

	out := map[string]SlideContent{}
	for _, k := range keys {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		entry, err := p.kv.Get(k)
		if err != nil {
			return nil, fmt.Errorf("broadcast: kv get %s: %w", k, err)
		}
		var c SlideContent
		if err := json.Unmarshal(entry.Value(), &c); err != nil {
			return nil, fmt.Errorf("broadcast: decode %s: %w", k, err)
		}
		out[strings.TrimPrefix(k, prefix)] = c
	}
	return out, nil
}
