package course

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const eventWriteTimeout = 5 * time.Second

// RedisStore reads course documents stored as JSON at "<prefix>:<courseID>"
// and appends events to the stream "<prefix>:<courseID>:logs".
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *zap.Logger

	wg sync.WaitGroup
}

// NewRedisStore creates a course store backed by client.
func NewRedisStore(client *redis.Client, prefix string, logger *zap.Logger) *RedisStore {
	if prefix == "" {
		prefix = "courses"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{client: client, prefix: prefix, logger: logger.Named("course")}
}

func (s *RedisStore) docKey(courseID string) string {
	return s.prefix + ":" + courseID
}

func (s *RedisStore) load(ctx context.Context, courseID string) (*Course, error) {
	courseID = strings.TrimSpace(courseID)
	if courseID == "" {
		return nil, nil
	}

	raw, err := s.client.Get(ctx, s.docKey(courseID)).Bytes()
	if errors.Is(err, redis.Nil) {
		s.logger.Warn("course not found, using defaults", zap.String("course_id", courseID))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get course failed: %w", err)
	}

	var c Course
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode course %q: %w", courseID, err)
	}
	return &c, nil
}

func (s *RedisStore) Languages(ctx context.Context, courseID string) ([]string, error) {
	c, err := s.load(ctx, courseID)
	if err != nil {
		return append([]string(nil), DefaultLanguages...), err
	}
	return languagesOrDefault(c), nil
}

func (s *RedisStore) VoiceParams(ctx context.Context, courseID, language string) (Voice, bool, error) {
	c, err := s.load(ctx, courseID)
	if err != nil {
		return Voice{}, false, err
	}
	v, ok := voiceFor(c, language)
	return v, ok, nil
}

// LogEvent appends ev in the background. The write outlives the request
// context but is bounded by its own timeout.
func (s *RedisStore) LogEvent(ctx context.Context, courseID string, ev Event) {
	courseID = strings.TrimSpace(courseID)
	if courseID == "" {
		s.logger.Debug("no course id, event not logged", zap.String("event_type", ev.Type))
		return
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("encode course event", zap.Error(err))
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventWriteTimeout)
		defer cancel()

		err := s.client.XAdd(writeCtx, &redis.XAddArgs{
			Stream: s.docKey(courseID) + ":logs",
			Values: map[string]interface{}{
				"event_id":   ev.ID,
				"event_type": ev.Type,
				"payload":    string(payload),
			},
		}).Err()
		if err != nil {
			s.logger.Error("failed to log course event",
				zap.String("course_id", courseID),
				zap.Error(err),
			)
			return
		}
		s.logger.Info("logged course event",
			zap.String("course_id", courseID),
			zap.String("event_type", ev.Type),
		)
	}()
}

// Close waits for in-flight event writes.
func (s *RedisStore) Close() error {
	s.wg.Wait()
	return nil
}
