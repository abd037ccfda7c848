package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores each entry as a hash plus a set of course ids.
//
//	<prefix>:<cacheKey>             hash of scalar fields
//	<prefix>:<cacheKey>:course_ids  set of course ids
type RedisBackend struct {
	client *redis.Client
	prefix string
}

type RedisConfig struct {
	Prefix string
}

// NewRedisBackend creates a Redis-backed cache backend.
func NewRedisBackend(client *redis.Client, config RedisConfig) *RedisBackend {
	return &RedisBackend{
		client: client,
		prefix: config.Prefix,
	}
}

func (c *RedisBackend) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}

func (c *RedisBackend) coursesKey(k string) string {
	return c.key(k) + ":" + FieldCourseIDs
}

// Fetch reads the hash and the course set in one round trip.
func (c *RedisBackend) Fetch(ctx context.Context, key string) (Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, false, fmt.Errorf("context error: %w", err)
	}

	pipe := c.client.Pipeline()
	fieldsCmd := pipe.HGetAll(ctx, c.key(key))
	coursesCmd := pipe.SMembers(ctx, c.coursesKey(key))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return Entry{}, false, fmt.Errorf("redis fetch failed: %w", err)
	}

	fields := fieldsCmd.Val()
	if len(fields) == 0 {
		return Entry{}, false, nil
	}

	entry := Entry{
		Key:         key,
		Language:    fields[FieldLanguage],
		Context:     fields[FieldContext],
		ContextHash: fields[FieldContextHash],
		Message:     fields[FieldMessage],
		AudioURL:    fields[FieldAudioURL],
		CourseIDs:   coursesCmd.Val(),
	}
	sort.Strings(entry.CourseIDs)
	if ts := fields[FieldUpdatedAt]; ts != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			entry.UpdatedAt = parsed
		}
	}
	return entry, true, nil
}

// MergeDocument writes the scalar fields with HSET and unions the course id
// with SADD inside one MULTI/EXEC, so concurrent writers never lose a course.
func (c *RedisBackend) MergeDocument(ctx context.Context, key string, doc Document) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	values := map[string]interface{}{
		FieldMessage:     doc.Message,
		FieldLanguage:    doc.Language,
		FieldContext:     doc.Context,
		FieldContextHash: doc.ContextHash,
		FieldUpdatedAt:   doc.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if doc.AudioURL != "" {
		values[FieldAudioURL] = doc.AudioURL
	}

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, c.key(key), values)
		if doc.CourseID != "" {
			pipe.SAdd(ctx, c.coursesKey(key), doc.CourseID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis merge failed: %w", err)
	}
	return nil
}

// Ping checks if Redis connection is healthy.
func (c *RedisBackend) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	return c.client.Ping(ctx).Err()
}
