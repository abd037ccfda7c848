package cache

import (
	"fmt"

	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/redis/go-redis/v9"

	"narration-gateway/internal/narration"
)

// Backend names accepted by Config.Backend.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendDynamoDB = "dynamodb"
)

type Config struct {
	Backend string
	Prefix  string
	Table   string
}

// Clients carries the connections a backend may need. Only the one matching
// Config.Backend has to be set.
type Clients struct {
	Redis  *redis.Client
	Dynamo dynamodbiface.DynamoDBAPI
}

// NewBackend selects a backend implementation from cfg.
func NewBackend(cfg Config, clients Clients) (Backend, error) {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}

	switch cfg.Backend {
	case BackendRedis:
		if clients.Redis == nil {
			return nil, fmt.Errorf("cache backend %q needs a redis client: %w", cfg.Backend, narration.ErrNotConfigured)
		}
		return NewRedisBackend(clients.Redis, RedisConfig{Prefix: prefix}), nil
	case BackendDynamoDB:
		if clients.Dynamo == nil {
			return nil, fmt.Errorf("cache backend %q needs a dynamodb client: %w", cfg.Backend, narration.ErrNotConfigured)
		}
		table := cfg.Table
		if table == "" {
			table = prefix
		}
		return NewDynamoBackend(clients.Dynamo, DynamoConfig{TableName: table}), nil
	case BackendMemory, "":
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q: %w", cfg.Backend, narration.ErrNotConfigured)
	}
}
