// Package config loads gateway settings from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"narration-gateway/internal/fanout"
	"narration-gateway/internal/narration"
)

// Backend selectors.
const (
	None = "none"

	CacheMemory   = "memory"
	CacheRedis    = "redis"
	CacheDynamoDB = "dynamodb"

	CourseRedis = "redis"
	CourseFile  = "file"

	ObjectStoreS3   = "s3"
	ObjectStoreNATS = "nats"

	BroadcastRedis = "redis"
	BroadcastNATS  = "nats"
)

type Config struct {
	Port           string        `env:"PORT" envDefault:"8080"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"90s"`
	MaxBodyBytes   int64         `env:"MAX_BODY_BYTES" envDefault:"1048576"`
	MaxWorkers     int           `env:"MAX_WORKERS" envDefault:"5"`

	CacheBackend     string `env:"CACHE_BACKEND" envDefault:"memory"`
	CachePrefix      string `env:"CACHE_PREFIX" envDefault:"langbridge_presentation_cache"`
	RedisAddr        string `env:"REDIS_ADDR" envDefault:"127.0.0.1:6379"`
	RedisCacheDB     int    `env:"REDIS_CACHE_DB" envDefault:"0"`
	DynamoCacheTable string `env:"DYNAMO_CACHE_TABLE"`
	AWSRegion        string `env:"AWS_REGION" envDefault:"us-east-1"`

	CourseBackend string `env:"COURSE_BACKEND" envDefault:"none"`
	CourseFile    string `env:"COURSE_FILE" envDefault:"courses.toml"`
	CourseRedisDB int    `env:"COURSE_REDIS_DB" envDefault:"0"`

	LLMProvider string `env:"LLM_PROVIDER" envDefault:"openai"`
	LLMBaseURL  string `env:"LLM_BASE_URL"`
	LLMAPIKey   string `env:"LLM_API_KEY"`
	LLMModel    string `env:"LLM_MODEL"`

	LLMTemperature float32       `env:"LLM_TEMPERATURE" envDefault:"0.7"`
	LLMMaxTokens   int           `env:"LLM_MAX_TOKENS" envDefault:"1024"`
	SessionTTL     time.Duration `env:"SESSION_TTL" envDefault:"30m"`

	TTSBaseURL     string `env:"TTS_BASE_URL" envDefault:"https://texttospeech.googleapis.com"`
	TTSAPIKey      string `env:"TTS_API_KEY"`
	TTSAccessToken string `env:"TTS_ACCESS_TOKEN"`
	TTSRatePerMin  int    `env:"TTS_REQUESTS_PER_MINUTE" envDefault:"600"`

	ObjectStore   string `env:"OBJECT_STORE" envDefault:"none"`
	AudioBucket   string `env:"AUDIO_BUCKET"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL"`
	NATSURL       string `env:"NATS_URL" envDefault:"nats://127.0.0.1:4222"`

	BroadcastBackend   string `env:"BROADCAST_BACKEND" envDefault:"none"`
	BroadcastPrefix    string `env:"BROADCAST_PREFIX" envDefault:"presentation_broadcast"`
	BroadcastRedisAddr string `env:"BROADCAST_REDIS_ADDR"`
	BroadcastRedisDB   int    `env:"BROADCAST_REDIS_DB" envDefault:"0"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("error parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports inconsistent backend combinations. Every error wraps
// narration.ErrNotConfigured.
func (c Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format+": %w", append(args, narration.ErrNotConfigured)...))
	}

	switch c.CacheBackend {
	case CacheMemory:
	case CacheRedis:
		if c.RedisAddr == "" {
			fail("CACHE_BACKEND=redis needs REDIS_ADDR")
		}
	case CacheDynamoDB:
		if c.AWSRegion == "" {
			fail("CACHE_BACKEND=dynamodb needs AWS_REGION")
		}
	default:
		fail("unknown CACHE_BACKEND %q", c.CacheBackend)
	}

	switch c.CourseBackend {
	case None:
	case CourseRedis:
		if c.RedisAddr == "" {
			fail("COURSE_BACKEND=redis needs REDIS_ADDR")
		}
	case CourseFile:
		if c.CourseFile == "" {
			fail("COURSE_BACKEND=file needs COURSE_FILE")
		}
	default:
		fail("unknown COURSE_BACKEND %q", c.CourseBackend)
	}

	switch c.LLMProvider {
	case "openai", "gemini":
		if c.LLMAPIKey == "" {
			fail("LLM_API_KEY is required")
		}
	default:
		fail("unknown LLM_PROVIDER %q", c.LLMProvider)
	}

	switch c.ObjectStore {
	case None:
	case ObjectStoreS3, ObjectStoreNATS:
		if c.AudioBucket == "" {
			fail("OBJECT_STORE=%s needs AUDIO_BUCKET", c.ObjectStore)
		}
		if c.TTSAPIKey == "" && c.TTSAccessToken == "" {
			fail("OBJECT_STORE=%s needs TTS_API_KEY or TTS_ACCESS_TOKEN", c.ObjectStore)
		}
	default:
		fail("unknown OBJECT_STORE %q", c.ObjectStore)
	}

	switch c.BroadcastBackend {
	case None, BroadcastNATS:
	case BroadcastRedis:
		if c.BroadcastRedisAddr == "" {
			fail("BROADCAST_BACKEND=redis needs BROADCAST_REDIS_ADDR")
		}
	default:
		fail("unknown BROADCAST_BACKEND %q", c.BroadcastBackend)
	}

	if c.MaxWorkers <= 0 || c.MaxWorkers > fanout.DefaultLimit {
		fail("MAX_WORKERS must be between 1 and %d", fanout.DefaultLimit)
	}

	return errors.Join(errs...)
}

// SynthesisEnabled reports whether audio will be produced.
func (c Config) SynthesisEnabled() bool {
	return c.ObjectStore != None && c.AudioBucket != ""
}

// LLMEndpoint returns LLM_BASE_URL, defaulting to the public OpenAI API for
// the openai provider. Gemini uses its SDK default when empty.
func (c Config) LLMEndpoint() string {
	if c.LLMBaseURL == "" && c.LLMProvider == "openai" {
		return "https://api.openai.com"
	}
	return c.LLMBaseURL
}

// NeedsNATS reports whether any backend uses NATS.
func (c Config) NeedsNATS() bool {
	return c.ObjectStore == ObjectStoreNATS || c.BroadcastBackend == BroadcastNATS
}

// NeedsAWS reports whether any backend uses AWS.
func (c Config) NeedsAWS() bool {
	return c.CacheBackend == CacheDynamoDB || c.ObjectStore == ObjectStoreS3
}
