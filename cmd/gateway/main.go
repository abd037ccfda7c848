package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"narration-gateway/internal/broadcast"
	"narration-gateway/internal/cache"
	"narration-gateway/internal/config"
	"narration-gateway/internal/course"
	"narration-gateway/internal/generator"
	"narration-gateway/internal/handlers"
	"narration-gateway/internal/httpserver"
	"narration-gateway/internal/llm"
	"narration-gateway/internal/metrics"
	"narration-gateway/internal/objectstore"
	"narration-gateway/internal/pipeline"
	"narration-gateway/internal/speech"
	"narration-gateway/internal/tts"
	"narration-gateway/internal/voice"
	"narration-gateway/pkg/logging/logging"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("gateway exited with error: %v", err)
	}
}

func run() error {
	// ----- Logger -----
	logger := logging.DefaultLogger()
	defer logger.Sync()

	// ----- Metrics -----
	metrics.Register()

	// ----- Config -----
	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return err
	}

	logger.Info("loaded config",
		zap.String("port", cfg.Port),
		zap.String("cache_backend", cfg.CacheBackend),
		zap.String("course_backend", cfg.CourseBackend),
		zap.String("llm_provider", cfg.LLMProvider),
		zap.String("object_store", cfg.ObjectStore),
		zap.String("broadcast_backend", cfg.BroadcastBackend),
		zap.Int("max_workers", cfg.MaxWorkers),
	)

	ctx := context.Background()

	// ----- Redis client (only if needed) -----
	var redisClient *redis.Client
	if cfg.CacheBackend == config.CacheRedis {
		redisClient, err = connectRedis(ctx, logger, cfg.RedisAddr, cfg.RedisCacheDB)
		if err != nil {
			return err
		}
		defer redisClient.Close()
	}

	// ----- AWS session (only if needed) -----
	var awsSession *session.Session
	if cfg.NeedsAWS() {
		awsSession = session.Must(session.NewSessionWithOptions(session.Options{
			Config:            aws.Config{Region: aws.String(cfg.AWSRegion)},
			SharedConfigState: session.SharedConfigEnable,
		}))
		logger.Info("aws session created", zap.String("region", cfg.AWSRegion))
	}

	// ----- NATS JetStream (only if needed) -----
	var js nats.JetStreamContext
	if cfg.NeedsNATS() {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("narration-gateway"))
		if err != nil {
			logger.Error("nats connection failed", zap.Error(err))
			return err
		}
		defer nc.Drain()

		js, err = nc.JetStream()
		if err != nil {
			logger.Error("jetstream context failed", zap.Error(err))
			return err
		}
		logger.Info("nats connection established", zap.String("url", cfg.NATSURL))
	}

	// ----- Message cache -----
	clients := cache.Clients{Redis: redisClient}
	if cfg.CacheBackend == config.CacheDynamoDB {
		clients.Dynamo = dynamodb.New(awsSession)
	}
	backend, err := cache.NewBackend(cache.Config{
		Backend: cfg.CacheBackend,
		Prefix:  cfg.CachePrefix,
		Table:   cfg.DynamoCacheTable,
	}, clients)
	if err != nil {
		return err
	}
	messageCache := cache.NewLoggingStore(cache.NewMessageCache(backend, logger), logger)

	// ----- Course configuration -----
	var courses course.Store = course.NopStore{}
	switch cfg.CourseBackend {
	case config.CourseRedis:
		courseRedis, err := connectRedis(ctx, logger, cfg.RedisAddr, cfg.CourseRedisDB)
		if err != nil {
			return err
		}
		defer courseRedis.Close()
		redisCourses := course.NewRedisStore(courseRedis, "", logger)
		defer redisCourses.Close()
		courses = redisCourses
	case config.CourseFile:
		fileCourses, err := course.NewFileStore(cfg.CourseFile, logger)
		if err != nil {
			return err
		}
		if err := fileCourses.Watch(); err != nil {
			logger.Warn("course file watch disabled", zap.Error(err))
		}
		defer fileCourses.Close()
		courses = fileCourses
	}

	// ----- LLM client -----
	llmCfg := llm.Config{
		BaseURL:  cfg.LLMEndpoint(),
		APIKey:   cfg.LLMAPIKey,
		Provider: cfg.LLMProvider,
		Model:    cfg.LLMModel,
	}
	var llmClient llm.Client
	if cfg.LLMProvider == llm.ProviderGemini {
		llmClient, err = llm.NewGeminiClient(ctx, llmCfg, logger)
	} else {
		llmClient, err = llm.NewClient(llmCfg, logger)
	}
	if err != nil {
		return err
	}
	if closer, ok := llmClient.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	sessions := generator.NewSessions(cfg.SessionTTL, 0)
	defer sessions.Close()

	textGenerator := generator.New(messageCache, llmClient, sessions, generator.Config{
		MaxWorkers:  cfg.MaxWorkers,
		Model:       cfg.LLMModel,
		Temperature: cfg.LLMTemperature,
		MaxTokens:   cfg.LLMMaxTokens,
	}, logger)

	// ----- Audio storage + synthesis (only if configured) -----
	var (
		objects     objectstore.Store
		audioReader objectstore.Reader
		synthClient tts.Synthesizer
	)
	if cfg.SynthesisEnabled() {
		switch cfg.ObjectStore {
		case config.ObjectStoreS3:
			s3Store, err := objectstore.NewS3Store(s3.New(awsSession), objectstore.S3Config{
				Bucket:        cfg.AudioBucket,
				PublicBaseURL: cfg.PublicBaseURL,
			}, logger)
			if err != nil {
				return err
			}
			objects = s3Store
		case config.ObjectStoreNATS:
			natsStore, err := objectstore.NewNatsStore(js, cfg.AudioBucket, cfg.PublicBaseURL, logger)
			if err != nil {
				return err
			}
			objects = natsStore
			audioReader = natsStore
		}

		ttsClient, err := tts.NewClient(tts.Config{
			BaseURL:           cfg.TTSBaseURL,
			APIKey:            cfg.TTSAPIKey,
			AccessToken:       cfg.TTSAccessToken,
			RequestsPerMinute: cfg.TTSRatePerMin,
			Burst:             cfg.MaxWorkers,
		}, logger)
		if err != nil {
			return err
		}
		defer ttsClient.Close()
		synthClient = ttsClient
	}

	synth := speech.New(
		messageCache,
		objects,
		synthClient,
		voice.NewResolver(courses, logger),
		speech.Config{MaxWorkers: cfg.MaxWorkers},
		logger,
	)

	// ----- Broadcast (only if configured) -----
	var (
		publisher  broadcast.Publisher = broadcast.NopPublisher{}
		liveReader broadcast.Reader
	)
	switch cfg.BroadcastBackend {
	case config.BroadcastRedis:
		broadcastRedis, err := connectRedis(ctx, logger, cfg.BroadcastRedisAddr, cfg.BroadcastRedisDB)
		if err != nil {
			return err
		}
		defer broadcastRedis.Close()
		redisPublisher := broadcast.NewRedisPublisher(broadcastRedis, cfg.BroadcastPrefix, logger)
		publisher, liveReader = redisPublisher, redisPublisher
	case config.BroadcastNATS:
		kvPublisher, err := broadcast.NewKVPublisher(js, cfg.BroadcastPrefix, logger)
		if err != nil {
			return err
		}
		publisher, liveReader = kvPublisher, kvPublisher
	}

	// ----- Pipeline + handlers -----
	service := pipeline.New(courses, textGenerator, synth, publisher, logger)
	narrationHandler := handlers.NewNarrationHandler(service, liveReader, audioReader)

	// ----- Router + middleware -----
	r := chi.NewRouter()
	httpserver.SetupRouter(r, logger, narrationHandler, httpserver.Options{
		RequestTimeout: cfg.RequestTimeout,
		MaxBodyBytes:   cfg.MaxBodyBytes,
	})

	// ----- HTTP server -----
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("starting gateway",
		zap.String("addr", srv.Addr),
		zap.Bool("synthesis_enabled", synth.Enabled()),
	)

	// Start server in background
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
		}
	}()

	// ----- Graceful shutdown -----
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return err
	}

	logger.Info("server shutdown complete")
	return nil
}

// connectRedis opens a client and fails fast if the server is unreachable.
func connectRedis(ctx context.Context, logger *zap.Logger, addr string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("redis connection failed", zap.String("addr", addr), zap.Int("db", db), zap.Error(err))
		_ = client.Close()
		return nil, err
	}
	logger.Info("redis connection established", zap.String("addr", addr), zap.Int("db", db))
	return client, nil
}
