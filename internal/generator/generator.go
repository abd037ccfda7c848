// Package generator produces narration text for each requested language,
// reading the message cache first and calling the generation service on a
// miss.
package generator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"narration-gateway/internal/cache"
	"narration-gateway/internal/fanout"
	"narration-gateway/internal/llm"
	"narration-gateway/internal/metrics"
	"narration-gateway/internal/narration"
	"narration-gateway/pkg/logging/logging"
)

type Config struct {
	MaxWorkers  int
	Model       string
	Temperature float32
	MaxTokens   int
}

// Request asks for narration of one context in several languages.
type Request struct {
	Context   string
	CourseID  string
	Languages []string
}

type Generator struct {
	cache    cache.Store
	client   llm.Client
	sessions *Sessions
	cfg      Config
	logger   *zap.Logger
}

// New builds a generator. A nil store disables caching; nil sessions
// disables chat history.
func New(store cache.Store, client llm.Client, sessions *Sessions, cfg Config, logger *zap.Logger) *Generator {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = fanout.DefaultLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		cache:    store,
		client:   client,
		sessions: sessions,
		cfg:      cfg,
		logger:   logger.Named("generator"),
	}
}

// Generate returns one Result per language that produced non-empty text.
// Languages that fail are logged and left out; they never fail the call.
func (g *Generator) Generate(ctx context.Context, req Request) narration.Results {
	start := time.Now()
	defer metrics.ObservePhase(metrics.PhaseGenerate, start)

	norm := narration.Normalize(req.Context)
	logger := logging.Or(ctx, g.logger)

	var mu sync.Mutex
	results := make(narration.Results, len(req.Languages))

	err := fanout.Run(ctx, req.Languages, g.cfg.MaxWorkers, func(ctx context.Context, lang string) {
		res, ok := g.generateOne(ctx, lang, norm, req.CourseID)
		if !ok {
			return
		}
		mu.Lock()
		results[lang] = res
		mu.Unlock()
	})
	if err != nil {
		logger.Error("generation fan-out failed", zap.Error(err))
	}

	logger.Info("generation finished",
		zap.Int("requested", len(req.Languages)),
		zap.Int("succeeded", len(results)),
		zap.Duration("duration", time.Since(start)),
	)
	return results
}

func (g *Generator) generateOne(ctx context.Context, lang, norm, courseID string) (narration.Result, bool) {
	logger := logging.Or(ctx, g.logger).With(zap.String("language", lang))

	if res, ok := g.lookup(ctx, logger, lang, norm); ok {
		return res, true
	}

	text, err := g.complete(ctx, lang, norm)
	if err == nil && text == "" {
		err = fmt.Errorf("empty completion: %w", narration.ErrGenerationFailed)
	}
	if err != nil {
		metrics.GenerationFailuresTotal.WithLabelValues(lang).Inc()
		logger.Warn("GenerationFailure", zap.Error(err))
		return narration.Result{}, false
	}

	if norm != "" && g.cache != nil {
		if err := g.cache.Put(ctx, cache.PutRequest{
			Language: lang,
			Text:     text,
			Context:  norm,
			CourseID: courseID,
		}); err != nil {
			logger.Warn("cache put after generation failed", zap.Error(err))
		}
	}

	return narration.Result{Text: text}, true
}

// lookup reads the cache. Empty context is never cached, so it is never
// looked up.
func (g *Generator) lookup(ctx context.Context, logger *zap.Logger, lang, norm string) (narration.Result, bool) {
	if norm == "" || g.cache == nil {
		return narration.Result{}, false
	}

	entry, ok, err := g.cache.Get(ctx, lang, norm)
	if err != nil {
		logger.Warn("cache lookup failed, treating as miss", zap.Error(err))
		ok = false
	}
	if !ok || entry.Message == "" {
		metrics.CacheMissesTotal.WithLabelValues(metrics.PhaseGenerate).Inc()
		return narration.Result{}, false
	}

	metrics.CacheHitsTotal.WithLabelValues(metrics.PhaseGenerate).Inc()
	return narration.Result{Text: entry.Message, AudioURL: entry.AudioURL}, true
}

func (g *Generator) complete(ctx context.Context, lang, norm string) (string, error) {
	if g.client == nil {
		return "", fmt.Errorf("no generation client: %w", narration.ErrNotConfigured)
	}

	sessionID := narration.SessionID(lang, norm)
	prompt := llm.ChatMessage{Role: llm.RoleUser, Content: BuildPrompt(lang, norm)}

	var messages []llm.ChatMessage
	if g.sessions != nil {
		messages = g.sessions.History(sessionID)
	}
	messages = append(messages, prompt)

	resp, err := g.client.ChatCompletion(ctx, &llm.ChatRequest{
		Model:       g.cfg.Model,
		Messages:    messages,
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
		SessionID:   sessionID,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", narration.ErrGenerationFailed, err)
	}

	text := resp.Text()
	if text != "" && g.sessions != nil {
		g.sessions.Append(sessionID, prompt, llm.ChatMessage{Role: llm.RoleAssistant, Content: text})
	}
	return text, nil
}
