// Package speech attaches audio to generated narration. Audio objects are
// content-addressed by language and context, so each slot is synthesized
// once and reused by every later request.
package speech

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"narration-gateway/internal/cache"
	"narration-gateway/internal/fanout"
	"narration-gateway/internal/metrics"
	"narration-gateway/internal/narration"
	"narration-gateway/internal/objectstore"
	"narration-gateway/internal/tts"
	"narration-gateway/internal/voice"
	"narration-gateway/pkg/logging/logging"
)

// Audio reuse sources.
const (
	reuseResult = "result"
	reuseCache  = "cache"
	reuseObject = "object"
)

type Config struct {
	MaxWorkers int
}

// Request carries the generated texts to voice.
type Request struct {
	Context  string
	CourseID string
	Results  narration.Results
}

// ResynthesizeRequest replaces the audio, and the cached text, of one slot.
type ResynthesizeRequest struct {
	Language string
	Context  string
	Text     string
	CourseID string
}

type Synthesizer struct {
	cache   cache.Store
	objects objectstore.Store
	tts     tts.Synthesizer
	voices  *voice.Resolver
	cfg     Config
	logger  *zap.Logger
}

// New builds a synthesizer. A nil object store or nil tts client disables
// synthesis; Synthesize then returns its input unchanged.
func New(
	store cache.Store,
	objects objectstore.Store,
	client tts.Synthesizer,
	voices *voice.Resolver,
	cfg Config,
	logger *zap.Logger,
) *Synthesizer {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = fanout.DefaultLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{
		cache:   store,
		objects: objects,
		tts:     client,
		voices:  voices,
		cfg:     cfg,
		logger:  logger.Named("speech"),
	}
}

// Enabled reports whether audio can be produced.
func (s *Synthesizer) Enabled() bool {
	return s != nil && s.objects != nil && s.tts != nil
}

// Synthesize returns a copy of req.Results with AudioURL filled for every
// language that already had audio or could be voiced. Failures leave the
// language text-only.
func (s *Synthesizer) Synthesize(ctx context.Context, req Request) narration.Results {
	out := req.Results.Clone()
	if len(out) == 0 {
		return out
	}

	logger := logging.Or(ctx, s.logger)
	if !s.Enabled() {
		logger.Warn("ConfigurationError: audio bucket not configured, returning text only",
			zap.Int("languages", len(out)))
		return out
	}

	start := time.Now()
	defer metrics.ObservePhase(metrics.PhaseSynthesize, start)

	norm := narration.Normalize(req.Context)

	languages := make([]string, 0, len(out))
	for lang := range out {
		languages = append(languages, lang)
	}
	sort.Strings(languages)

	var mu sync.Mutex
	err := fanout.Run(ctx, languages, s.cfg.MaxWorkers, func(ctx context.Context, lang string) {
		mu.Lock()
		res := out[lang]
		mu.Unlock()

		url := s.audioFor(ctx, lang, norm, req.CourseID, res)
		if url == "" {
			return
		}
		mu.Lock()
		res.AudioURL = url
		out[lang] = res
		mu.Unlock()
	})
	if err != nil {
		logger.Error("synthesis fan-out failed", zap.Error(err))
	}

	withAudio := 0
	for _, r := range out {
		if r.HasAudio() {
			withAudio++
		}
	}
	logger.Info("synthesis finished",
		zap.Int("languages", len(out)),
		zap.Int("with_audio", withAudio),
		zap.Duration("duration", time.Since(start)),
	)
	return out
}

// audioFor returns the audio URL for one language, or "" when it could not
// be produced.
func (s *Synthesizer) audioFor(ctx context.Context, lang, norm, courseID string, res narration.Result) string {
	logger := logging.Or(ctx, s.logger).With(zap.String("language", lang))

	if res.AudioURL != "" {
		metrics.AudioReuseTotal.WithLabelValues(reuseResult).Inc()
		return res.AudioURL
	}
	if strings.TrimSpace(res.Text) == "" {
		return ""
	}

	if norm != "" && s.cache != nil {
		entry, ok, err := s.cache.Get(ctx, lang, norm)
		if err != nil {
			logger.Warn("cache lookup failed, treating as miss", zap.Error(err))
		}
		if ok && entry.AudioURL != "" {
			metrics.CacheHitsTotal.WithLabelValues(metrics.PhaseSynthesize).Inc()
			metrics.AudioReuseTotal.WithLabelValues(reuseCache).Inc()
			return entry.AudioURL
		}
		metrics.CacheMissesTotal.WithLabelValues(metrics.PhaseSynthesize).Inc()
	}

	filename := audioFilenameFor(lang, norm, res.Text)

	exists, err := s.objects.Exists(ctx, filename)
	if err != nil {
		logger.Warn("audio existence check failed, synthesizing", zap.String("filename", filename), zap.Error(err))
	}
	if exists {
		url := s.objects.PublicURL(filename)
		metrics.AudioReuseTotal.WithLabelValues(reuseObject).Inc()
		s.remember(ctx, logger, lang, norm, courseID, res.Text, url)
		return url
	}

	url, err := s.synthesizeAndUpload(ctx, lang, courseID, res.Text, filename)
	if err != nil {
		metrics.SynthesisFailuresTotal.WithLabelValues(lang).Inc()
		logger.Warn("SynthesisFailure", zap.String("filename", filename), zap.Error(err))
		return ""
	}
	s.remember(ctx, logger, lang, norm, courseID, res.Text, url)
	return url
}

// Resynthesize voices req.Text under the slot's filename, replacing any
// existing object, and records the text and URL in the cache. Unlike
// Synthesize it reports every failure.
func (s *Synthesizer) Resynthesize(ctx context.Context, req ResynthesizeRequest) (narration.Result, error) {
	lang := strings.TrimSpace(req.Language)
	text := strings.TrimSpace(req.Text)
	if lang == "" || text == "" {
		return narration.Result{}, fmt.Errorf("language and text are required: %w", narration.ErrInvalidRequest)
	}
	if !s.Enabled() {
		return narration.Result{}, fmt.Errorf("audio synthesis: %w", narration.ErrNotConfigured)
	}

	norm := narration.Normalize(req.Context)
	filename := audioFilenameFor(lang, norm, text)

	url, err := s.synthesizeAndUpload(ctx, lang, req.CourseID, text, filename)
	if err != nil {
		metrics.SynthesisFailuresTotal.WithLabelValues(lang).Inc()
		return narration.Result{}, err
	}

	if s.cache != nil {
		if err := s.cache.Put(ctx, cache.PutRequest{
			Language: lang,
			Text:     text,
			Context:  norm,
			CourseID: req.CourseID,
			AudioURL: url,
		}); err != nil {
			return narration.Result{Text: text, AudioURL: url}, fmt.Errorf("cache update after resynthesis: %w", err)
		}
	}

	logging.Or(ctx, s.logger).Info("narration resynthesized",
		zap.String("language", lang),
		zap.String("filename", filename),
	)
	return narration.Result{Text: text, AudioURL: url}, nil
}

func (s *Synthesizer) synthesizeAndUpload(ctx context.Context, lang, courseID, text, filename string) (string, error) {
	clean := SanitizeForSpeech(text)
	if clean == "" {
		return "", fmt.Errorf("nothing to speak after sanitizing: %w", narration.ErrSynthesisFailed)
	}

	v := s.voices.Resolve(ctx, courseID, lang)

	audio, err := s.tts.Synthesize(ctx, tts.Request{Text: clean, Voice: v})
	if err != nil {
		return "", fmt.Errorf("%w: %w", narration.ErrSynthesisFailed, err)
	}
	if len(audio) == 0 {
		return "", fmt.Errorf("empty audio: %w", narration.ErrSynthesisFailed)
	}

	if err := s.objects.Upload(ctx, filename, audio, objectstore.ContentTypeMP3); err != nil {
		return "", fmt.Errorf("%w: upload: %w", narration.ErrSynthesisFailed, err)
	}
	return s.objects.PublicURL(filename), nil
}

// remember records the audio URL in the cache. Failures are logged only.
func (s *Synthesizer) remember(ctx context.Context, logger *zap.Logger, lang, norm, courseID, text, url string) {
	if norm == "" || s.cache == nil {
		return
	}
	err := s.cache.Put(ctx, cache.PutRequest{
		Language: lang,
		Text:     text,
		Context:  norm,
		CourseID: courseID,
		AudioURL: url,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("cache update with audio url failed", zap.Error(err))
	}
}
