// Package pipeline runs a narration request end to end: resolve languages,
// generate text, attach audio, then broadcast.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"narration-gateway/internal/broadcast"
	"narration-gateway/internal/course"
	"narration-gateway/internal/generator"
	"narration-gateway/internal/metrics"
	"narration-gateway/internal/narration"
	"narration-gateway/internal/speech"
	"narration-gateway/pkg/logging/logging"
)

// TextGenerator produces per-language text.
type TextGenerator interface {
	Generate(ctx context.Context, req generator.Request) narration.Results
}

// AudioSynthesizer attaches audio to generated text.
type AudioSynthesizer interface {
	Synthesize(ctx context.Context, req speech.Request) narration.Results
	Resynthesize(ctx context.Context, req speech.ResynthesizeRequest) (narration.Result, error)
}

type Service struct {
	courses   course.Store
	generator TextGenerator
	speech    AudioSynthesizer
	publisher broadcast.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// New wires a service. Nil courses or publisher fall back to no-ops.
func New(
	courses course.Store,
	gen TextGenerator,
	synth AudioSynthesizer,
	publisher broadcast.Publisher,
	logger *zap.Logger,
) *Service {
	if courses == nil {
		courses = course.NopStore{}
	}
	if publisher == nil {
		publisher = broadcast.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		courses:   courses,
		generator: gen,
		speech:    synth,
		publisher: publisher,
		logger:    logger.Named("pipeline"),
		now:       time.Now,
	}
}

// Process validates req and returns whatever languages succeeded. Only
// ErrInvalidRequest is returned; every other failure is logged and counted.
func (s *Service) Process(ctx context.Context, req Request) (Response, error) {
	if err := req.Validate(); err != nil {
		return Response{}, err
	}

	logger := logging.Or(ctx, s.logger).With(zap.String("course_id", req.CourseID))
	ctx = logging.WithLogger(ctx, logger)

	languages := s.resolveLanguages(ctx, req)

	if req.CourseID != "" {
		s.courses.LogEvent(ctx, req.CourseID, course.NewSlideChangeEvent(req.Context, languages, s.now()))
	}

	results := s.generator.Generate(ctx, generator.Request{
		Context:   req.Context,
		CourseID:  req.CourseID,
		Languages: languages,
	})

	if s.speech != nil && len(results) > 0 {
		results = s.speech.Synthesize(ctx, speech.Request{
			Context:  req.Context,
			CourseID: req.CourseID,
			Results:  results,
		})
	}

	resp := Response{Languages: make(map[string]LanguageResult, len(results))}
	for lang, r := range results {
		resp.Languages[lang] = LanguageResult{
			Text:      r.Text,
			AudioURL:  r.AudioURL,
			SlideLink: req.LanguageSpecificSlideLinks[lang],
		}
	}

	if len(results) == 0 {
		logger.Warn("no languages produced, skipping broadcast", zap.Strings("languages", languages))
		return resp, nil
	}

	s.publish(ctx, req, languages, results)
	return resp, nil
}

func (s *Service) publish(ctx context.Context, req Request, languages []string, results narration.Results) {
	start := time.Now()
	defer metrics.ObservePhase(metrics.PhasePublish, start)

	b := broadcast.Broadcast{
		CourseID:             req.CourseID,
		PresentationFilename: req.PresentationFilename,
		PresentationID:       narration.NormalizePresentationID(req.PresentationFilename),
		SlideID:              narration.SlideID(req.PageNumber),
		PageNumber:           req.PageNumber,
		Context:              req.Context,
		SupportedLanguages:   languages,
		Languages:            broadcast.FromResults(results, req.LanguageSpecificSlideLinks),
	}

	if err := s.publisher.Publish(ctx, b); err != nil {
		metrics.PublishFailuresTotal.Inc()
		logging.Or(ctx, s.logger).Error("PublishFailure",
			zap.String("scope", b.Scope()),
			zap.String("presentation_id", b.PresentationID),
			zap.String("slide_id", b.SlideID),
			zap.Error(err),
		)
	}
}

// resolveLanguages prefers the request list, then the course list, then
// the defaults.
func (s *Service) resolveLanguages(ctx context.Context, req Request) []string {
	if langs := dedupe(req.Languages); len(langs) > 0 {
		return langs
	}
	if req.CourseID != "" {
		langs, err := s.courses.Languages(ctx, req.CourseID)
		if err != nil {
			logging.Or(ctx, s.logger).Warn("course languages lookup failed, using defaults", zap.Error(err))
		}
		if langs = dedupe(langs); len(langs) > 0 {
			if len(langs) > MaxLanguages {
				langs = langs[:MaxLanguages]
			}
			return langs
		}
	}
	return append([]string(nil), course.DefaultLanguages...)
}

// Resynthesize replaces the narration text and audio for one slot.
func (s *Service) Resynthesize(ctx context.Context, req speech.ResynthesizeRequest) (narration.Result, error) {
	if s.speech == nil {
		return narration.Result{}, fmt.Errorf("audio synthesis: %w", narration.ErrNotConfigured)
	}
	if err := validateLanguage(req.Language); err != nil {
		return narration.Result{}, err
	}
	if len(req.Context) > MaxContextBytes {
		return narration.Result{}, fmt.Errorf("context exceeds %d bytes: %w", MaxContextBytes, narration.ErrInvalidRequest)
	}
	return s.speech.Resynthesize(ctx, req)
}
