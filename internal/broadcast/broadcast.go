// Package broadcast publishes narration to the audience-facing store: a
// durable per-slide registry and a single live pointer per course.
package broadcast

import (
	"context"
	"strings"
	"time"

	"narration-gateway/internal/narration"
)

const (
	DefaultPrefix = "presentation_broadcast"
	DefaultScope  = "current"
)

// SlideContent is what an audience client renders for one language.
type SlideContent struct {
	Text      string `json:"text"`
	AudioURL  string `json:"audio_url,omitempty"`
	SlideLink string `json:"slide_link,omitempty"`
}

// Broadcast is one publish. PresentationID and SlideID are optional; the
// registry is written only when both are set.
type Broadcast struct {
	CourseID             string
	PresentationFilename string
	PresentationID       string
	SlideID              string
	PageNumber           *int
	Context              string
	SupportedLanguages   []string
	Languages            map[string]SlideContent
}

// Scope is the document id everything is written under.
func (b Broadcast) Scope() string {
	if id := strings.TrimSpace(b.CourseID); id != "" {
		return id
	}
	return DefaultScope
}

func (b Broadcast) hasSlide() bool {
	return b.PresentationID != "" && b.SlideID != ""
}

// SlideMeta is the registry metadata stored beside the per-language content.
type SlideMeta struct {
	PageNumber         *int      `json:"page_number,omitempty"`
	ContextHash        string    `json:"context_hash,omitempty"`
	OriginalContext    string    `json:"original_context"`
	CourseID           string    `json:"course_id,omitempty"`
	SupportedLanguages []string  `json:"supported_languages,omitempty"`
	PptFilename        string    `json:"ppt_filename,omitempty"`
	PptFilenameNorm    string    `json:"ppt_filename_norm,omitempty"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// LivePointer is the single current-state document for a scope.
type LivePointer struct {
	RevisionID            string                  `json:"revision_id"`
	CurrentPresentationID string                  `json:"current_presentation_id"`
	CurrentSlideID        string                  `json:"current_slide_id"`
	LatestLanguages       map[string]SlideContent `json:"latest_languages"`
	UpdatedAt             time.Time               `json:"updated_at"`
}

// Publisher writes a broadcast.
type Publisher interface {
	Publish(ctx context.Context, b Broadcast) error
}

// Reader returns the live pointer for a scope.
type Reader interface {
	Live(ctx context.Context, scope string) (LivePointer, bool, error)
}

// NopPublisher discards broadcasts.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Broadcast) error { return nil }

// FromResults converts pipeline results into slide content, attaching the
// language-specific slide links.
func FromResults(results narration.Results, slideLinks map[string]string) map[string]SlideContent {
	out := make(map[string]SlideContent, len(results))
	for lang, r := range results {
		out[lang] = SlideContent{
			Text:      r.Text,
			AudioURL:  r.AudioURL,
			SlideLink: slideLinks[lang],
		}
	}
	return out
}

func slideMeta(b Broadcast, now time.Time) SlideMeta {
	return SlideMeta{
		PageNumber:         b.PageNumber,
		ContextHash:        narration.ContextHash(b.Context),
		OriginalContext:    b.Context,
		CourseID:           b.CourseID,
		SupportedLanguages: b.SupportedLanguages,
		PptFilename:        b.PresentationFilename,
		PptFilenameNorm:    b.PresentationID,
		UpdatedAt:          now,
	}
}

func livePointer(b Broadcast, revision string, now time.Time) LivePointer {
	langs := b.Languages
	if langs == nil {
		langs = map[string]SlideContent{}
	}
	return LivePointer{
		RevisionID:            revision,
		CurrentPresentationID: b.PresentationID,
		CurrentSlideID:        b.SlideID,
		LatestLanguages:       langs,
		UpdatedAt:             now,
	}
}
