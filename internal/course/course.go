// Package course reads per-course configuration (languages and voices) and
// records presentation events against a course.
package course

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultLanguages applies when a course is unknown or lists no languages.
var DefaultLanguages = []string{"en-US", "zh-CN"}

// EventSlideChange is logged whenever a narration request is processed.
const EventSlideChange = "slide_change"

const snippetRunes = 50

// Voice is a per-course voice override for one language.
type Voice struct {
	Name   string `json:"name" toml:"name" yaml:"name"`
	Gender string `json:"gender,omitempty" toml:"gender" yaml:"gender"`
}

// Course is the stored configuration document for a course.
type Course struct {
	Languages    []string         `json:"languages,omitempty" toml:"languages" yaml:"languages"`
	VoiceConfigs map[string]Voice `json:"voice_configs,omitempty" toml:"voice_configs" yaml:"voice_configs"`
}

// Event is a presentation event appended to a course's log.
type Event struct {
	ID             string    `json:"id"`
	Type           string    `json:"event_type"`
	ContextSnippet string    `json:"context_snippet"`
	Languages      []string  `json:"languages"`
	Timestamp      time.Time `json:"timestamp"`
}

// Store is the course configuration collaborator.
type Store interface {
	// Languages returns the course languages, or DefaultLanguages.
	Languages(ctx context.Context, courseID string) ([]string, error)
	// VoiceParams returns the course override for language, if any.
	VoiceParams(ctx context.Context, courseID, language string) (Voice, bool, error)
	// LogEvent records ev without blocking the caller. Delivery is best-effort.
	LogEvent(ctx context.Context, courseID string, ev Event)
}

// NewSlideChangeEvent builds the event logged for a narration request.
func NewSlideChangeEvent(narrationContext string, languages []string, now time.Time) Event {
	return Event{
		ID:             uuid.NewString(),
		Type:           EventSlideChange,
		ContextSnippet: Snippet(narrationContext),
		Languages:      append([]string(nil), languages...),
		Timestamp:      now.UTC(),
	}
}

// Snippet returns the first 50 runes of s, followed by "..." when cut.
func Snippet(s string) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= snippetRunes {
		return s
	}
	return string(runes[:snippetRunes]) + "..."
}

func languagesOrDefault(c *Course) []string {
	if c == nil || len(c.Languages) == 0 {
		return append([]string(nil), DefaultLanguages...)
	}
	return append([]string(nil), c.Languages...)
}

func voiceFor(c *Course, language string) (Voice, bool) {
	if c == nil {
		return Voice{}, false
	}
	v, ok := c.VoiceConfigs[language]
	if !ok || strings.TrimSpace(v.Name) == "" {
		return Voice{}, false
	}
	return v, true
}

// NopStore serves defaults for every course and drops events.
type NopStore struct{}

func (NopStore) Languages(context.Context, string) ([]string, error) {
	return append([]string(nil), DefaultLanguages...), nil
}

func (NopStore) VoiceParams(context.Context, string, string) (Voice, bool, error) {
	return Voice{}, false, nil
}

func (NopStore) LogEvent(context.Context, string, Event) {}
