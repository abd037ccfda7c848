package pipeline

import (
	"fmt"
	"strings"

	"narration-gateway/internal/narration"
)

const (
	MaxContextBytes    = 64 << 10
	MaxLanguages       = 16
	MaxLanguageCodeLen = 35
)

// Request is one narration request.
type Request struct {
	Context                    string            `json:"context"`
	Languages                  []string          `json:"languages,omitempty"`
	CourseID                   string            `json:"courseId,omitempty"`
	PresentationFilename       string            `json:"presentationFilename,omitempty"`
	PageNumber                 *int              `json:"pageNumber,omitempty"`
	LanguageSpecificSlideLinks map[string]string `json:"languageSpecificSlideLinks,omitempty"`
}

// LanguageResult is the response entry for one language.
type LanguageResult struct {
	Text      string `json:"text"`
	AudioURL  string `json:"audioUrl,omitempty"`
	SlideLink string `json:"slideLink,omitempty"`
}

type Response struct {
	Languages map[string]LanguageResult `json:"languages"`
}

// Validate rejects structurally invalid requests with ErrInvalidRequest.
func (r *Request) Validate() error {
	if len(r.Context) > MaxContextBytes {
		return fmt.Errorf("context exceeds %d bytes: %w", MaxContextBytes, narration.ErrInvalidRequest)
	}
	if len(r.Languages) > MaxLanguages {
		return fmt.Errorf("at most %d languages are allowed: %w", MaxLanguages, narration.ErrInvalidRequest)
	}
	for i, lang := range r.Languages {
		if err := validateLanguage(lang); err != nil {
			return fmt.Errorf("languages[%d]: %w", i, err)
		}
	}
	for lang := range r.LanguageSpecificSlideLinks {
		if err := validateLanguage(lang); err != nil {
			return fmt.Errorf("languageSpecificSlideLinks: %w", err)
		}
	}
	if r.PageNumber != nil && *r.PageNumber < 0 {
		return fmt.Errorf("pageNumber must be >= 0: %w", narration.ErrInvalidRequest)
	}
	return nil
}

func validateLanguage(lang string) error {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return fmt.Errorf("language code is empty: %w", narration.ErrInvalidRequest)
	}
	if len(lang) > MaxLanguageCodeLen {
		return fmt.Errorf("language code %q is too long: %w", lang[:MaxLanguageCodeLen]+"...", narration.ErrInvalidRequest)
	}
	return nil
}

// dedupe trims codes and drops repeats, keeping first-seen order.
func dedupe(languages []string) []string {
	seen := make(map[string]struct{}, len(languages))
	out := make([]string, 0, len(languages))
	for _, l := range languages {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}
