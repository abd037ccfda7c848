package narration

import (
	"strconv"
	"strings"
)

// deckExtensions are the only extensions NormalizePresentationID removes.
var deckExtensions = []string{".pptx", ".ppt", ".pdf"}

// filename suffixes produced by the deck export tooling, stripped in order.
var presentationSuffixes = []string{
	"_with_visuals",
	"_with_notes",
	"_visuals",
	"_en",
	"_zh-cn",
	"_yue-hk",
}

// NormalizePresentationID maps a deck filename to a stable presentation id,
// so that "Lecture1_with_notes.PPTX" and "lecture1.pptx" resolve together.
// Path separators become underscores so the id is safe as a document key.
func NormalizePresentationID(filename string) string {
	name := strings.ToLower(strings.TrimSpace(filename))
	if name == "" {
		return ""
	}

	for _, ext := range deckExtensions {
		if trimmed, ok := strings.CutSuffix(name, ext); ok {
			name = trimmed
			break
		}
	}

	for _, suffix := range presentationSuffixes {
		name = strings.TrimSuffix(name, suffix)
	}

	return strings.NewReplacer("/", "_", `\`, "_").Replace(name)
}

// SlideID returns the registry slide identifier for a page number, or "" when
// no page is known.
func SlideID(pageNumber *int) string {
	if pageNumber == nil {
		return ""
	}
	return strconv.Itoa(*pageNumber)
}
