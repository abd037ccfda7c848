package speech

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxSpeechChars is the longest input sent to the synthesis service.
const MaxSpeechChars = 5000

var (
	controlChars = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f-\x9f]`)

	symbolReplacer = strings.NewReplacer(
		"⟪", "",
		"⟫", "",
		"⧸", "/",
	)
)

// SanitizeForSpeech strips characters the synthesizer reads badly, collapses
// whitespace and limits the text to MaxSpeechChars runes.
func SanitizeForSpeech(text string) string {
	return sanitize(text, MaxSpeechChars)
}

func sanitize(text string, maxRunes int) string {
	text = symbolReplacer.Replace(text)
	text = controlChars.ReplaceAllString(text, "")
	text = strings.Join(strings.Fields(text), " ")

	if utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	return strings.TrimSpace(firstChunk(text, maxRunes))
}

// firstChunk returns the longest run of whole sentences that fits in
// maxRunes. A leading sentence longer than maxRunes is cut at maxRunes.
func firstChunk(text string, maxRunes int) string {
	lastBoundary := 0
	n := 0
	for i, r := range text {
		if n == maxRunes {
			break
		}
		n++
		if isSentenceEnd(r) {
			lastBoundary = i + utf8.RuneLen(r)
		}
	}
	if lastBoundary > 0 {
		return text[:lastBoundary]
	}
	return truncateRunes(text, maxRunes)
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
