package speech

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"narration-gateway/internal/narration"
)

// AudioFilename is the object name for the narration of context in
// language. It depends only on the normalized context, so every text
// generated for one slot shares one object.
func AudioFilename(language, narrationContext string) string {
	digest := narration.ContextHash(narrationContext)
	if digest == "" {
		digest = "default"
	}
	return "speech_" + strings.TrimSpace(language) + "_" + digest + ".mp3"
}

// welcomeAudioFilename names audio for an empty context by the text it
// speaks, since welcome texts are not cached and differ per call.
func welcomeAudioFilename(language, text string) string {
	sum := sha256.Sum256([]byte(narration.Normalize(text)))
	return "speech_" + strings.TrimSpace(language) + "_welcome_" + hex.EncodeToString(sum[:])[:narration.HashLength] + ".mp3"
}

func audioFilenameFor(language, normalizedContext, text string) string {
	if normalizedContext == "" {
		return welcomeAudioFilename(language, text)
	}
	return AudioFilename(language, normalizedContext)
}
