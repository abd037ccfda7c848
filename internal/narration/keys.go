// Package narration holds the identity rules shared by every component that
// reads or writes narration state: context normalization, cache keys, the
// context hash and presentation identifiers.
package narration

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	// KeyVersion prefixes every cache key. Bump it to invalidate all entries.
	KeyVersion = "v1"

	// HashLength is the number of hex characters kept from the SHA-256 digest.
	HashLength = 12

	defaultDigest   = "default"
	unknownLanguage = "unknown"
)

// Normalize trims s and collapses every whitespace run to a single space.
// Whitespace-only input normalizes to "".
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeLanguage lowercases and trims a language code, returning
// "unknown" for empty input.
func NormalizeLanguage(language string) string {
	lang := strings.ToLower(strings.TrimSpace(language))
	if lang == "" {
		return unknownLanguage
	}
	return lang
}

// ContextHash returns the first HashLength hex characters of the SHA-256 of
// the normalized context, or "" when the normalized context is empty.
func ContextHash(context string) string {
	norm := Normalize(context)
	if norm == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:])[:HashLength]
}

// DeriveKey builds the cache key for a (language, context) pair:
//
//	v1:<lang>:<hash12>   for non-empty context
//	v1:<lang>:default    for empty context
//
// The truncated hash gives 48 bits of key space. Two different contexts in
// the same language can collide; at the expected number of slides the odds
// are negligible, but the key is not collision-free and must not be used as
// a content integrity check.
func DeriveKey(language, context string) string {
	digest := ContextHash(context)
	if digest == "" {
		digest = defaultDigest
	}
	return KeyVersion + ":" + NormalizeLanguage(language) + ":" + digest
}

// SessionID returns the generation session identifier for a language and
// context. The same slide and language always map to the same session, and a
// different context never shares one.
func SessionID(language, context string) string {
	digest := ContextHash(context)
	if digest == "" {
		digest = defaultDigest
	}
	return "presentation_gen_" + strings.TrimSpace(language) + "_" + digest
}
