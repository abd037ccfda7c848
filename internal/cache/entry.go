package cache

import (
	"context"
	"time"
)

// Stored field names. Every backend and the admin tooling share them.
const (
	FieldMessage     = "message"
	FieldLanguage    = "language_code"
	FieldContext     = "context"
	FieldContextHash = "context_hash"
	FieldAudioURL    = "audio_url"
	FieldCourseIDs   = "course_ids"
	FieldUpdatedAt   = "updated_at"
)

// DefaultPrefix names the cache collection, table prefix or key prefix.
const DefaultPrefix = "langbridge_presentation_cache"

// Entry is one cached narration for a (language, normalized context) pair.
type Entry struct {
	Key         string
	Language    string
	Context     string
	ContextHash string
	Message     string
	AudioURL    string
	CourseIDs   []string
	UpdatedAt   time.Time
}

// Document is the set of fields merged into an entry by a single write.
// Empty AudioURL and CourseID leave the stored values untouched.
type Document struct {
	Language    string
	Context     string
	ContextHash string
	Message     string
	AudioURL    string
	CourseID    string
	UpdatedAt   time.Time
}

// Backend is a document store that can merge fields and union course ids
// atomically within one document.
type Backend interface {
	Fetch(ctx context.Context, key string) (Entry, bool, error)
	MergeDocument(ctx context.Context, key string, doc Document) error
}

// PutRequest describes a cache write.
type PutRequest struct {
	Language string
	Text     string
	Context  string
	CourseID string
	AudioURL string
}

// Store is the message cache used by generation and synthesis.
type Store interface {
	Get(ctx context.Context, language, narrationContext string) (Entry, bool, error)
	Put(ctx context.Context, req PutRequest) error
}
