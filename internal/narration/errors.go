package narration

import "errors"

var (
	// ErrCacheMiss is a normal control state, never surfaced to callers.
	ErrCacheMiss = errors.New("narration: cache miss")

	// ErrGenerationFailed marks a language whose text generation errored or
	// returned nothing.
	ErrGenerationFailed = errors.New("narration: generation failed")

	// ErrSynthesisFailed marks a language that degraded to text-only.
	ErrSynthesisFailed = errors.New("narration: synthesis failed")

	// ErrPublishFailed marks a broadcast write that did not land.
	ErrPublishFailed = errors.New("narration: publish failed")

	// ErrNotConfigured is returned when a component is disabled by
	// configuration.
	ErrNotConfigured = errors.New("narration: not configured")

	// ErrInvalidRequest is the only error reported back to HTTP callers.
	ErrInvalidRequest = errors.New("narration: invalid request")
)
