package narration

// Result is the per-language outcome of the pipeline. AudioURL is empty when
// the language is text-only.
type Result struct {
	Text     string `json:"text"`
	AudioURL string `json:"audioUrl,omitempty"`
}

// HasAudio reports whether an audio URL is attached.
func (r Result) HasAudio() bool {
	return r.AudioURL != ""
}

// Results maps a language code to its narration result.
type Results map[string]Result

// Clone returns a shallow copy that can be mutated independently.
func (r Results) Clone() Results {
	out := make(Results, len(r))
	for lang, res := range r {
		out[lang] = res
	}
	return out
}
