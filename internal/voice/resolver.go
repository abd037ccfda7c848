// Package voice resolves the synthesis voice for a course and language.
package voice

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"narration-gateway/internal/course"
	"narration-gateway/pkg/logging/logging"
)

// SSML genders understood by the synthesis service.
const (
	GenderFemale      = "FEMALE"
	GenderMale        = "MALE"
	GenderNeutral     = "NEUTRAL"
	GenderUnspecified = "SSML_VOICE_GENDER_UNSPECIFIED"
)

// Config is the resolved voice for one synthesis call.
type Config struct {
	LanguageCode          string
	VoiceName             string
	Gender                string
	EffectiveLanguageCode string
}

// Defaults is the built-in voice table used when a course has no override.
var Defaults = map[string]course.Voice{
	"en-US":  {Name: "en-US-Neural2-F", Gender: GenderFemale},
	"zh-CN":  {Name: "cmn-CN-Chirp3-HD-Achernar", Gender: GenderFemale},
	"yue-HK": {Name: "yue-HK-Standard-A", Gender: GenderFemale},
	"zh-TW":  {Name: "zh-TW-Standard-A", Gender: GenderFemale},
}

// languageOverride pins the language tag a voice family expects when it
// differs from the nominal request code.
type languageOverride struct {
	voicePrefix string
	requested   string
	effective   string
}

var languageOverrides = []languageOverride{
	{voicePrefix: "cmn-CN", requested: "zh-CN", effective: "cmn-CN"},
	{voicePrefix: "cmn-TW", requested: "zh-TW", effective: "cmn-TW"},
}

// VoiceSource supplies per-course overrides.
type VoiceSource interface {
	VoiceParams(ctx context.Context, courseID, language string) (course.Voice, bool, error)
}

// Resolver picks a voice from the course override, then the default table,
// then a generic voice for the requested language.
type Resolver struct {
	source VoiceSource
	logger *zap.Logger
}

// NewResolver creates a resolver. source may be nil.
func NewResolver(source VoiceSource, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{source: source, logger: logger.Named("voice")}
}

// Resolve never fails; lookup errors fall through to the defaults.
func (r *Resolver) Resolve(ctx context.Context, courseID, language string) Config {
	language = strings.TrimSpace(language)
	if r == nil {
		r = &Resolver{logger: zap.NewNop()}
	}
	logger := logging.Or(ctx, r.logger)

	var chosen course.Voice
	found := false

	if r.source != nil && strings.TrimSpace(courseID) != "" {
		v, ok, err := r.source.VoiceParams(ctx, courseID, language)
		switch {
		case err != nil:
			logger.Warn("course voice lookup failed, using defaults",
				zap.String("course_id", courseID),
				zap.String("language", language),
				zap.Error(err),
			)
		case ok:
			chosen, found = v, true
		}
	}

	if !found {
		if v, ok := Defaults[language]; ok {
			chosen, found = v, true
		}
	}

	if !found {
		logger.Warn("no voice configured, using generic voice", zap.String("language", language))
		return Config{
			LanguageCode:          language,
			Gender:                GenderFemale,
			EffectiveLanguageCode: language,
		}
	}

	return Config{
		LanguageCode:          language,
		VoiceName:             chosen.Name,
		Gender:                normalizeGender(chosen.Gender),
		EffectiveLanguageCode: effectiveLanguage(chosen.Name, language),
	}
}

func normalizeGender(g string) string {
	switch strings.ToUpper(strings.TrimSpace(g)) {
	case GenderMale:
		return GenderMale
	case GenderNeutral:
		return GenderNeutral
	case GenderUnspecified:
		return GenderUnspecified
	default:
		return GenderFemale
	}
}

func effectiveLanguage(voiceName, requested string) string {
	for _, o := range languageOverrides {
		if requested == o.requested && strings.HasPrefix(voiceName, o.voicePrefix) {
			return o.effective
		}
	}
	return requested
}
