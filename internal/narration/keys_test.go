package narration

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"":                       "",
		"   \t\n ":               "",
		"  Hello   world ":       "Hello world",
		"line one\nline\ttwo":    "line one line two",
		"already normal":         "already normal",
		"\u3000全角 空白\u3000": "全角 空白",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDeriveKeyDeterministic(t *testing.T) {
	a := DeriveKey("en-US", "Photosynthesis converts light into chemical energy.")
	b := DeriveKey("en-US", "Photosynthesis converts light into chemical energy.")
	if a != b {
		t.Fatalf("expected identical keys, got %q and %q", a, b)
	}

	parts := strings.Split(a, ":")
	if len(parts) != 3 || parts[0] != KeyVersion || parts[1] != "en-us" {
		t.Fatalf("unexpected key layout: %q", a)
	}
	if len(parts[2]) != HashLength {
		t.Fatalf("expected %d hex chars, got %q", HashLength, parts[2])
	}
}

func TestDeriveKeyWhitespaceInvariant(t *testing.T) {
	if DeriveKey("en-US", "  Hello   world ") != DeriveKey("en-US", "Hello world") {
		t.Fatalf("whitespace changed the cache key")
	}
}

func TestDeriveKeySlideReorderInvariant(t *testing.T) {
	// The same notes moved from slide 3 to slide 7 carry no positional input.
	notes := "Key characteristics of mitochondria"
	slide3 := DeriveKey("zh-CN", notes)
	slide7 := DeriveKey("zh-CN", "\n"+notes+"\n")
	if slide3 != slide7 {
		t.Fatalf("expected reordered slide to share the key: %q vs %q", slide3, slide7)
	}
}

func TestDeriveKeyEmptyContextAndLanguage(t *testing.T) {
	if got := DeriveKey("en-US", "   "); got != "v1:en-us:default" {
		t.Fatalf("unexpected empty-context key %q", got)
	}
	if got := DeriveKey("  ", ""); got != "v1:unknown:default" {
		t.Fatalf("unexpected unknown-language key %q", got)
	}
}

func TestDeriveKeyDistinguishesLanguages(t *testing.T) {
	if DeriveKey("en-US", "same") == DeriveKey("zh-CN", "same") {
		t.Fatalf("different languages must not share a key")
	}
}

func TestContextHash(t *testing.T) {
	if ContextHash("") != "" {
		t.Fatalf("empty context must hash to empty string")
	}
	// sha256("Hello world") = 64ec88ca00b268e5ba1a35678a1b5316d212f4f366b2477232534a8aeca37f3c
	if got := ContextHash(" Hello \n world "); got != "64ec88ca00b2" {
		t.Fatalf("unexpected context hash %q", got)
	}
}

func TestSessionID(t *testing.T) {
	if got := SessionID("en-US", ""); got != "presentation_gen_en-US_default" {
		t.Fatalf("unexpected default session id %q", got)
	}
	a := SessionID("en-US", "slide one")
	b := SessionID("en-US", "slide two")
	if a == b {
		t.Fatalf("different contexts must not share a session")
	}
	if SessionID("en-US", "slide  one") != a {
		t.Fatalf("session id must follow normalized context")
	}
}

func TestNormalizePresentationID(t *testing.T) {
	cases := map[string]string{
		"":                          "",
		"Lecture1.pptx":             "lecture1",
		"Lecture1_with_notes.PPTX":  "lecture1",
		"biology_with_visuals.pptx": "biology",
		"intro_zh-CN.pptx":          "intro",
		"week2/slides_en.pptx":      "week2_slides",
		`C:\decks\chem_yue-hk.pptx`: "c:_decks_chem",
		"no-extension_visuals":      "no-extension",
		"lecture.v2_with_notes":     "lecture.v2",
		"Handout.PDF":               "handout",
		"legacy.ppt":                "legacy",
	}
	for in, want := range cases {
		if got := NormalizePresentationID(in); got != want {
			t.Fatalf("NormalizePresentationID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSlideID(t *testing.T) {
	if SlideID(nil) != "" {
		t.Fatalf("nil page must give empty slide id")
	}
	page := 12
	if SlideID(&page) != "12" {
		t.Fatalf("unexpected slide id %q", SlideID(&page))
	}
}
