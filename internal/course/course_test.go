package course

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap/zaptest"
)

func TestSnippet(t *testing.T) {
	if got := Snippet("short"); got != "short" {
		t.Fatalf("unexpected snippet %q", got)
	}
	long := strings.Repeat("字", 60)
	got := Snippet(long)
	if !strings.HasSuffix(got, "...") || len([]rune(got)) != 53 {
		t.Fatalf("expected 50 runes plus ellipsis, got %q", got)
	}
}

func TestNewSlideChangeEvent(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.FixedZone("HKT", 8*3600))
	ev := NewSlideChangeEvent("Today we cover osmosis", []string{"en-US"}, now)
	if ev.Type != EventSlideChange || ev.ID == "" {
		t.Fatalf("unexpected event %#v", ev)
	}
	if ev.Timestamp.Location() != time.UTC {
		t.Fatalf("timestamp should be UTC")
	}
}

const catalogTOML = `
[courses.bio101]
languages = ["en-US", "yue-HK"]

[courses.bio101.voice_configs.en-US]
name = "en-US-Neural2-C"
gender = "MALE"

[courses.empty]
`

func writeCatalog(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "courses.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	return path
}

func TestFileStore(t *testing.T) {
	path := writeCatalog(t, t.TempDir(), catalogTOML)
	s, err := NewFileStore(path, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	langs, _ := s.Languages(ctx, "bio101")
	if strings.Join(langs, ",") != "en-US,yue-HK" {
		t.Fatalf("unexpected languages %v", langs)
	}
	langs, _ = s.Languages(ctx, "empty")
	if strings.Join(langs, ",") != "en-US,zh-CN" {
		t.Fatalf("expected default languages, got %v", langs)
	}

	v, ok, _ := s.VoiceParams(ctx, "bio101", "en-US")
	if !ok || v.Name != "en-US-Neural2-C" || v.Gender != "MALE" {
		t.Fatalf("unexpected voice %#v ok=%v", v, ok)
	}
	if _, ok, _ := s.VoiceParams(ctx, "bio101", "fr-FR"); ok {
		t.Fatalf("expected no override for fr-FR")
	}
}

func TestFileStoreReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeCatalog(t, dir, catalogTOML)
	s, err := NewFileStore(path, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	defer s.Close()
	if err := s.Watch(); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	writeCatalog(t, dir, "[courses.bio101]\nlanguages = [\"zh-TW\"]\n")

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		langs, _ := s.Languages(context.Background(), "bio101")
		if len(langs) == 1 && langs[0] == "zh-TW" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("catalog was not reloaded")
}

func TestFileStoreRejectsBadTOML(t *testing.T) {
	path := writeCatalog(t, t.TempDir(), "[courses\n")
	if _, err := NewFileStore(path, zaptest.NewLogger(t)); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestFileStoreYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "courses.yaml")
	body := `
courses:
  chem200:
    languages: [zh-TW, en-US]
    voice_configs:
      zh-TW:
        name: cmn-TW-Wavenet-A
        gender: female
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	s, err := NewFileStore(path, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	langs, _ := s.Languages(ctx, "chem200")
	if strings.Join(langs, ",") != "zh-TW,en-US" {
		t.Fatalf("unexpected languages %v", langs)
	}
	v, ok, _ := s.VoiceParams(ctx, "chem200", "zh-TW")
	if !ok || v.Name != "cmn-TW-Wavenet-A" || v.Gender != "female" {
		t.Fatalf("unexpected voice %#v ok=%v", v, ok)
	}
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	doc, _ := json.Marshal(Course{
		Languages:    []string{"zh-TW"},
		VoiceConfigs: map[string]Voice{"zh-TW": {Name: "cmn-TW-Wavenet-A"}},
	})
	if err := mr.Set("courses:chem", string(doc)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	s := NewRedisStore(client, "", zaptest.NewLogger(t))
	ctx := context.Background()

	langs, err := s.Languages(ctx, "chem")
	if err != nil || len(langs) != 1 || langs[0] != "zh-TW" {
		t.Fatalf("unexpected languages %v err=%v", langs, err)
	}
	langs, err = s.Languages(ctx, "missing")
	if err != nil || len(langs) != 2 {
		t.Fatalf("expected defaults for unknown course, got %v err=%v", langs, err)
	}

	v, ok, err := s.VoiceParams(ctx, "chem", "zh-TW")
	if err != nil || !ok || v.Name != "cmn-TW-Wavenet-A" {
		t.Fatalf("unexpected voice %#v ok=%v err=%v", v, ok, err)
	}

	s.LogEvent(ctx, "chem", NewSlideChangeEvent("notes", langs, time.Now()))
	s.LogEvent(ctx, "", NewSlideChangeEvent("dropped", nil, time.Now()))
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	n, err := client.XLen(ctx, "courses:chem:logs").Result()
	if err != nil || n != 1 {
		t.Fatalf("expected one logged event, got %d err=%v", n, err)
	}
}

func TestNopStore(t *testing.T) {
	var s Store = NopStore{}
	langs, err := s.Languages(context.Background(), "x")
	if err != nil || len(langs) != 2 {
		t.Fatalf("unexpected defaults %v", langs)
	}
	s.LogEvent(context.Background(), "x", Event{})
}
