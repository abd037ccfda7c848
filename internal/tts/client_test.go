package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"narration-gateway/internal/voice"
)

func TestSynthesize(t *testing.T) {
	t.Parallel()

	var got synthesizeRequest
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != synthesizePath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotKey = r.Header.Get("X-Goog-Api-Key")
		if r.URL.RawQuery != "" {
			t.Errorf("credentials must not travel in the query, got %q", r.URL.RawQuery)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		fmt.Fprintf(w, `{"audioContent":%q}`, base64.StdEncoding.EncodeToString([]byte("ID3-mp3")))
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, APIKey: "tts-key"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	audio, err := c.Synthesize(context.Background(), Request{
		Text: "大家好。",
		Voice: voice.Config{
			LanguageCode:          "zh-CN",
			VoiceName:             "cmn-CN-Chirp3-HD-Achernar",
			Gender:                voice.GenderFemale,
			EffectiveLanguageCode: "cmn-CN",
		},
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if string(audio) != "ID3-mp3" {
		t.Fatalf("unexpected audio %q", audio)
	}
	if gotKey != "tts-key" {
		t.Fatalf("api key not sent, got %q", gotKey)
	}
	if got.Voice.LanguageCode != "cmn-CN" || got.Voice.Name != "cmn-CN-Chirp3-HD-Achernar" {
		t.Fatalf("effective language should be sent: %#v", got.Voice)
	}
	if got.AudioConfig.AudioEncoding != "MP3" || got.AudioConfig.SpeakingRate != 1.0 {
		t.Fatalf("unexpected audio config %#v", got.AudioConfig)
	}
}

func TestSynthesizeBearerToken(t *testing.T) {
	t.Parallel()

	var auth, key string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		key = r.Header.Get("X-Goog-Api-Key")
		fmt.Fprint(w, `{"audioContent":"AAEC"}`)
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, AccessToken: "tok"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := c.Synthesize(context.Background(), Request{Text: "hi", Voice: voice.Config{LanguageCode: "en-US"}}); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if auth != "Bearer tok" || key != "" {
		t.Fatalf("unexpected auth %q key %q", auth, key)
	}
}

func TestSynthesizeErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"code":400,"message":"Voice does not exist","status":"INVALID_ARGUMENT"}}`)
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, APIKey: "k"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = c.Synthesize(context.Background(), Request{Text: "x", Voice: voice.Config{LanguageCode: "fr"}})
	if err == nil || !strings.Contains(err.Error(), "Voice does not exist") {
		t.Fatalf("expected api error, got %v", err)
	}

	if _, err := c.Synthesize(context.Background(), Request{Text: "  "}); err == nil {
		t.Fatalf("expected error for empty text")
	}
}

func TestNewClientRequiresCredentials(t *testing.T) {
	if _, err := NewClient(Config{}, nil); err == nil {
		t.Fatalf("expected credentials error")
	}
}

func TestSynthesizeRateLimited(t *testing.T) {
	t.Parallel()

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"audioContent":"AAEC"}`)
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, APIKey: "k", RequestsPerMinute: 1, Burst: 1}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	req := Request{Text: "hi", Voice: voice.Config{LanguageCode: "en-US"}}
	if _, err := c.Synthesize(context.Background(), req); err != nil {
		t.Fatalf("first Synthesize: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.Synthesize(ctx, req); err == nil || !strings.Contains(err.Error(), "rate limit") {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one upstream call, got %d", calls)
	}
}

func TestSynthesizeErrorOmitsAPIKey(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	c, err := NewClient(Config{BaseURL: addr, APIKey: "SECRET-KEY-123", MaxRetries: 1, BaseBackoff: time.Millisecond}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = c.Synthesize(context.Background(), Request{Text: "hi", Voice: voice.Config{LanguageCode: "en-US"}})
	if err == nil {
		t.Fatalf("expected connection error")
	}
	if strings.Contains(err.Error(), "SECRET-KEY-123") {
		t.Fatalf("api key leaked into error: %v", err)
	}
}
