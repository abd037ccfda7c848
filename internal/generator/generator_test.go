package generator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"narration-gateway/internal/cache"
	"narration-gateway/internal/llm"
	"narration-gateway/internal/narration"
)

type fakeLLM struct {
	mu       sync.Mutex
	requests []*llm.ChatRequest

	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32

	delay  time.Duration
	failOn string
	reply  string
}

func (f *fakeLLM) ChatCompletion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.failOn != "" && strings.Contains(req.SessionID, "_"+f.failOn+"_") {
		return nil, errors.New("upstream 500")
	}

	reply := f.reply
	if reply == "" {
		reply = "  narration for " + req.SessionID + "  "
	}
	return &llm.ChatResponse{Choices: []llm.ChatChoice{{Message: llm.ChatMessage{Role: llm.RoleAssistant, Content: reply}}}}, nil
}

func newTestGenerator(t *testing.T, client llm.Client) (*Generator, *cache.MemoryBackend) {
	t.Helper()
	backend := cache.NewMemoryBackend()
	store := cache.NewMessageCache(backend, zaptest.NewLogger(t))
	sessions := NewSessions(time.Minute, 4)
	t.Cleanup(func() { _ = sessions.Close() })
	return New(store, client, sessions, Config{}, zaptest.NewLogger(t)), backend
}

func TestGeneratePartialFailureIsolation(t *testing.T) {
	t.Parallel()

	client := &fakeLLM{failOn: "zh-CN"}
	g, _ := newTestGenerator(t, client)

	got := g.Generate(context.Background(), Request{
		Context:   "Photosynthesis converts light into chemical energy.",
		Languages: []string{"en-US", "zh-CN"},
	})

	if len(got) != 1 {
		t.Fatalf("expected only en-US, got %#v", got)
	}
	if _, ok := got["en-US"]; !ok {
		t.Fatalf("en-US missing: %#v", got)
	}
	if _, ok := got["zh-CN"]; ok {
		t.Fatalf("failed language must be absent")
	}
	if strings.HasPrefix(got["en-US"].Text, " ") {
		t.Fatalf("text should be trimmed, got %q", got["en-US"].Text)
	}
}

func TestGenerateEmptyOutputIsFailure(t *testing.T) {
	t.Parallel()

	client := &fakeLLM{reply: "   "}
	g, backend := newTestGenerator(t, client)

	got := g.Generate(context.Background(), Request{Context: "notes", Languages: []string{"en-US"}})
	if len(got) != 0 {
		t.Fatalf("expected no results, got %#v", got)
	}
	if backend.Len() != 0 {
		t.Fatalf("empty output must not be cached")
	}
}

func TestGenerateEmptyContextNotCached(t *testing.T) {
	t.Parallel()

	client := &fakeLLM{}
	g, backend := newTestGenerator(t, client)

	for i := 0; i < 2; i++ {
		got := g.Generate(context.Background(), Request{Context: "  \n ", Languages: []string{"en-US"}})
		if got["en-US"].Text == "" {
			t.Fatalf("expected welcome text")
		}
	}

	if backend.Len() != 0 {
		t.Fatalf("empty context must not create cache entries, have %d", backend.Len())
	}
	if client.calls.Load() != 2 {
		t.Fatalf("expected a generation call per request, got %d", client.calls.Load())
	}
	if !strings.Contains(client.requests[0].Messages[len(client.requests[0].Messages)-1].Content, "welcoming presentation introduction") {
		t.Fatalf("expected welcome prompt")
	}
}

func TestGenerateBoundedConcurrency(t *testing.T) {
	t.Parallel()

	client := &fakeLLM{delay: 30 * time.Millisecond}
	g, _ := newTestGenerator(t, client)

	langs := []string{"en-US", "zh-CN", "yue-HK", "zh-TW", "ja-JP", "ko-KR", "fr-FR", "de-DE"}
	got := g.Generate(context.Background(), Request{Context: "Cells divide by mitosis.", Languages: langs})

	if len(got) != len(langs) {
		t.Fatalf("expected %d results, got %d", len(langs), len(got))
	}
	if peak := client.peak.Load(); peak > 5 {
		t.Fatalf("peak in-flight generation calls %d exceeds 5", peak)
	}
}

func TestGenerateCacheFirst(t *testing.T) {
	t.Parallel()

	client := &fakeLLM{}
	g, backend := newTestGenerator(t, client)

	req := Request{Context: "Newton's   first law.", CourseID: "phys101", Languages: []string{"en-US", "zh-CN"}}
	first := g.Generate(context.Background(), req)
	if len(first) != 2 {
		t.Fatalf("expected 2 results, got %#v", first)
	}
	callsAfterFirst := client.calls.Load()

	second := g.Generate(context.Background(), Request{Context: "Newton's first law.", Languages: []string{"en-US", "zh-CN"}})
	if client.calls.Load() != callsAfterFirst {
		t.Fatalf("second identical request made %d generation calls", client.calls.Load()-callsAfterFirst)
	}
	if second["en-US"].Text != first["en-US"].Text {
		t.Fatalf("cached text mismatch: %q vs %q", second["en-US"].Text, first["en-US"].Text)
	}

	entry, ok, err := backend.Fetch(context.Background(), narration.DeriveKey("en-US", "Newton's first law."))
	if err != nil || !ok {
		t.Fatalf("expected cache entry, ok=%v err=%v", ok, err)
	}
	if len(entry.CourseIDs) != 1 || entry.CourseIDs[0] != "phys101" {
		t.Fatalf("expected course id recorded, got %v", entry.CourseIDs)
	}
}

func TestGenerateCacheHitCarriesAudio(t *testing.T) {
	t.Parallel()

	client := &fakeLLM{}
	g, _ := newTestGenerator(t, client)

	err := g.cache.Put(context.Background(), cache.PutRequest{
		Language: "en-US",
		Text:     "Cached.",
		Context:  "slide notes",
		AudioURL: "https://cdn.example.com/speech_en-US_x.mp3",
	})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	got := g.Generate(context.Background(), Request{Context: "slide   notes", Languages: []string{"en-US"}})
	if got["en-US"].AudioURL != "https://cdn.example.com/speech_en-US_x.mp3" {
		t.Fatalf("expected cached audio url, got %#v", got["en-US"])
	}
	if client.calls.Load() != 0 {
		t.Fatalf("cache hit must not call the generator")
	}
}

type failingStore struct{}

func (failingStore) Get(context.Context, string, string) (cache.Entry, bool, error) {
	return cache.Entry{}, false, errors.New("redis down")
}

func (failingStore) Put(context.Context, cache.PutRequest) error {
	return errors.New("redis down")
}

func TestGenerateCacheErrorsAreMisses(t *testing.T) {
	t.Parallel()

	client := &fakeLLM{}
	g := New(failingStore{}, client, nil, Config{}, zaptest.NewLogger(t))

	got := g.Generate(context.Background(), Request{Context: "notes", Languages: []string{"en-US"}})
	if got["en-US"].Text == "" {
		t.Fatalf("cache errors must not block generation")
	}
}

func TestGenerateContinuesSession(t *testing.T) {
	t.Parallel()

	client := &fakeLLM{}
	sessions := NewSessions(time.Minute, 4)
	t.Cleanup(func() { _ = sessions.Close() })
	// A nil cache forces a generation call each time.
	g := New(nil, client, sessions, Config{}, zaptest.NewLogger(t))

	req := Request{Context: "Gravity.", Languages: []string{"en-US"}}
	g.Generate(context.Background(), req)
	g.Generate(context.Background(), req)
	g.Generate(context.Background(), Request{Context: "Magnetism.", Languages: []string{"en-US"}})

	if len(client.requests) != 3 {
		t.Fatalf("expected 3 calls, got %d", len(client.requests))
	}
	if n := len(client.requests[1].Messages); n != 3 {
		t.Fatalf("second call should carry prior turn, got %d messages", n)
	}
	if n := len(client.requests[2].Messages); n != 1 {
		t.Fatalf("different context must start a fresh session, got %d messages", n)
	}
	if client.requests[0].SessionID != narration.SessionID("en-US", "Gravity.") {
		t.Fatalf("unexpected session id %q", client.requests[0].SessionID)
	}
}
