package generator

import (
	"strings"
	"testing"
	"time"

	"narration-gateway/internal/llm"
)

func TestSessionsTrimAndExpire(t *testing.T) {
	s := NewSessions(time.Minute, 2)
	defer s.Close()

	now := time.Now()
	s.now = func() time.Time { return now }

	s.Append("a",
		llm.ChatMessage{Role: llm.RoleUser, Content: "1"},
		llm.ChatMessage{Role: llm.RoleAssistant, Content: "2"},
		llm.ChatMessage{Role: llm.RoleUser, Content: "3"},
	)

	h := s.History("a")
	if len(h) != 2 || h[0].Content != "2" || h[1].Content != "3" {
		t.Fatalf("expected newest two messages, got %#v", h)
	}

	h[0].Content = "mutated"
	if s.History("a")[0].Content != "2" {
		t.Fatalf("History must return a copy")
	}

	now = now.Add(2 * time.Minute)
	if s.History("a") != nil {
		t.Fatalf("expected expired session")
	}
	if s.Len() != 0 {
		t.Fatalf("expired session should be dropped, have %d", s.Len())
	}
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("zh-CN", "Speaker notes here.")
	if want := "for students in zh-CN language"; !strings.Contains(p, want) || !strings.Contains(p, "Speaker notes here.") {
		t.Fatalf("unexpected prompt %q", p)
	}
	if w := BuildPrompt("en-US", ""); !strings.Contains(w, "classroom presentation in en-US") {
		t.Fatalf("unexpected welcome prompt %q", w)
	}
}
