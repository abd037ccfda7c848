package generator

import (
	"sync"
	"time"

	"narration-gateway/internal/llm"
)

const (
	DefaultSessionTTL         = 30 * time.Minute
	DefaultSessionMaxMessages = 6
)

type session struct {
	messages []llm.ChatMessage
	lastUsed time.Time
}

// Sessions keeps recent chat turns per session id in memory. Idle sessions
// expire after ttl and are swept by a background goroutine.
type Sessions struct {
	mu          sync.Mutex
	items       map[string]*session
	ttl         time.Duration
	maxMessages int
	now         func() time.Time

	stopCleanup chan struct{}
	cleanupOnce sync.Once
}

// NewSessions starts a session store. Non-positive arguments use the defaults.
func NewSessions(ttl time.Duration, maxMessages int) *Sessions {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if maxMessages <= 0 {
		maxMessages = DefaultSessionMaxMessages
	}

	s := &Sessions{
		items:       make(map[string]*session),
		ttl:         ttl,
		maxMessages: maxMessages,
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}

	interval := ttl / 2
	if interval > 5*time.Minute {
		interval = 5 * time.Minute
	}
	go s.cleanupExpired(interval)

	return s
}

// History returns a copy of the stored turns, or nil for an unknown or
// expired session.
func (s *Sessions) History(id string) []llm.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.items[id]
	if !ok {
		return nil
	}
	if s.now().Sub(sess.lastUsed) > s.ttl {
		delete(s.items, id)
		return nil
	}
	out := make([]llm.ChatMessage, len(sess.messages))
	copy(out, sess.messages)
	return out
}

// Append records msgs and keeps only the newest maxMessages.
func (s *Sessions) Append(id string, msgs ...llm.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.items[id]
	if !ok {
		sess = &session{}
		s.items[id] = sess
	}
	sess.messages = append(sess.messages, msgs...)
	if extra := len(sess.messages) - s.maxMessages; extra > 0 {
		sess.messages = append([]llm.ChatMessage(nil), sess.messages[extra:]...)
	}
	sess.lastUsed = s.now()
}

func (s *Sessions) cleanupExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			now := s.now()
			for id, sess := range s.items {
				if now.Sub(sess.lastUsed) > s.ttl {
					delete(s.items, id)
				}
			}
			s.mu.Unlock()
		case <-s.stopCleanup:
			return
		}
	}
}

// Close stops the cleanup goroutine.
func (s *Sessions) Close() error {
	s.cleanupOnce.Do(func() {
		close(s.stopCleanup)
	})
	return nil
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
