package service

import (
	"sync"
	"time"

	"github.com/classpulse/poll-service/internal/domain"

	"github.com/google/uuid"
)

const systemSender = "System"

// FeedService is the append-only chat and system-notice log. Entries are
// never mutated; the oldest are evicted once the cap is reached. Length and
// emptiness checks on the body happen at the transport boundary, not here.
type FeedService struct {
	mu      sync.Mutex
	limit   int
	entries []domain.ChatMessage
}

func NewFeedService(limit int) *FeedService {
	if limit <= 0 {
		limit = 100
	}
	return &FeedService{limit: limit}
}

func (s *FeedService) Post(role domain.Role, sender, text string) domain.ChatMessage {
	msg := domain.ChatMessage{
		ID:        uuid.NewString(),
		Sender:    sender,
		Role:      role,
		Text:      text,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, msg)
	if over := len(s.entries) - s.limit; over > 0 {
		s.entries = append([]domain.ChatMessage(nil), s.entries[over:]...)
	}
	return msg
}

// PostSystem appends a notice under the distinct system role so clients can
// render it as a banner rather than a bubble.
func (s *FeedService) PostSystem(text string) domain.ChatMessage {
	return s.Post(domain.RoleSystem, systemSender, text)
}

// History returns the retained messages in insertion order.
func (s *FeedService) History() []domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]domain.ChatMessage(nil), s.entries...)
}

func (s *FeedService) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = nil
}

func (s *FeedService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}
