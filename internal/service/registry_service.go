package service

import (
	"sync"
	"time"

	"github.com/classpulse/poll-service/internal/domain"

	"github.com/google/uuid"
)

// RegistryService tracks connected participants independently of any poll.
// It outlives poll replacement and resolves "who is this connection" for
// chat and moderation. A name is occupied by any record, connected or not,
// until the record is removed.
type RegistryService struct {
	mu     sync.RWMutex
	byID   map[string]*domain.Participant
	byConn map[string]string // connection id -> participant id
}

func NewRegistryService() *RegistryService {
	return &RegistryService{
		byID:   make(map[string]*domain.Participant),
		byConn: make(map[string]string),
	}
}

// Add registers a participant for a connection. Fails with ErrNameTaken on a
// case-sensitive name collision; names are rejected, never disambiguated.
func (s *RegistryService) Add(connID, name string, role domain.Role) (*domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// at most one record per connection
	if _, ok := s.byConn[connID]; ok {
		return nil, domain.ErrAlreadyJoined
	}
	for _, p := range s.byID {
		if p.Name == name {
			return nil, domain.ErrNameTaken
		}
	}

	p := &domain.Participant{
		ID:        uuid.NewString(),
		Name:      name,
		Role:      role,
		ConnID:    connID,
		Connected: true,
		JoinedAt:  time.Now(),
	}
	s.byID[p.ID] = p
	s.byConn[connID] = p.ID

	cp := *p
	return &cp, nil
}

// Remove deletes the record, freeing its name for reuse.
func (s *RegistryService) Remove(id string) (*domain.Participant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	delete(s.byID, id)
	delete(s.byConn, p.ConnID)

	cp := *p
	return &cp, true
}

func (s *RegistryService) ByConn(connID string) (*domain.Participant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byConn[connID]
	if !ok {
		return nil, false
	}
	p, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	cp := *p
	return &cp, true
}

func (s *RegistryService) ByID(id string) (*domain.Participant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	cp := *p
	return &cp, true
}

func (s *RegistryService) SetConnected(connID string, connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byConn[connID]; ok {
		if p, ok := s.byID[id]; ok {
			p.Connected = connected
		}
	}
}

func (s *RegistryService) List() []domain.Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Participant, 0, len(s.byID))
	for _, p := range s.byID {
		out = append(out, *p)
	}
	return out
}

func (s *RegistryService) ListConnected() []domain.Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Participant, 0, len(s.byID))
	for _, p := range s.byID {
		if p.Connected {
			out = append(out, *p)
		}
	}
	return out
}

// CountConnected is the participant count used in derived stats.
func (s *RegistryService) CountConnected() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, p := range s.byID {
		if p.Connected {
			n++
		}
	}
	return n
}
