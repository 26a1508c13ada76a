package session

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps sessions in process memory. Used in tests and local development.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*Session
	byToken map[string]uuid.UUID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[uuid.UUID]*Session),
		byToken: make(map[string]uuid.UUID),
	}
}

func (m *MemoryStore) Create(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := clone(s)
	m.byID[s.ID] = cp
	m.byToken[s.Token] = s.ID
	return nil
}

func (m *MemoryStore) GetByToken(_ context.Context, token string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byToken[token]
	if !ok {
		return nil, ErrSessionNotFound
	}
	s, ok := m.byID[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return clone(s), nil
}

func (m *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.byID[id]; ok {
		delete(m.byToken, s.Token)
		delete(m.byID, id)
	}
	return nil
}

func (m *MemoryStore) UpdateData(_ context.Context, id uuid.UUID, data map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byID[id]
	if !ok {
		return ErrSessionNotFound
	}
	s.Data = maps.Clone(data)
	return nil
}

func (m *MemoryStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, s := range m.byID {
		if s.CreatedAt.Before(cutoff) {
			delete(m.byToken, s.Token)
			delete(m.byID, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}

func clone(s *Session) *Session {
	cp := *s
	cp.Data = maps.Clone(s.Data)
	return &cp
}
