package membership

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/policy"
)

// MemoryStore is an in-process Store. InTx serializes transactions with a
// mutex and applies their writes only when fn succeeds.
type MemoryStore struct {
	mu    sync.Mutex
	items map[uuid.UUID]Membership
}

func NewMemoryStore(seed ...Membership) *MemoryStore {
	s := &MemoryStore{items: make(map[uuid.UUID]Membership)}
	for _, m := range seed {
		s.items[m.ID] = m
	}
	return s
}

func (s *MemoryStore) ListByAccount(_ context.Context, accountID uuid.UUID) ([]Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []Membership{}
	for _, m := range s.items {
		if m.AccountID == accountID {
			out = append(out, m)
		}
	}
	slices.SortFunc(out, func(a, b Membership) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (s *MemoryStore) InTx(_ context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{items: make(map[uuid.UUID]Membership, len(s.items))}
	for k, v := range s.items {
		tx.items[k] = v
	}
	if err := fn(tx); err != nil {
		return err
	}
	s.items = tx.items
	return nil
}

type memoryTx struct {
	items map[uuid.UUID]Membership
}

func (tx *memoryTx) LockOwners(_ context.Context, accountID uuid.UUID) (int, error) {
	n := 0
	for _, m := range tx.items {
		if m.AccountID == accountID && m.Role == policy.Owner {
			n++
		}
	}
	return n, nil
}

func (tx *memoryTx) Get(_ context.Context, accountID, id uuid.UUID) (*Membership, error) {
	m, ok := tx.items[id]
	if !ok || m.AccountID != accountID {
		return nil, ErrNotFound
	}
	return &m, nil
}

func (tx *memoryTx) GetByUser(_ context.Context, accountID, userID uuid.UUID) (*Membership, error) {
	for _, m := range tx.items {
		if m.AccountID == accountID && m.UserID == userID {
			return &m, nil
		}
	}
	return nil, ErrNotFound
}

func (tx *memoryTx) Create(_ context.Context, m *Membership) error {
	tx.items[m.ID] = *m
	return nil
}

func (tx *memoryTx) UpdateRole(_ context.Context, accountID, id uuid.UUID, role policy.Role) error {
	m, ok := tx.items[id]
	if !ok || m.AccountID != accountID {
		return ErrNotFound
	}
	m.Role = role
	tx.items[id] = m
	return nil
}

func (tx *memoryTx) Delete(_ context.Context, accountID, id uuid.UUID) error {
	m, ok := tx.items[id]
	if !ok || m.AccountID != accountID {
		return ErrNotFound
	}
	delete(tx.items, id)
	return nil
}
