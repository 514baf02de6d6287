package identity

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store. The email index is the uniqueness
// constraint; it is checked and written under one lock.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]Identity
	byEmail map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]Identity),
		byEmail: make(map[string]string),
	}
}

func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (*Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	out := s.byID[id]
	return &out, nil
}

func (s *MemoryStore) Create(ctx context.Context, in Identity) (*Identity, error) {
	const op = "identity.MemoryStore.Create"

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[in.Email]; exists {
		return nil, ConflictError{Op: op, Field: "email"}
	}
	if _, exists := s.byID[in.ID]; exists {
		return nil, ConflictError{Op: op, Field: "id"}
	}

	s.byID[in.ID] = in
	s.byEmail[in.Email] = in.ID

	out := in
	return &out, nil
}

// Len returns the number of stored identities.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
