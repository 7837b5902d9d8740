package character

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemStore is an in-memory [Store].
type MemStore struct {
	mu    sync.RWMutex
	chars map[string]Character
}

var _ Store = (*MemStore)(nil)

// NewMemStore creates a MemStore holding seed.
func NewMemStore(seed ...Character) (*MemStore, error) {
	s := &MemStore{chars: make(map[string]Character, len(seed))}
	for i := range seed {
		if err := s.Upsert(context.Background(), &seed[i]); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Get implements [Store].
func (s *MemStore) Get(_ context.Context, id string) (*Character, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chars[id]
	if !ok {
		return nil, fmt.Errorf("character %q: %w", id, ErrNotFound)
	}
	return &c, nil
}

// List implements [Store].
func (s *MemStore) List(_ context.Context) ([]Character, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Character, 0, len(s.chars))
	for _, c := range s.chars {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Upsert implements [Store].
func (s *MemStore) Upsert(_ context.Context, c *Character) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chars[c.ID] = *c
	return nil
}
