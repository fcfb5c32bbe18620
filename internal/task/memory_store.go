package task

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[uuid.UUID]Task
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[uuid.UUID]Task)}
}

func (s *MemoryStore) Create(ctx context.Context, t *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[t.ID] = *t
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.items[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	return t, nil
}

func (s *MemoryStore) List(ctx context.Context, userID uuid.UUID, status Status) ([]Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]Task, 0)
	for _, t := range s.items {
		if t.UserID != userID {
			continue
		}
		if status != "" && t.Status != status {
			continue
		}
		list = append(list, t)
	}
	slices.SortFunc(list, func(a, b Task) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return list, nil
}

func (s *MemoryStore) Update(ctx context.Context, t *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[t.ID]; !ok {
		return ErrNotFound
	}
	s.items[t.ID] = *t
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return ErrNotFound
	}
	delete(s.items, id)
	return nil
}
