package store

import (
	"context"
	"sync"

	"vetclinic/internal/person/models"
	"vetclinic/pkg/platform/sentinel"
)

// InMemory is the default registry backend: a map guarded by a single lock.
// Every operation runs entirely inside the critical section, so id allocation
// and uniqueness checks cannot interleave.
type InMemory struct {
	mu     sync.RWMutex
	people map[int64]models.Person
	ids    *IDAllocator
}

// NewInMemory constructs an empty registry.
func NewInMemory(policy models.IDPolicy) *InMemory {
	return &InMemory{
		people: make(map[int64]models.Person),
		ids:    NewIDAllocator(policy),
	}
}

// Create inserts a person, allocating an id when the draft has none.
func (s *InMemory) Create(_ context.Context, draft models.Draft) (*models.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id int64
	if draft.HasExplicitID() {
		id = *draft.ID
		if _, ok := s.people[id]; ok {
			return nil, sentinel.ErrConflict
		}
		if err := s.ids.Claim(id); err != nil {
			return nil, err
		}
	} else {
		next, err := s.ids.Next()
		if err != nil {
			return nil, err
		}
		id = next
	}

	p := models.Person{ID: id, Name: draft.Name}
	s.people[id] = p
	return &p, nil
}

func (s *InMemory) FindByID(_ context.Context, id int64) (*models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.people[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &p, nil
}

// Update applies mutate to a copy of the stored person and persists it if
// mutate succeeds. The id is restored afterwards so callers cannot change it.
func (s *InMemory) Update(_ context.Context, id int64, mutate func(*models.Person) error) (*models.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.people[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := mutate(&p); err != nil {
		return nil, err
	}
	p.ID = id
	s.people[id] = p
	return &p, nil
}

func (s *InMemory) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.people[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.people, id)
	s.ids.Release(id)
	return nil
}

// List returns a snapshot ordered and truncated per the query.
func (s *InMemory) List(_ context.Context, q models.ListQuery) ([]models.Person, error) {
	s.mu.RLock()
	all := make([]models.Person, 0, len(s.people))
	for _, p := range s.people {
		all = append(all, p)
	}
	s.mu.RUnlock()
	return q.Apply(all), nil
}

func (s *InMemory) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.people), nil
}

// Seed upserts fixture rows and advances the allocator past them.
func (s *InMemory) Seed(_ context.Context, people []models.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range people {
		s.people[p.ID] = p
		s.ids.observe(p.ID)
	}
	return nil
}

// Ping always succeeds for the in-process store.
func (s *InMemory) Ping(_ context.Context) error {
	return nil
}
