package project

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Store persists projects. Lookups take the owner so tenancy is enforced at
// the data layer, not in handlers.
type Store interface {
	Create(ctx context.Context, p *Project) error
	ByID(ctx context.Context, ownerID, id uuid.UUID) (*Project, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Project, error)
	Update(ctx context.Context, p *Project) error
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
}

// MemoryStore keeps projects in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]*Project
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[uuid.UUID]*Project)}
}

func (s *MemoryStore) Create(ctx context.Context, p *Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	s.byID[p.ID] = &cp
	return nil
}

func (s *MemoryStore) ByID(ctx context.Context, ownerID, id uuid.UUID) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byID[id]
	if !ok || p.OwnerID != ownerID {
		return nil, ErrProjectNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Project
	for _, p := range s.byID {
		if p.OwnerID == ownerID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) Update(ctx context.Context, p *Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byID[p.ID]
	if !ok || existing.OwnerID != p.OwnerID {
		return ErrProjectNotFound
	}
	cp := *p
	s.byID[p.ID] = &cp
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[id]
	if !ok || p.OwnerID != ownerID {
		return ErrProjectNotFound
	}
	delete(s.byID, id)
	return nil
}
