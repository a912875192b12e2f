package auth

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// UserStore persists accounts. Email uniqueness is enforced at the store so
// concurrent registrations cannot both win.
type UserStore interface {
	// Create inserts the user; ErrEmailTaken when the email exists.
	Create(ctx context.Context, user *User) error

	// ByEmail looks up by normalized email; ErrUserNotFound when absent.
	ByEmail(ctx context.Context, email string) (*User, error)

	// ByID looks up by primary key; ErrUserNotFound when absent.
	ByID(ctx context.Context, id uuid.UUID) (*User, error)
}

// MemoryUserStore keeps accounts in process memory for tests and local runs.
type MemoryUserStore struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*User
	byEmail map[string]uuid.UUID
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byID:    make(map[uuid.UUID]*User),
		byEmail: make(map[string]uuid.UUID),
	}
}

func (s *MemoryUserStore) Create(ctx context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[user.Email]; exists {
		return ErrEmailTaken
	}
	cp := *user
	s.byID[user.ID] = &cp
	s.byEmail[user.Email] = user.ID
	return nil
}

func (s *MemoryUserStore) ByEmail(ctx context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *s.byID[id]
	return &cp, nil
}

func (s *MemoryUserStore) ByID(ctx context.Context, id uuid.UUID) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}
