package project

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Service applies validation and timestamps on top of the store.
type Service struct {
	store Store
	now   func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(store Store, opts ...Option) *Service {
	if store == nil {
		panic("project: store is required")
	}
	s := &Service{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create starts every project as active.
func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, title, description string) (*Project, error) {
	title, err := validateTitle(title)
	if err != nil {
		return nil, err
	}

	now := s.now()
	p := &Project{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Title:       title,
		Description: description,
		Status:      StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, ownerID, id uuid.UUID) (*Project, error) {
	return s.store.ByID(ctx, ownerID, id)
}

func (s *Service) List(ctx context.Context, ownerID uuid.UUID) ([]Project, error) {
	return s.store.ListByOwner(ctx, ownerID)
}

// UpdateParams carries the mutable fields; empty Status keeps the current
// value.
type UpdateParams struct {
	Title       string
	Description string
	Status      string
}

func (s *Service) Update(ctx context.Context, ownerID, id uuid.UUID, params UpdateParams) (*Project, error) {
	title, err := validateTitle(params.Title)
	if err != nil {
		return nil, err
	}

	p, err := s.store.ByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	if params.Status != "" {
		status, err := ParseStatus(params.Status)
		if err != nil {
			return nil, err
		}
		p.Status = status
	}

	p.Title = title
	p.Description = params.Description
	p.UpdatedAt = s.now()
	if err := s.store.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	return s.store.Delete(ctx, ownerID, id)
}
