package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/substratehq/substrate/pkg/jwt"
)

// MinPasswordLength is the only enforced password rule; composition rules
// push users toward predictable patterns.
const MinPasswordLength = 8

// Config tunes token issuance.
type Config struct {
	TokenTTL time.Duration `env:"AUTH_TOKEN_TTL" envDefault:"24h"`
	Issuer   string        `env:"AUTH_TOKEN_ISSUER" envDefault:"substrate"`
}

// Service registers accounts and exchanges credentials for bearer tokens.
type Service struct {
	store  UserStore
	tokens *jwt.Service
	cfg    Config
	now    func() time.Time
	cost   int
}

type Option func(*Service)

// WithClock overrides the time source for token expiry in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithBcryptCost lowers the hash cost in tests; production keeps the
// bcrypt default.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.cost = cost
		}
	}
}

func NewService(store UserStore, tokens *jwt.Service, cfg Config, opts ...Option) *Service {
	if store == nil || tokens == nil {
		panic("auth: store and token service are required")
	}
	s := &Service{
		store:  store,
		tokens: tokens,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
		cost:   bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an account and returns it with a fresh token.
func (s *Service) Register(ctx context.Context, email, name, password string) (*User, string, error) {
	email = normalizeEmail(email)
	if !validEmail(email) {
		return nil, "", ErrInvalidEmail
	}
	if len(password) < MinPasswordLength {
		return nil, "", ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := &User{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, user); err != nil {
		return nil, "", err
	}

	token, err := s.issueToken(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Login verifies credentials and returns the user with a fresh token. The
// error never reveals whether the email exists.
func (s *Service) Login(ctx context.Context, email, password string) (*User, string, error) {
	user, err := s.store.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Burn comparable time so lookups cannot probe registration.
			_ = bcrypt.CompareHashAndPassword(
				[]byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"),
				[]byte(password))
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.issueToken(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// UserByID loads an account; the billing receipt resolver uses it.
func (s *Service) UserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.store.ByID(ctx, id)
}

func (s *Service) issueToken(userID uuid.UUID) (string, error) {
	now := s.now()
	token, err := s.tokens.Generate(jwt.StandardClaims{
		Subject:   userID.String(),
		Issuer:    s.cfg.Issuer,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(s.cfg.TokenTTL).Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}
