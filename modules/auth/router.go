package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/substratehq/substrate/core"
	"github.com/substratehq/substrate/pkg/jwt"
)

// Middleware returns the bearer-token guard other modules mount in front of
// their protected routes.
func Middleware(tokens *jwt.Service) func(http.Handler) http.Handler {
	return jwt.Middleware(tokens, func(w http.ResponseWriter, r *http.Request, err error) {
		core.FailErr(w, core.Unauthorized("authentication required"))
	})
}

// UserID extracts the authenticated user ID injected by Middleware.
func UserID(r *http.Request) (uuid.UUID, bool) {
	claims, ok := jwt.ClaimsFromContext(r.Context())
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// RouterConfig wires the auth routes.
type RouterConfig struct {
	Service *Service

	// RateLimit guards the credential endpoints against brute force; nil
	// leaves them unthrottled.
	RateLimit func(http.Handler) http.Handler
}

// NewRouter mounts the auth API:
//
//	POST /auth/register
//	POST /auth/login
//	GET  /auth/me       (authenticated)
func NewRouter(tokens *jwt.Service, cfg RouterConfig) http.Handler {
	if cfg.Service == nil {
		panic("auth: service is required")
	}
	h := &handler{svc: cfg.Service}

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		if cfg.RateLimit != nil {
			r.Use(cfg.RateLimit)
		}
		r.Post("/register", h.register)
		r.Post("/login", h.login)
	})
	r.Group(func(r chi.Router) {
		r.Use(Middleware(tokens))
		r.Get("/me", h.me)
	})
	return r
}

type handler struct {
	svc *Service
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Password string `json:"password"`
}

type authResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.FailErr(w, core.BadRequest("invalid request body"))
		return
	}

	user, token, err := h.svc.Register(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		core.FailErr(w, httpError(err))
		return
	}
	core.JSON(w, http.StatusCreated, authResponse{User: user, Token: token},
		"account created successfully")
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.FailErr(w, core.BadRequest("invalid request body"))
		return
	}

	user, token, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		core.FailErr(w, httpError(err))
		return
	}
	core.JSON(w, http.StatusOK, authResponse{User: user, Token: token},
		"logged in successfully")
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r)
	if !ok {
		core.FailErr(w, core.Unauthorized("authentication required"))
		return
	}

	user, err := h.svc.UserByID(r.Context(), userID)
	if err != nil {
		core.FailErr(w, httpError(err))
		return
	}
	core.JSON(w, http.StatusOK, user, "account retrieved successfully")
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrEmailTaken):
		return core.NewHTTPError(http.StatusConflict, "email already registered", err)
	case errors.Is(err, ErrInvalidCredentials):
		return core.NewHTTPError(http.StatusUnauthorized, "invalid email or password", err)
	case errors.Is(err, ErrInvalidEmail):
		return core.NewHTTPError(http.StatusUnprocessableEntity, "invalid email address", err)
	case errors.Is(err, ErrWeakPassword):
		return core.NewHTTPError(http.StatusUnprocessableEntity, "password too short", err)
	case errors.Is(err, ErrUserNotFound):
		return core.NewHTTPError(http.StatusNotFound, "user not found", err)
	default:
		return err
	}
}
