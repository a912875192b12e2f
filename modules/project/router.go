package project

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/substratehq/substrate/core"
)

// UserIDFunc extracts the authenticated owner from the request context.
type UserIDFunc func(r *http.Request) (uuid.UUID, bool)

type RouterConfig struct {
	Service *Service
	Auth    func(http.Handler) http.Handler
	UserID  UserIDFunc
}

// NewRouter mounts the project API; every route requires auth:
//
//	POST   /projects
//	GET    /projects
//	GET    /projects/{projectID}
//	PUT    /projects/{projectID}
//	DELETE /projects/{projectID}
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Service == nil || cfg.Auth == nil || cfg.UserID == nil {
		panic("project: incomplete router config")
	}
	h := &handler{svc: cfg.Service, userID: cfg.UserID}

	r := chi.NewRouter()
	r.Use(cfg.Auth)
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Route("/{projectID}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Put("/", h.update)
		r.Delete("/", h.delete)
	})
	return r
}

type handler struct {
	svc    *Service
	userID UserIDFunc
}

type projectRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status,omitempty"`
}

func (h *handler) create(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.userID(r)
	if !ok {
		core.FailErr(w, core.Unauthorized("authentication required"))
		return
	}

	var req projectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.FailErr(w, core.BadRequest("invalid request body"))
		return
	}

	p, err := h.svc.Create(r.Context(), ownerID, req.Title, req.Description)
	if err != nil {
		core.FailErr(w, httpError(err))
		return
	}
	core.JSON(w, http.StatusCreated, p, "project created successfully")
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.userID(r)
	if !ok {
		core.FailErr(w, core.Unauthorized("authentication required"))
		return
	}

	projects, err := h.svc.List(r.Context(), ownerID)
	if err != nil {
		core.FailErr(w, httpError(err))
		return
	}
	core.JSON(w, http.StatusOK, projects, "projects retrieved successfully")
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	ownerID, projectID, ok := h.ids(w, r)
	if !ok {
		return
	}

	p, err := h.svc.Get(r.Context(), ownerID, projectID)
	if err != nil {
		core.FailErr(w, httpError(err))
		return
	}
	core.JSON(w, http.StatusOK, p, "project retrieved successfully")
}

func (h *handler) update(w http.ResponseWriter, r *http.Request) {
	ownerID, projectID, ok := h.ids(w, r)
	if !ok {
		return
	}

	var req projectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.FailErr(w, core.BadRequest("invalid request body"))
		return
	}

	p, err := h.svc.Update(r.Context(), ownerID, projectID, UpdateParams{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
	})
	if err != nil {
		core.FailErr(w, httpError(err))
		return
	}
	core.JSON(w, http.StatusOK, p, "project updated successfully")
}

func (h *handler) delete(w http.ResponseWriter, r *http.Request) {
	ownerID, projectID, ok := h.ids(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), ownerID, projectID); err != nil {
		core.FailErr(w, httpError(err))
		return
	}
	core.JSON(w, http.StatusOK, nil, "project deleted successfully")
}

func (h *handler) ids(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	ownerID, ok := h.userID(r)
	if !ok {
		core.FailErr(w, core.Unauthorized("authentication required"))
		return uuid.Nil, uuid.Nil, false
	}

	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		core.FailErr(w, core.BadRequest("invalid project id"))
		return uuid.Nil, uuid.Nil, false
	}
	return ownerID, projectID, true
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrProjectNotFound):
		return core.NewHTTPError(http.StatusNotFound, "project not found", err)
	case errors.Is(err, ErrInvalidTitle):
		return core.NewHTTPError(http.StatusUnprocessableEntity, "project title is required", err)
	case errors.Is(err, ErrInvalidStatus):
		return core.NewHTTPError(http.StatusUnprocessableEntity, "invalid project status", err)
	default:
		return err
	}
}
