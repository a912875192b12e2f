package billing

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/substratehq/substrate/core"
)

// UserIDFunc extracts the authenticated user from the request context. The
// auth module supplies it so this package stays decoupled from token
// handling.
type UserIDFunc func(r *http.Request) (uuid.UUID, bool)

// RouterConfig wires the billing routes into an API router.
type RouterConfig struct {
	Service Service
	Catalog *Catalog

	// Auth wraps the subscription and invoice routes; plan listing stays
	// public.
	Auth   func(http.Handler) http.Handler
	UserID UserIDFunc
}

// NewRouter mounts the billing API:
//
//	GET  /plans                         list active plans (public)
//	POST /subscriptions                 subscribe to a plan
//	GET  /subscriptions                 subscription history
//	GET  /subscriptions/current         current subscription
//	PUT  /subscriptions/current         change plan or status
//	POST /subscriptions/current/cancel  cancel current subscription
//	GET  /invoices                      invoice history
//	GET  /invoices/{invoiceID}          single invoice
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Service == nil || cfg.Catalog == nil || cfg.Auth == nil || cfg.UserID == nil {
		panic("billing: incomplete router config")
	}

	h := &handler{svc: cfg.Service, catalog: cfg.Catalog, userID: cfg.UserID}

	r := chi.NewRouter()
	r.Get("/plans", h.listPlans)

	r.Group(func(r chi.Router) {
		r.Use(cfg.Auth)
		r.Route("/subscriptions", func(r chi.Router) {
			r.Post("/", h.subscribe)
			r.Get("/", h.history)
			r.Get("/current", h.current)
			r.Put("/current", h.updateCurrent)
			r.Post("/current/cancel", h.cancel)
		})
		r.Get("/invoices", h.invoices)
		r.Get("/invoices/{invoiceID}", h.invoice)
	})
	return r
}

type handler struct {
	svc     Service
	catalog *Catalog
	userID  UserIDFunc
}

func (h *handler) listPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.catalog.Plans(r.Context())
	if err != nil {
		core.FailErr(w, httpError(err))
		return
	}
	core.JSON(w, http.StatusOK, plans, "plans retrieved successfully")
}

type subscribeRequest struct {
	PlanID string `json:"plan_id"`
}

func (h *handler) subscribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(r)
	if !ok {
		core.FailErr(w, core.Unauthorized("authentication required"))
		return
	}

	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.FailErr(w, core.BadRequest("invalid request body"))
		return
	}
	if strings.TrimSpace(req.PlanID) == "" {
		core.FailErr(w, core.BadRequest("plan_id is required"))
		return
	}

	sub, err := h.svc.Subscribe(r.Context(), userID, req.PlanID)
	if err != nil {
		core.FailErr(w, httpError(err))
		return
	}
	core.JSON(w, http.StatusCreated, sub, "subscription created successfully")
}

func (h *handler) current(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(r)
	if !ok {
		core.FailErr(w, core.Unauthorized("authentication required"))
		return
	}

	sub, err := h.svc.Current(r.Context(), userID)
	if err != nil {
		core.FailErr(w, httpError(err))
		return
	}
	core.JSON(w, http.StatusOK, sub, "subscription retrieved successfully")
}

func (h *handler) history(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(r)
	if !ok {
		core.FailErr(w, core.Unauthorized("authentication required"))
		return
	}

	subs, err := h.svc.History(r.Context(), userID)
	if err != nil {
		core.FailErr(w, httpError(err))
		return
	}
	core.JSON(w, http.StatusOK, subs, "subscription history retrieved successfully")
}

type updateSubscriptionRequest struct {
	PlanID string `json:"plan_id,omitempty"`
	Status string `json:"status,omitempty"`
}

// updateCurrent handles both plan changes and direct status updates; exactly
// one of plan_id or status must be present.
func (h *handler) updateCurrent(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(r)
	if !ok {
		core.FailErr(w, core.Unauthorized("authentication required"))
		return
	}

	var req updateSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.FailErr(w, core.BadRequest("invalid request body"))
		return
	}

	hasPlan := strings.TrimSpace(req.PlanID) != ""
	hasStatus := strings.TrimSpace(req.Status) != ""
	if hasPlan == hasStatus {
		core.FailErr(w, core.BadRequest("provide exactly one of plan_id or status"))
		return
	}

	var (
		sub *Subscription
		err error
	)
	if hasPlan {
		sub, err = h.svc.ChangePlan(r.Context(), userID, req.PlanID)
	} else {
		status, parseErr := ParseStatus(req.Status)
		if parseErr != nil {
			core.FailErr(w, core.UnprocessableEntity("unknown subscription status"))
			return
		}
		sub, err = h.svc.UpdateStatus(r.Context(), userID, status)
	}
	if err != nil {
		core.FailErr(w, httpError(err))
		return
	}
	core.JSON(w, http.StatusOK, sub, "subscription updated successfully")
}

func (h *handler) cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(r)
	if !ok {
		core.FailErr(w, core.Unauthorized("authentication required"))
		return
	}

	sub, err := h.svc.Cancel(r.Context(), userID)
	if err != nil {
		core.FailErr(w, httpError(err))
		return
	}
	core.JSON(w, http.StatusOK, sub, "subscription cancelled successfully")
}

func (h *handler) invoices(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(r)
	if !ok {
		core.FailErr(w, core.Unauthorized("authentication required"))
		return
	}

	invoices, err := h.svc.Invoices(r.Context(), userID)
	if err != nil {
		core.FailErr(w, httpError(err))
		return
	}
	core.JSON(w, http.StatusOK, invoices, "invoices retrieved successfully")
}

func (h *handler) invoice(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(r)
	if !ok {
		core.FailErr(w, core.Unauthorized("authentication required"))
		return
	}

	invoiceID, err := uuid.Parse(chi.URLParam(r, "invoiceID"))
	if err != nil {
		core.FailErr(w, core.BadRequest("invalid invoice id"))
		return
	}

	inv, err := h.svc.Invoice(r.Context(), userID, invoiceID)
	if err != nil {
		core.FailErr(w, httpError(err))
		return
	}
	core.JSON(w, http.StatusOK, inv, "invoice retrieved successfully")
}

// httpError maps billing sentinels to HTTP statuses. Unknown errors pass
// through and surface as opaque 500s.
func httpError(err error) error {
	switch {
	case errors.Is(err, ErrPlanNotFound):
		return core.NewHTTPError(http.StatusNotFound, "plan not found", err)
	case errors.Is(err, ErrNoActiveSubscription):
		return core.NewHTTPError(http.StatusNotFound, "no active subscription", err)
	case errors.Is(err, ErrPaymentFailed):
		return core.NewHTTPError(http.StatusPaymentRequired, "payment failed", err)
	case errors.Is(err, ErrInvalidStatus):
		return core.NewHTTPError(http.StatusUnprocessableEntity, "invalid subscription status", err)
	case errors.Is(err, ErrInvalidTransition):
		return core.NewHTTPError(http.StatusUnprocessableEntity, "illegal status transition", err)
	case errors.Is(err, ErrSubscriptionConflict):
		return core.NewHTTPError(http.StatusConflict, "subscription update conflict, retry", err)
	case errors.Is(err, ErrInvoiceNotFound):
		return core.NewHTTPError(http.StatusNotFound, "invoice not found", err)
	default:
		return err
	}
}
