package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"amlstat/internal/organization/models"
	id "amlstat/pkg/domain"
	dErrors "amlstat/pkg/domain-errors"
	"amlstat/pkg/platform/httputil"
	"amlstat/pkg/platform/middleware/admin"
	"amlstat/pkg/platform/middleware/auth"
	request "amlstat/pkg/platform/middleware/request"
)

// Service defines the organization registry operations exposed over HTTP.
type Service interface {
	Create(ctx context.Context, p id.Principal, req *models.CreateOrganizationRequest) (*models.Organization, error)
	Get(ctx context.Context, p id.Principal, orgID id.OrganizationID) (*models.Organization, error)
	Mine(ctx context.Context, p id.Principal) (*models.Organization, error)
	List(ctx context.Context, p id.Principal, activeOnly bool) ([]*models.Organization, error)
	Update(ctx context.Context, p id.Principal, orgID id.OrganizationID, req *models.UpdateOrganizationRequest) (*models.Organization, error)
	Deactivate(ctx context.Context, p id.Principal, orgID id.OrganizationID) (*models.Organization, error)
	Reactivate(ctx context.Context, p id.Principal, orgID id.OrganizationID) (*models.Organization, error)
	Delete(ctx context.Context, p id.Principal, orgID id.OrganizationID) error
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the registry routes on an authenticated router. Admin
// routes additionally require the admin role.
func (h *Handler) Register(r chi.Router) {
	r.Get("/organizations/me", h.handleMine)

	r.Route("/admin/organizations", func(r chi.Router) {
		r.Use(admin.RequireAdmin(h.logger))
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Get("/{id}", h.handleGet)
		r.Patch("/{id}", h.handleUpdate)
		r.Delete("/{id}", h.handleDelete)
		r.Post("/{id}/deactivate", h.handleDeactivate)
		r.Post("/{id}/reactivate", h.handleReactivate)
	})
}

type listResponse struct {
	Organizations []*models.Organization `json:"organizations"`
	Count         int                    `json:"count"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req models.CreateOrganizationRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, "invalid create organization request", err)
		return
	}
	org, err := h.service.Create(r.Context(), p, &req)
	if err != nil {
		h.fail(w, r, "failed to create organization", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, org)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	activeOnly := false
	if raw := r.URL.Query().Get("active"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			h.fail(w, r, "invalid active filter", dErrors.Wrap(err, dErrors.CodeBadRequest, "active must be true or false"))
			return
		}
		activeOnly = v
	}
	orgs, err := h.service.List(r.Context(), p, activeOnly)
	if err != nil {
		h.fail(w, r, "failed to list organizations", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Organizations: orgs, Count: len(orgs)})
}

func (h *Handler) handleMine(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	org, err := h.service.Mine(r.Context(), p)
	if err != nil {
		h.fail(w, r, "failed to load own organization", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, org)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	h.withOrganization(w, r, h.service.Get)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	h.withOrganization(w, r, func(ctx context.Context, p id.Principal, orgID id.OrganizationID) (*models.Organization, error) {
		var req models.UpdateOrganizationRequest
		if err := httputil.DecodeJSON(r, &req); err != nil {
			return nil, err
		}
		return h.service.Update(ctx, p, orgID, &req)
	})
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	h.withOrganization(w, r, h.service.Deactivate)
}

func (h *Handler) handleReactivate(w http.ResponseWriter, r *http.Request) {
	h.withOrganization(w, r, h.service.Reactivate)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	orgID, err := id.ParseOrganizationID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "invalid organization id", dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid organization id"))
		return
	}
	if err := h.service.Delete(r.Context(), p, orgID); err != nil {
		h.fail(w, r, "failed to delete organization", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) withOrganization(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, p id.Principal, orgID id.OrganizationID) (*models.Organization, error),
) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	orgID, err := id.ParseOrganizationID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "invalid organization id", dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid organization id"))
		return
	}
	org, err := op(r.Context(), p, orgID)
	if err != nil {
		h.fail(w, r, "organization request failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, org)
}

func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (id.Principal, bool) {
	p, ok := auth.GetPrincipal(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.Principal{}, false
	}
	return p, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, "error", err, "request_id", request.GetRequestID(ctx))
	} else {
		h.logger.WarnContext(ctx, msg, "error", err, "request_id", request.GetRequestID(ctx))
	}
	httputil.WriteError(w, err)
}
