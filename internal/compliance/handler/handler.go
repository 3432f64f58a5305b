package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"amlstat/internal/compliance/models"
	id "amlstat/pkg/domain"
	dErrors "amlstat/pkg/domain-errors"
	"amlstat/pkg/platform/httputil"
	"amlstat/pkg/platform/middleware/auth"
	request "amlstat/pkg/platform/middleware/request"
)

type Service interface {
	Organization(ctx context.Context, p id.Principal, orgID id.OrganizationID, year int) (*models.OrganizationCompliance, error)
	Overview(ctx context.Context, p id.Principal, year int) (*models.Overview, error)
}

// Handler serves the compliance views. Access rules are enforced by the
// service, so the routes only require authentication.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/compliance/organizations/{id}", h.handleOrganization)
	r.Get("/compliance/overview", h.handleOverview)
}

func (h *Handler) handleOrganization(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := auth.GetPrincipal(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	orgID, err := id.ParseOrganizationID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "invalid organization id", dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid organization id"))
		return
	}
	year, err := parseYear(r)
	if err != nil {
		h.fail(w, r, "invalid year", err)
		return
	}
	view, err := h.service.Organization(ctx, p, orgID, year)
	if err != nil {
		h.fail(w, r, "failed to compute organization compliance", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := auth.GetPrincipal(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	year, err := parseYear(r)
	if err != nil {
		h.fail(w, r, "invalid year", err)
		return
	}
	overview, err := h.service.Overview(ctx, p, year)
	if err != nil {
		h.fail(w, r, "failed to compute compliance overview", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, overview)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	level := slog.LevelWarn
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, msg,
		"error", err,
		"path", r.URL.Path,
		"request_id", request.GetRequestID(r.Context()),
	)
	httputil.WriteError(w, err)
}

// parseYear reads ?year=. Absent means the current year (0).
func parseYear(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("year"))
	if raw == "" {
		return 0, nil
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeBadRequest, "year must be a number")
	}
	return year, nil
}
