package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"amlstat/internal/auth/models"
	id "amlstat/pkg/domain"
	dErrors "amlstat/pkg/domain-errors"
	"amlstat/pkg/platform/httputil"
	"amlstat/pkg/platform/middleware/admin"
	"amlstat/pkg/platform/middleware/auth"
	request "amlstat/pkg/platform/middleware/request"
)

type Service interface {
	Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResult, error)
	CreateUser(ctx context.Context, p id.Principal, req *models.CreateUserRequest) (*models.User, error)
	ListUsers(ctx context.Context, p id.Principal, orgID *id.OrganizationID) ([]*models.User, error)
	DeactivateUser(ctx context.Context, p id.Principal, userID id.UserID) (*models.User, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterPublic mounts the unauthenticated login route.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/auth/login", h.handleLogin)
}

// Register mounts account administration on an authenticated router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/admin/users", func(r chi.Router) {
		r.Use(admin.RequireAdmin(h.logger))
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Post("/{id}/deactivate", h.handleDeactivate)
	})
}

type listResponse struct {
	Users []*models.User `json:"users"`
	Count int            `json:"count"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, "invalid login request", err)
		return
	}
	result, err := h.service.Login(r.Context(), &req)
	if err != nil {
		h.fail(w, r, "login failed", err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req models.CreateUserRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, "invalid create user request", err)
		return
	}
	user, err := h.service.CreateUser(r.Context(), p, &req)
	if err != nil {
		h.fail(w, r, "failed to create user", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, user)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var orgID *id.OrganizationID
	if raw := strings.TrimSpace(r.URL.Query().Get("organization_id")); raw != "" {
		parsed, err := id.ParseOrganizationID(raw)
		if err != nil {
			h.fail(w, r, "invalid user filter", dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid organization_id"))
			return
		}
		orgID = &parsed
	}
	users, err := h.service.ListUsers(r.Context(), p, orgID)
	if err != nil {
		h.fail(w, r, "failed to list users", err)
		return
	}
	if users == nil {
		users = []*models.User{}
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Users: users, Count: len(users)})
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	userID, err := id.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "invalid user id", dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid user id"))
		return
	}
	user, err := h.service.DeactivateUser(r.Context(), p, userID)
	if err != nil {
		h.fail(w, r, "failed to deactivate user", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (id.Principal, bool) {
	p, ok := auth.GetPrincipal(r.Context())
	if !ok {
		h.logger.ErrorContext(r.Context(), "principal missing from context despite auth middleware",
			"request_id", request.GetRequestID(r.Context()),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.Principal{}, false
	}
	return p, true
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
