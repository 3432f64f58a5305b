package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"amlstat/internal/submission/models"
	id "amlstat/pkg/domain"
	dErrors "amlstat/pkg/domain-errors"
	audit "amlstat/pkg/platform/audit"
	"amlstat/pkg/platform/httputil"
	"amlstat/pkg/platform/middleware/admin"
	"amlstat/pkg/platform/middleware/auth"
	request "amlstat/pkg/platform/middleware/request"
)

// Service defines the submission operations exposed over HTTP.
type Service interface {
	Template() []models.Indicator
	Create(ctx context.Context, p id.Principal, req *models.CreateSubmissionRequest) (models.Submission, error)
	Get(ctx context.Context, p id.Principal, subID id.SubmissionID) (models.Submission, error)
	List(ctx context.Context, p id.Principal, filter models.ListFilter) ([]models.Submission, error)
	Update(ctx context.Context, p id.Principal, subID id.SubmissionID, req *models.UpdateSubmissionRequest) (models.Submission, error)
	Submit(ctx context.Context, p id.Principal, subID id.SubmissionID) (models.Submission, error)
	Approve(ctx context.Context, p id.Principal, subID id.SubmissionID, req models.ApproveRequest) (models.Submission, error)
	Reject(ctx context.Context, p id.Principal, subID id.SubmissionID, req models.RejectRequest) (models.Submission, error)
	Delete(ctx context.Context, p id.Principal, subID id.SubmissionID) error
	History(ctx context.Context, p id.Principal, subID id.SubmissionID) ([]audit.Event, error)
}

// Handler serves the submission endpoints. It expects auth.RequireAuth to
// have run.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the submission routes on an authenticated router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/indicators/template", h.handleTemplate)

	r.Route("/submissions", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Get("/{id}", h.handleGet)
		r.Put("/{id}", h.handleUpdate)
		r.Delete("/{id}", h.handleDelete)
		r.Post("/{id}/submit", h.handleSubmit)
		r.Get("/{id}/history", h.handleHistory)
	})

	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdmin(h.logger))
		r.Post("/admin/submissions/{id}/approve", h.handleApprove)
		r.Post("/admin/submissions/{id}/reject", h.handleReject)
	})
}

type listResponse struct {
	Submissions []models.Submission `json:"submissions"`
	Count       int                 `json:"count"`
}

type historyResponse struct {
	SubmissionID id.SubmissionID `json:"submission_id"`
	Events       []audit.Event   `json:"events"`
}

type templateResponse struct {
	Indicators []models.Indicator `json:"indicators"`
}

func (h *Handler) handleTemplate(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, templateResponse{Indicators: h.service.Template()})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req models.CreateSubmissionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, "invalid create submission request", err)
		return
	}
	sub, err := h.service.Create(r.Context(), p, &req)
	if err != nil {
		h.fail(w, r, "failed to create submission", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, sub)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	filter, err := parseListFilter(r)
	if err != nil {
		h.fail(w, r, "invalid submission filter", err)
		return
	}
	subs, err := h.service.List(r.Context(), p, filter)
	if err != nil {
		h.fail(w, r, "failed to list submissions", err)
		return
	}
	if subs == nil {
		subs = []models.Submission{}
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Submissions: subs, Count: len(subs)})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	h.withSubmission(w, r, func(p id.Principal, subID id.SubmissionID) (models.Submission, error) {
		return h.service.Get(r.Context(), p, subID)
	}, http.StatusOK)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	h.withSubmission(w, r, func(p id.Principal, subID id.SubmissionID) (models.Submission, error) {
		var req models.UpdateSubmissionRequest
		if err := httputil.DecodeJSON(r, &req); err != nil {
			return models.Submission{}, err
		}
		return h.service.Update(r.Context(), p, subID, &req)
	}, http.StatusOK)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	h.withSubmission(w, r, func(p id.Principal, subID id.SubmissionID) (models.Submission, error) {
		return h.service.Submit(r.Context(), p, subID)
	}, http.StatusOK)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.withSubmission(w, r, func(p id.Principal, subID id.SubmissionID) (models.Submission, error) {
		var req models.ApproveRequest
		// The body is optional for approval.
		if r.ContentLength != 0 {
			if err := httputil.DecodeJSON(r, &req); err != nil {
				return models.Submission{}, err
			}
		}
		return h.service.Approve(r.Context(), p, subID, req)
	}, http.StatusOK)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	h.withSubmission(w, r, func(p id.Principal, subID id.SubmissionID) (models.Submission, error) {
		var req models.RejectRequest
		if err := httputil.DecodeJSON(r, &req); err != nil {
			return models.Submission{}, err
		}
		return h.service.Reject(r.Context(), p, subID, req)
	}, http.StatusOK)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	subID, err := id.ParseSubmissionID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "invalid submission id", dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid submission id"))
		return
	}
	if err := h.service.Delete(r.Context(), p, subID); err != nil {
		h.fail(w, r, "failed to delete submission", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	subID, err := id.ParseSubmissionID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "invalid submission id", dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid submission id"))
		return
	}
	events, err := h.service.History(r.Context(), p, subID)
	if err != nil {
		h.fail(w, r, "failed to load submission history", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, historyResponse{SubmissionID: subID, Events: events})
}

// withSubmission resolves the principal and the {id} path parameter, runs op
// and renders the resulting submission.
func (h *Handler) withSubmission(
	w http.ResponseWriter,
	r *http.Request,
	op func(p id.Principal, subID id.SubmissionID) (models.Submission, error),
	status int,
) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	subID, err := id.ParseSubmissionID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "invalid submission id", dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid submission id"))
		return
	}
	sub, err := op(p, subID)
	if err != nil {
		h.fail(w, r, "submission request failed", err)
		return
	}
	httputil.WriteJSON(w, status, sub)
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

// fail logs at warn for client errors and error for internal failures, then
// writes the error response.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	level := slog.LevelWarn
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"error", err,
		"path", r.URL.Path,
		"request_id", request.GetRequestID(ctx),
	)
	httputil.WriteError(w, err)
}

func parseListFilter(r *http.Request) (models.ListFilter, error) {
	q := r.URL.Query()
	var filter models.ListFilter
	if raw := strings.TrimSpace(q.Get("organization_id")); raw != "" {
		orgID, err := id.ParseOrganizationID(raw)
		if err != nil {
			return models.ListFilter{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid organization_id")
		}
		filter.OrganizationID = &orgID
	}
	var err error
	if filter.Year, err = intParam(q.Get("year"), "year"); err != nil {
		return models.ListFilter{}, err
	}
	if filter.Month, err = intParam(q.Get("month"), "month"); err != nil {
		return models.ListFilter{}, err
	}
	filter.Status = models.Status(strings.TrimSpace(q.Get("status")))
	return filter, nil
}

func intParam(raw, name string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid "+name)
	}
	return n, nil
}
