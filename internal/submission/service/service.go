package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	orgmodels "amlstat/internal/organization/models"
	submissionmetrics "amlstat/internal/submission/metrics"
	"amlstat/internal/submission/models"
	id "amlstat/pkg/domain"
	dErrors "amlstat/pkg/domain-errors"
	audit "amlstat/pkg/platform/audit"
	"amlstat/pkg/platform/sentinel"
	txcontext "amlstat/pkg/platform/tx"
	"amlstat/pkg/requestcontext"
)

// Store persists submissions. Execute and DeleteIf run their callbacks while
// holding the submission's lock (row lock or mutex).
type Store interface {
	Create(ctx context.Context, sub models.Submission) error
	FindByID(ctx context.Context, subID id.SubmissionID) (models.Submission, error)
	List(ctx context.Context, filter models.ListFilter) ([]models.Submission, error)
	Execute(ctx context.Context, subID id.SubmissionID, fn func(current models.Submission) (models.Submission, error)) (models.Submission, error)
	DeleteIf(ctx context.Context, subID id.SubmissionID, check func(current models.Submission) error) (models.Submission, error)
}

type OrganizationStore interface {
	FindByID(ctx context.Context, orgID id.OrganizationID) (*orgmodels.Organization, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
	History(ctx context.Context, subjectType audit.SubjectType, subjectID string) ([]audit.Event, error)
}

// CacheInvalidator drops aggregated views derived from an organization's
// submissions for a year.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, orgID id.OrganizationID, year int) error
}

const (
	transitionCreate  = "create"
	transitionUpdate  = "update"
	transitionSubmit  = "submit"
	transitionApprove = "approve"
	transitionReject  = "reject"
	transitionDelete  = "delete"
)

// Service runs the submission lifecycle. The caller's principal is an
// explicit argument to every operation.
type Service struct {
	store   Store
	orgs    OrganizationStore
	tx      txcontext.Runner
	audit   AuditPublisher
	cache   CacheInvalidator
	logger  *slog.Logger
	metrics *submissionmetrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *submissionmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.audit = publisher
	}
}

func WithCacheInvalidator(cache CacheInvalidator) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

// WithTxRunner sets the transaction runner. Defaults to an in-process lock.
func WithTxRunner(runner txcontext.Runner) Option {
	return func(s *Service) {
		s.tx = runner
	}
}

// New constructs a Service.
func New(store Store, orgs OrganizationStore, opts ...Option) *Service {
	s := &Service{
		store:  store,
		orgs:   orgs,
		tracer: otel.Tracer("amlstat/internal/submission"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = txcontext.NewLockingRunner()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Template returns the blank standard indicator form.
func (s *Service) Template() []models.Indicator {
	return models.Template()
}

// Create opens a draft for the caller's organization. A second draft for the
// same (organization, month, year) fails with conflict.
func (s *Service) Create(ctx context.Context, p id.Principal, req *models.CreateSubmissionRequest) (sub models.Submission, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, transitionCreate)
	defer func() { s.finishSpan(span, transitionCreate, err) }()

	req.Normalize()
	orgID, err := resolveOrganization(p, req.OrganizationID)
	if err != nil {
		return models.Submission{}, err
	}
	if err := requireMember(p, orgID); err != nil {
		return models.Submission{}, err
	}
	if err := req.Validate(); err != nil {
		return models.Submission{}, err
	}
	span.SetAttributes(attribute.String("organization_id", orgID.String()))

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.requireActiveOrganization(txCtx, orgID); err != nil {
			return err
		}
		created, err := models.NewSubmission(id.NewSubmissionID(), orgID, req.Month, req.Year, req.Indicators, p.UserID, requestcontext.Now(txCtx))
		if err != nil {
			return err
		}
		if err := s.store.Create(txCtx, created); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "a submission already exists for this organization and period")
			}
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "organization not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create submission")
		}
		if err := s.emit(txCtx, audit.EventSubmissionCreated, p, created, ""); err != nil {
			return err
		}
		sub = created
		return nil
	})
	if err != nil {
		return models.Submission{}, err
	}

	s.afterChange(ctx, transitionCreate, sub, start)
	s.logAudit(ctx, audit.EventSubmissionCreated, sub, p)
	return sub, nil
}

// Get returns a submission the caller may read.
func (s *Service) Get(ctx context.Context, p id.Principal, subID id.SubmissionID) (models.Submission, error) {
	sub, err := s.store.FindByID(ctx, subID)
	if err != nil {
		return models.Submission{}, wrapStoreErr(err, "failed to load submission")
	}
	if !p.CanAccessOrganization(sub.OrganizationID) {
		return models.Submission{}, dErrors.New(dErrors.CodeForbidden, "submission belongs to another organization")
	}
	return sub, nil
}

// List returns submissions matching filter. Non-admin callers only ever see
// their own organization's submissions.
func (s *Service) List(ctx context.Context, p id.Principal, filter models.ListFilter) ([]models.Submission, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if !p.IsAdmin() {
		if p.OrganizationID == nil {
			return nil, dErrors.New(dErrors.CodeForbidden, "caller does not belong to an organization")
		}
		orgID := *p.OrganizationID
		filter.OrganizationID = &orgID
	}
	subs, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list submissions")
	}
	return subs, nil
}

// Update replaces the indicators of a draft or rejected submission and
// recomputes its completion.
func (s *Service) Update(ctx context.Context, p id.Principal, subID id.SubmissionID, req *models.UpdateSubmissionRequest) (models.Submission, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return models.Submission{}, err
	}
	return s.transition(ctx, p, subID, transitionUpdate, audit.EventSubmissionUpdated,
		func(cur models.Submission) error { return requireMember(p, cur.OrganizationID) },
		func(cur models.Submission, now time.Time) (models.Submission, error) {
			return cur.WithIndicators(req.Indicators, now)
		},
		func(models.Submission) string { return "" },
	)
}

// Submit sends a draft or rejected submission for review once it is at
// least models.SubmitThresholdPct complete.
func (s *Service) Submit(ctx context.Context, p id.Principal, subID id.SubmissionID) (models.Submission, error) {
	return s.transition(ctx, p, subID, transitionSubmit, audit.EventSubmissionSubmitted,
		func(cur models.Submission) error { return requireMember(p, cur.OrganizationID) },
		func(cur models.Submission, now time.Time) (models.Submission, error) {
			return cur.Submit(p.UserID, now)
		},
		func(models.Submission) string { return "" },
	)
}

// Approve accepts a submitted submission. Administrators only.
func (s *Service) Approve(ctx context.Context, p id.Principal, subID id.SubmissionID, req models.ApproveRequest) (models.Submission, error) {
	if err := requireAdmin(p); err != nil {
		return models.Submission{}, err
	}
	return s.transition(ctx, p, subID, transitionApprove, audit.EventSubmissionApproved,
		func(models.Submission) error { return nil },
		func(cur models.Submission, now time.Time) (models.Submission, error) {
			return cur.Approve(p.UserID, req.Comments, now)
		},
		func(next models.Submission) string {
			if next.Comments != nil {
				return *next.Comments
			}
			return ""
		},
	)
}

// Reject returns a submitted submission to its organization. Administrators
// only; the reason is required.
func (s *Service) Reject(ctx context.Context, p id.Principal, subID id.SubmissionID, req models.RejectRequest) (models.Submission, error) {
	if err := requireAdmin(p); err != nil {
		return models.Submission{}, err
	}
	reason, err := models.NormalizeReason(req.Reason)
	if err != nil {
		return models.Submission{}, err
	}
	return s.transition(ctx, p, subID, transitionReject, audit.EventSubmissionRejected,
		func(models.Submission) error { return nil },
		func(cur models.Submission, now time.Time) (models.Submission, error) {
			return cur.Reject(p.UserID, reason, now)
		},
		func(models.Submission) string { return reason },
	)
}

// Delete removes a draft. Administrators and members of the owning
// organization may delete.
func (s *Service) Delete(ctx context.Context, p id.Principal, subID id.SubmissionID) (err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, transitionDelete, attribute.String("submission_id", subID.String()))
	defer func() { s.finishSpan(span, transitionDelete, err) }()

	var deleted models.Submission
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		sub, err := s.store.DeleteIf(txCtx, subID, func(cur models.Submission) error {
			if !p.CanAccessOrganization(cur.OrganizationID) {
				return dErrors.New(dErrors.CodeForbidden, "submission belongs to another organization")
			}
			return cur.CanDelete()
		})
		if err != nil {
			return wrapStoreErr(err, "failed to delete submission")
		}
		if err := s.emit(txCtx, audit.EventSubmissionDeleted, p, sub, ""); err != nil {
			return err
		}
		deleted = sub
		return nil
	})
	if err != nil {
		return err
	}

	s.afterChange(ctx, transitionDelete, deleted, start)
	s.logAudit(ctx, audit.EventSubmissionDeleted, deleted, p)
	return nil
}

// History returns the audit trail of a submission the caller may read,
// oldest first.
func (s *Service) History(ctx context.Context, p id.Principal, subID id.SubmissionID) ([]audit.Event, error) {
	if _, err := s.Get(ctx, p, subID); err != nil {
		return nil, err
	}
	if s.audit == nil {
		return []audit.Event{}, nil
	}
	events, err := s.audit.History(ctx, audit.SubjectSubmission, subID.String())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load submission history")
	}
	if events == nil {
		events = []audit.Event{}
	}
	return events, nil
}

// transition runs load, authorize, step and save inside one transaction and
// emits the audit event in the same transaction.
func (s *Service) transition(
	ctx context.Context,
	p id.Principal,
	subID id.SubmissionID,
	name string,
	event audit.AuditEvent,
	authorize func(cur models.Submission) error,
	step func(cur models.Submission, now time.Time) (models.Submission, error),
	reason func(next models.Submission) string,
) (result models.Submission, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, name, attribute.String("submission_id", subID.String()))
	defer func() { s.finishSpan(span, name, err) }()

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)
		next, err := s.store.Execute(txCtx, subID, func(cur models.Submission) (models.Submission, error) {
			if err := authorize(cur); err != nil {
				return models.Submission{}, err
			}
			return step(cur, now)
		})
		if err != nil {
			return wrapStoreErr(err, "failed to "+name+" submission")
		}
		if err := s.emit(txCtx, event, p, next, reason(next)); err != nil {
			return err
		}
		result = next
		return nil
	})
	if err != nil {
		return models.Submission{}, err
	}

	s.afterChange(ctx, name, result, start)
	s.logAudit(ctx, event, result, p)
	return result, nil
}

func (s *Service) requireActiveOrganization(ctx context.Context, orgID id.OrganizationID) error {
	if s.orgs == nil {
		return nil
	}
	org, err := s.orgs.FindByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "organization not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load organization")
	}
	if !org.IsActive() {
		return dErrors.New(dErrors.CodeForbidden, "organization is inactive")
	}
	return nil
}

func (s *Service) emit(ctx context.Context, event audit.AuditEvent, p id.Principal, sub models.Submission, reason string) error {
	if s.audit == nil {
		return nil
	}
	err := s.audit.Emit(ctx, audit.Event{
		Action:         event,
		SubjectType:    audit.SubjectSubmission,
		SubjectID:      sub.ID.String(),
		OrganizationID: sub.OrganizationID,
		ActorID:        p.UserID,
		Reason:         reason,
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}

// afterChange runs once the transaction has committed.
func (s *Service) afterChange(ctx context.Context, name string, sub models.Submission, start time.Time) {
	if s.metrics != nil {
		if name == transitionCreate {
			s.metrics.IncrementCreated()
			s.metrics.ObserveCreate(start)
		} else {
			s.metrics.IncrementTransition(name)
			s.metrics.ObserveTransition(name, start)
		}
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, sub.OrganizationID, sub.Year); err != nil {
			s.logger.WarnContext(ctx, "failed to invalidate compliance cache",
				"organization_id", sub.OrganizationID,
				"year", sub.Year,
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
	}
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, sub models.Submission, p id.Principal) {
	s.logger.InfoContext(ctx, string(event),
		"submission_id", sub.ID,
		"organization_id", sub.OrganizationID,
		"status", sub.Status,
		"actor_id", p.UserID,
		"request_id", requestcontext.RequestID(ctx),
		"event", string(event),
		"log_type", "audit",
	)
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "submission."+name, trace.WithAttributes(attrs...))
}

func (s *Service) finishSpan(span trace.Span, name string, err error) {
	defer span.End()
	if err == nil {
		return
	}
	code := dErrors.CodeOf(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, string(code))
	if s.metrics != nil && code != dErrors.CodeInternal {
		s.metrics.IncrementGuardFailure(name, string(code))
	}
}

func resolveOrganization(p id.Principal, raw string) (id.OrganizationID, error) {
	if raw != "" {
		orgID, err := id.ParseOrganizationID(raw)
		if err != nil {
			return id.OrganizationID{}, dErrors.Wrap(err, dErrors.CodeValidation, "invalid organization_id")
		}
		return orgID, nil
	}
	if p.OrganizationID == nil {
		return id.OrganizationID{}, dErrors.New(dErrors.CodeForbidden, "caller does not belong to an organization")
	}
	return *p.OrganizationID, nil
}

func requireMember(p id.Principal, orgID id.OrganizationID) error {
	if !p.BelongsTo(orgID) {
		return dErrors.New(dErrors.CodeForbidden, "caller does not belong to the submission's organization")
	}
	return nil
}

func requireAdmin(p id.Principal) error {
	if !p.IsAdmin() {
		return dErrors.New(dErrors.CodeForbidden, "administrator role required")
	}
	return nil
}

// wrapStoreErr translates store sentinels into domain errors. Domain errors
// raised inside store callbacks pass through unchanged.
func wrapStoreErr(err error, msg string) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "submission not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "submission was modified concurrently")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodeInvalidState, "invalid submission state")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}
