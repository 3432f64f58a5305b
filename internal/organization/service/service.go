package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	orgmetrics "amlstat/internal/organization/metrics"
	"amlstat/internal/organization/models"
	id "amlstat/pkg/domain"
	dErrors "amlstat/pkg/domain-errors"
	audit "amlstat/pkg/platform/audit"
	"amlstat/pkg/platform/sentinel"
	txcontext "amlstat/pkg/platform/tx"
	"amlstat/pkg/requestcontext"
)

type Store interface {
	CreateIfCodeAvailable(ctx context.Context, org *models.Organization) error
	FindByID(ctx context.Context, orgID id.OrganizationID) (*models.Organization, error)
	List(ctx context.Context, activeOnly bool) ([]*models.Organization, error)
	Execute(ctx context.Context, orgID id.OrganizationID, validate func(*models.Organization) error, mutate func(*models.Organization)) (*models.Organization, error)
	Delete(ctx context.Context, orgID id.OrganizationID) error
}

// DependentCounter counts records that reference an organization.
type DependentCounter interface {
	CountByOrganization(ctx context.Context, orgID id.OrganizationID) (int, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// CacheInvalidator drops every cached aggregate that involves the
// organization, including system overviews.
type CacheInvalidator interface {
	InvalidateOrganization(ctx context.Context, orgID id.OrganizationID) error
}

// Service manages the organization registry.
type Service struct {
	orgs        Store
	users       DependentCounter
	submissions DependentCounter
	tx          txcontext.Runner
	audit       AuditPublisher
	cache       CacheInvalidator
	logger      *slog.Logger
	metrics     *orgmetrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.audit = publisher
	}
}

func WithMetrics(m *orgmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTxRunner(runner txcontext.Runner) Option {
	return func(s *Service) {
		s.tx = runner
	}
}

func WithCacheInvalidator(cache CacheInvalidator) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

// New constructs a Service. users and submissions guard hard deletes.
func New(orgs Store, users, submissions DependentCounter, opts ...Option) *Service {
	s := &Service{orgs: orgs, users: users, submissions: submissions}
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

func (s *Service) Create(ctx context.Context, p id.Principal, req *models.CreateOrganizationRequest) (*models.Organization, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	req.Normalize()

	var org *models.Organization
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		o, err := models.NewOrganization(id.NewOrganizationID(), req.Code, req.Name, req.Type, req.Contact(), requestcontext.Now(txCtx))
		if err != nil {
			return asValidation(err)
		}
		if err := s.orgs.CreateIfCodeAvailable(txCtx, o); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "organization code must be unique")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create organization")
		}
		if err := s.emit(txCtx, audit.EventOrganizationCreated, p, o.ID, ""); err != nil {
			return err
		}
		org = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementCreated()
	}
	// A new active organization changes every cached overview.
	s.invalidate(ctx, org.ID)
	s.logAudit(ctx, audit.EventOrganizationCreated, org, p)
	return org, nil
}

// Get returns an organization. Members may read their own organization.
func (s *Service) Get(ctx context.Context, p id.Principal, orgID id.OrganizationID) (*models.Organization, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveGetOrganization(start)
		}
	}()

	if !p.CanAccessOrganization(orgID) {
		return nil, dErrors.New(dErrors.CodeForbidden, "caller cannot access this organization")
	}
	org, err := s.orgs.FindByID(ctx, orgID)
	if err != nil {
		return nil, wrapOrgErr(err, "failed to load organization")
	}
	return org, nil
}

// Mine returns the caller's own organization.
func (s *Service) Mine(ctx context.Context, p id.Principal) (*models.Organization, error) {
	if p.OrganizationID == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "caller does not belong to an organization")
	}
	return s.Get(ctx, p, *p.OrganizationID)
}

func (s *Service) List(ctx context.Context, p id.Principal, activeOnly bool) ([]*models.Organization, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	orgs, err := s.orgs.List(ctx, activeOnly)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list organizations")
	}
	return orgs, nil
}

// Update patches name, type and contact details.
func (s *Service) Update(ctx context.Context, p id.Principal, orgID id.OrganizationID, req *models.UpdateOrganizationRequest) (*models.Organization, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	req.Normalize()
	if req.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeValidation, "no fields to update")
	}

	var patched models.Organization
	return s.change(ctx, p, orgID, audit.EventOrganizationUpdated,
		func(o *models.Organization) error {
			next, err := req.Apply(*o)
			if err != nil {
				return asValidation(err)
			}
			patched = next
			return nil
		},
		func(o *models.Organization, now time.Time) {
			*o = patched
			o.UpdatedAt = now
		},
	)
}

// Deactivate marks an active organization inactive. Its members can no
// longer log in and it drops out of the system overview.
func (s *Service) Deactivate(ctx context.Context, p id.Principal, orgID id.OrganizationID) (*models.Organization, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	org, err := s.change(ctx, p, orgID, audit.EventOrganizationDeactivated,
		func(o *models.Organization) error {
			if err := o.CanDeactivate(); err != nil {
				if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
					return dErrors.New(dErrors.CodeConflict, "organization is already inactive")
				}
				return err
			}
			return nil
		},
		func(o *models.Organization, now time.Time) {
			o.ApplyDeactivation(now)
		},
	)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncrementStatusChange("deactivate")
	}
	return org, nil
}

func (s *Service) Reactivate(ctx context.Context, p id.Principal, orgID id.OrganizationID) (*models.Organization, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	org, err := s.change(ctx, p, orgID, audit.EventOrganizationReactivated,
		func(o *models.Organization) error {
			if err := o.CanReactivate(); err != nil {
				if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
					return dErrors.New(dErrors.CodeConflict, "organization is already active")
				}
				return err
			}
			return nil
		},
		func(o *models.Organization, now time.Time) {
			o.ApplyReactivation(now)
		},
	)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncrementStatusChange("reactivate")
	}
	return org, nil
}

// Delete removes an organization that owns no users and no submissions.
func (s *Service) Delete(ctx context.Context, p id.Principal, orgID id.OrganizationID) error {
	if err := requireAdmin(p); err != nil {
		return err
	}

	var org *models.Organization
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		o, err := s.orgs.FindByID(txCtx, orgID)
		if err != nil {
			return wrapOrgErr(err, "failed to load organization")
		}
		for _, dep := range []struct {
			counter DependentCounter
			what    string
		}{
			{s.users, "users"},
			{s.submissions, "submissions"},
		} {
			if dep.counter == nil {
				continue
			}
			n, err := dep.counter.CountByOrganization(txCtx, orgID)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count organization "+dep.what)
			}
			if n > 0 {
				return dErrors.New(dErrors.CodeConflict, "organization still has "+dep.what)
			}
		}
		if err := s.orgs.Delete(txCtx, orgID); err != nil {
			return wrapOrgErr(err, "failed to delete organization")
		}
		if err := s.emit(txCtx, audit.EventOrganizationDeleted, p, orgID, ""); err != nil {
			return err
		}
		org = o
		return nil
	})
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.IncrementDeleted()
	}
	s.invalidate(ctx, orgID)
	s.logAudit(ctx, audit.EventOrganizationDeleted, org, p)
	return nil
}

// change runs validate and mutate under the store lock and records the audit
// event in the same transaction.
func (s *Service) change(
	ctx context.Context,
	p id.Principal,
	orgID id.OrganizationID,
	event audit.AuditEvent,
	validate func(*models.Organization) error,
	mutate func(*models.Organization, time.Time),
) (*models.Organization, error) {
	var org *models.Organization
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)
		o, err := s.orgs.Execute(txCtx, orgID, validate, func(o *models.Organization) { mutate(o, now) })
		if err != nil {
			return wrapOrgErr(err, "failed to update organization")
		}
		if err := s.emit(txCtx, event, p, o.ID, ""); err != nil {
			return err
		}
		org = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, orgID)
	s.logAudit(ctx, event, org, p)
	return org, nil
}

func (s *Service) invalidate(ctx context.Context, orgID id.OrganizationID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateOrganization(ctx, orgID); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate compliance cache",
			"organization_id", orgID,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
}

func (s *Service) emit(ctx context.Context, event audit.AuditEvent, p id.Principal, orgID id.OrganizationID, reason string) error {
	if s.audit == nil {
		return nil
	}
	err := s.audit.Emit(ctx, audit.Event{
		Action:         event,
		SubjectType:    audit.SubjectOrganization,
		SubjectID:      orgID.String(),
		OrganizationID: orgID,
		ActorID:        p.UserID,
		Reason:         reason,
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, org *models.Organization, p id.Principal) {
	s.logger.InfoContext(ctx, string(event),
		"organization_id", org.ID,
		"code", org.Code,
		"active", org.Active,
		"actor_id", p.UserID,
		"request_id", requestcontext.RequestID(ctx),
		"event", string(event),
		"log_type", "audit",
	)
}

func requireAdmin(p id.Principal) error {
	if !p.IsAdmin() {
		return dErrors.New(dErrors.CodeForbidden, "administrator role required")
	}
	return nil
}

// asValidation reports model invariant violations as validation errors.
func asValidation(err error) error {
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		return dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
	}
	return err
}

func wrapOrgErr(err error, msg string) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "organization not found")
	case errors.Is(err, sentinel.ErrHasDependents):
		return dErrors.New(dErrors.CodeConflict, "organization still has users or submissions")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "organization code must be unique")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}
