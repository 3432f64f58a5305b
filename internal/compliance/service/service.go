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
	"golang.org/x/sync/errgroup"

	"amlstat/internal/compliance/aggregate"
	compliancemetrics "amlstat/internal/compliance/metrics"
	"amlstat/internal/compliance/models"
	orgmodels "amlstat/internal/organization/models"
	submodels "amlstat/internal/submission/models"
	id "amlstat/pkg/domain"
	dErrors "amlstat/pkg/domain-errors"
	"amlstat/pkg/platform/sentinel"
	"amlstat/pkg/requestcontext"
)

type SubmissionReader interface {
	List(ctx context.Context, filter submodels.ListFilter) ([]submodels.Submission, error)
}

type OrganizationReader interface {
	FindByID(ctx context.Context, orgID id.OrganizationID) (*orgmodels.Organization, error)
	List(ctx context.Context, activeOnly bool) ([]*orgmodels.Organization, error)
}

// Cache holds computed views. ok=false reports a miss. Set calls carry the
// generation read before the view's data was loaded and are ignored once an
// invalidation has moved the generation on.
type Cache interface {
	Generation(ctx context.Context) (int64, error)
	GetOrganization(ctx context.Context, orgID id.OrganizationID, year int) (*models.OrganizationCompliance, bool, error)
	SetOrganization(ctx context.Context, view *models.OrganizationCompliance, gen int64) error
	GetOverview(ctx context.Context, year int) (*models.Overview, bool, error)
	SetOverview(ctx context.Context, overview *models.Overview, gen int64) error
}

// Service serves compliance views. Cache failures are logged and bypassed;
// the views are always recomputable from the stores.
type Service struct {
	submissions SubmissionReader
	orgs        OrganizationReader
	cache       Cache
	logger      *slog.Logger
	metrics     *compliancemetrics.Metrics
	tracer      trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *compliancemetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithCache(cache Cache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

func New(submissions SubmissionReader, orgs OrganizationReader, opts ...Option) *Service {
	s := &Service{
		submissions: submissions,
		orgs:        orgs,
		tracer:      otel.Tracer("amlstat/internal/compliance"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Organization returns the compliance view of one organization for year.
// Members may only read their own organization. A zero year means the
// current year.
func (s *Service) Organization(ctx context.Context, p id.Principal, orgID id.OrganizationID, year int) (view *models.OrganizationCompliance, err error) {
	if !p.CanAccessOrganization(orgID) {
		return nil, dErrors.New(dErrors.CodeForbidden, "caller cannot access this organization's compliance data")
	}
	year, err = s.resolveYear(ctx, year)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "compliance.organization", trace.WithAttributes(
		attribute.String("organization_id", orgID.String()),
		attribute.Int("year", year),
	))
	defer func() { finishSpan(span, err) }()

	if cached, ok := s.cachedOrganization(ctx, orgID, year); ok {
		return cached, nil
	}
	gen, cacheable := s.generation(ctx, compliancemetrics.ViewOrganization)

	start := time.Now()
	var (
		org  *orgmodels.Organization
		subs []submodels.Submission
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		org, err = s.orgs.FindByID(gctx, orgID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "organization not found")
		}
		return err
	})
	g.Go(func() error {
		var err error
		subs, err = s.submissions.List(gctx, submodels.ListFilter{OrganizationID: &orgID, Year: year})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, wrapLoadErr(err)
	}

	computed := aggregate.Organization(org, year, subs)
	view = &computed
	s.observe(compliancemetrics.ViewOrganization, start)
	if cacheable {
		s.store(ctx, compliancemetrics.ViewOrganization, func(ctx context.Context) error {
			return s.cache.SetOrganization(ctx, view, gen)
		})
	}
	return view, nil
}

// Overview returns the system-wide view for year. Administrators only.
func (s *Service) Overview(ctx context.Context, p id.Principal, year int) (overview *models.Overview, err error) {
	if !p.IsAdmin() {
		return nil, dErrors.New(dErrors.CodeForbidden, "administrator role required")
	}
	year, err = s.resolveYear(ctx, year)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "compliance.overview", trace.WithAttributes(attribute.Int("year", year)))
	defer func() { finishSpan(span, err) }()

	if cached, ok := s.cachedOverview(ctx, year); ok {
		return cached, nil
	}
	gen, cacheable := s.generation(ctx, compliancemetrics.ViewOverview)

	start := time.Now()
	var (
		orgs []*orgmodels.Organization
		subs []submodels.Submission
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		orgs, err = s.orgs.List(gctx, true)
		return err
	})
	g.Go(func() error {
		var err error
		subs, err = s.submissions.List(gctx, submodels.ListFilter{Year: year})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, wrapLoadErr(err)
	}

	computed := aggregate.Overview(year, orgs, subs, requestcontext.Now(ctx))
	overview = &computed
	s.observe(compliancemetrics.ViewOverview, start)
	if cacheable {
		s.store(ctx, compliancemetrics.ViewOverview, func(ctx context.Context) error {
			return s.cache.SetOverview(ctx, overview, gen)
		})
	}
	return overview, nil
}

func (s *Service) resolveYear(ctx context.Context, year int) (int, error) {
	if year == 0 {
		return requestcontext.Now(ctx).Year(), nil
	}
	if year < submodels.MinYear || year > submodels.MaxYear {
		return 0, dErrors.New(dErrors.CodeValidation, "year must be between 2000 and 2100")
	}
	return year, nil
}

func (s *Service) cachedOrganization(ctx context.Context, orgID id.OrganizationID, year int) (*models.OrganizationCompliance, bool) {
	if s.cache == nil {
		return nil, false
	}
	view, ok, err := s.cache.GetOrganization(ctx, orgID, year)
	return view, s.recordLookup(ctx, compliancemetrics.ViewOrganization, ok, err)
}

func (s *Service) cachedOverview(ctx context.Context, year int) (*models.Overview, bool) {
	if s.cache == nil {
		return nil, false
	}
	overview, ok, err := s.cache.GetOverview(ctx, year)
	return overview, s.recordLookup(ctx, compliancemetrics.ViewOverview, ok, err)
}

// generation reads the cache generation ahead of a recompute. When it cannot
// be read the computed view is served but not stored.
func (s *Service) generation(ctx context.Context, view string) (int64, bool) {
	if s.cache == nil {
		return 0, false
	}
	gen, err := s.cache.Generation(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "compliance cache generation read failed",
			"view", view,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		if s.metrics != nil {
			s.metrics.IncrementError(view)
		}
		return 0, false
	}
	return gen, true
}

func (s *Service) recordLookup(ctx context.Context, view string, ok bool, err error) bool {
	if err != nil {
		s.logger.WarnContext(ctx, "compliance cache read failed",
			"view", view,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		if s.metrics != nil {
			s.metrics.IncrementError(view)
		}
		return false
	}
	if s.metrics != nil {
		if ok {
			s.metrics.IncrementHit(view)
		} else {
			s.metrics.IncrementMiss(view)
		}
	}
	return ok
}

func (s *Service) store(ctx context.Context, view string, write func(ctx context.Context) error) {
	if s.cache == nil {
		return
	}
	if err := write(ctx); err != nil {
		s.logger.WarnContext(ctx, "compliance cache write failed",
			"view", view,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		if s.metrics != nil {
			s.metrics.IncrementError(view)
		}
	}
}

func (s *Service) observe(view string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveCompute(view, start)
	}
}

func wrapLoadErr(err error) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load compliance data")
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	}
	span.End()
}
