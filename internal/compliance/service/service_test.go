package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks SubmissionReader,OrganizationReader,Cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	compliancemetrics "amlstat/internal/compliance/metrics"
	"amlstat/internal/compliance/models"
	"amlstat/internal/compliance/service/mocks"
	orgmodels "amlstat/internal/organization/models"
	orgstore "amlstat/internal/organization/store"
	submodels "amlstat/internal/submission/models"
	substore "amlstat/internal/submission/store"
	id "amlstat/pkg/domain"
	dErrors "amlstat/pkg/domain-errors"
	"amlstat/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	cache   *mocks.MockCache
	subs    *substore.InMemory
	orgs    *orgstore.InMemory
	metrics *compliancemetrics.Metrics
	service *Service

	ctx   context.Context
	bank  *orgmodels.Organization
	admin id.Principal
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.cache = mocks.NewMockCache(s.ctrl)
	s.subs = substore.NewInMemory()
	s.orgs = orgstore.NewInMemory()
	s.metrics = compliancemetrics.NewWithRegistry(prometheus.NewRegistry())
	s.service = New(s.subs, s.orgs,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithCache(s.cache),
		WithMetrics(s.metrics),
	)
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	s.admin = id.Principal{UserID: id.NewUserID(), Role: id.RoleAdmin}
	s.bank = s.addOrganization("BNK")
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) addOrganization(code string) *orgmodels.Organization {
	org, err := orgmodels.NewOrganization(id.NewOrganizationID(), code, code, orgmodels.TypeBank, orgmodels.Contact{}, time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.orgs.CreateIfCodeAvailable(s.ctx, org))
	return org
}

// addSubmission stores a submission for org in month/2024 and walks it to status.
func (s *ServiceSuite) addSubmission(org *orgmodels.Organization, month int, status submodels.Status, strs string) {
	v := strs
	indicators := []submodels.Indicator{{Code: submodels.CodeTotalSTRs, Label: "STRs", Value: &v}}
	sub, err := submodels.NewSubmission(id.NewSubmissionID(), org.ID, month, 2024, indicators, id.NewUserID(), time.Now())
	s.Require().NoError(err)
	if status != submodels.StatusDraft {
		sub, err = sub.Submit(id.NewUserID(), time.Now())
		s.Require().NoError(err)
	}
	switch status {
	case submodels.StatusApproved:
		sub, err = sub.Approve(id.NewUserID(), "", time.Now())
	case submodels.StatusRejected:
		sub, err = sub.Reject(id.NewUserID(), "missing data", time.Now())
	}
	s.Require().NoError(err)
	s.Require().NoError(s.subs.Create(s.ctx, sub))
}

func (s *ServiceSuite) missAll() {
	s.cache.EXPECT().GetOrganization(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, false, nil).AnyTimes()
	s.cache.EXPECT().GetOverview(gomock.Any(), gomock.Any()).Return(nil, false, nil).AnyTimes()
	s.cache.EXPECT().Generation(gomock.Any()).Return(int64(0), nil).AnyTimes()
	s.cache.EXPECT().SetOrganization(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	s.cache.EXPECT().SetOverview(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
}

func (s *ServiceSuite) TestOrganizationScoreAndFinancials() {
	s.missAll()
	s.addSubmission(s.bank, 1, submodels.StatusApproved, "120")
	s.addSubmission(s.bank, 2, submodels.StatusApproved, "80.5")
	s.addSubmission(s.bank, 3, submodels.StatusSubmitted, "999")

	view, err := s.service.Organization(s.ctx, s.admin, s.bank.ID, 2024)
	s.Require().NoError(err)
	s.Equal(67, view.ComplianceScore)
	s.Equal(200.5, view.Financials.TotalSTRs)
	s.Equal(3, view.TotalSubmissions)
	s.Equal("BNK", view.Code)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.CacheMisses.WithLabelValues(compliancemetrics.ViewOrganization)))
}

func (s *ServiceSuite) TestOrganizationWithoutSubmissionsScoresZero() {
	s.missAll()
	view, err := s.service.Organization(s.ctx, s.admin, s.bank.ID, 2024)
	s.Require().NoError(err)
	s.Zero(view.ComplianceScore)
	s.Len(view.Months, 12)
}

func (s *ServiceSuite) TestOrganizationAccess() {
	s.missAll()
	bankID := s.bank.ID
	member := id.Principal{UserID: id.NewUserID(), Role: id.RoleOrgUser, OrganizationID: &bankID}
	other := s.addOrganization("OTHER")

	_, err := s.service.Organization(s.ctx, member, bankID, 2024)
	s.NoError(err)

	_, err = s.service.Organization(s.ctx, member, other.ID, 2024)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	_, err = s.service.Organization(s.ctx, s.admin, id.NewOrganizationID(), 2024)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.service.Overview(s.ctx, member, 2024)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *ServiceSuite) TestYear() {
	s.missAll()
	view, err := s.service.Organization(s.ctx, s.admin, s.bank.ID, 0)
	s.Require().NoError(err)
	s.Equal(2024, view.Year, "zero year defaults to the request year")

	_, err = s.service.Overview(s.ctx, s.admin, 1999)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestOverview() {
	s.missAll()
	second := s.addOrganization("SECOND")
	inactive := s.addOrganization("GONE")
	_, err := s.orgs.Execute(s.ctx, inactive.ID,
		func(o *orgmodels.Organization) error { return o.CanDeactivate() },
		func(o *orgmodels.Organization) { o.ApplyDeactivation(time.Now()) },
	)
	s.Require().NoError(err)

	s.addSubmission(s.bank, 1, submodels.StatusApproved, "10")
	s.addSubmission(s.bank, 2, submodels.StatusApproved, "10")
	s.addSubmission(s.bank, 3, submodels.StatusRejected, "10")
	s.addSubmission(second, 1, submodels.StatusApproved, "5")
	s.addSubmission(inactive, 1, submodels.StatusApproved, "1000")

	overview, err := s.service.Overview(s.ctx, s.admin, 2024)
	s.Require().NoError(err)
	s.Equal(2, overview.OrganizationCount)
	s.Equal(84, overview.AverageComplianceRate)
	s.Equal(25.0, overview.Totals.TotalSTRs)
}

func (s *ServiceSuite) TestCacheHitSkipsStores() {
	subs := mocks.NewMockSubmissionReader(s.ctrl)
	orgs := mocks.NewMockOrganizationReader(s.ctrl)
	svc := New(subs, orgs, WithCache(s.cache), WithMetrics(s.metrics),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	cached := &models.Overview{Year: 2024, AverageComplianceRate: 42}
	s.cache.EXPECT().GetOverview(gomock.Any(), 2024).Return(cached, true, nil)

	got, err := svc.Overview(s.ctx, s.admin, 2024)
	s.Require().NoError(err)
	s.Same(cached, got)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.CacheHits.WithLabelValues(compliancemetrics.ViewOverview)))
}

func (s *ServiceSuite) TestCacheFailuresAreBypassed() {
	s.cache.EXPECT().GetOrganization(gomock.Any(), s.bank.ID, 2024).Return(nil, false, errors.New("redis down"))
	s.cache.EXPECT().Generation(gomock.Any()).Return(int64(3), nil)
	s.cache.EXPECT().SetOrganization(gomock.Any(), gomock.Any(), int64(3)).Return(errors.New("redis down"))

	view, err := s.service.Organization(s.ctx, s.admin, s.bank.ID, 2024)
	s.Require().NoError(err)
	s.Equal(s.bank.ID, view.OrganizationID)
	s.Equal(float64(2), testutil.ToFloat64(s.metrics.CacheErrors.WithLabelValues(compliancemetrics.ViewOrganization)))
}

func (s *ServiceSuite) TestRecomputeStoresUnderGenerationReadBeforeLoading() {
	subs := mocks.NewMockSubmissionReader(s.ctrl)
	orgs := mocks.NewMockOrganizationReader(s.ctrl)
	svc := New(subs, orgs, WithCache(s.cache), WithMetrics(s.metrics),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	gomock.InOrder(
		s.cache.EXPECT().GetOverview(gomock.Any(), 2024).Return(nil, false, nil),
		s.cache.EXPECT().Generation(gomock.Any()).Return(int64(7), nil),
		orgs.EXPECT().List(gomock.Any(), true).Return([]*orgmodels.Organization{s.bank}, nil),
		s.cache.EXPECT().SetOverview(gomock.Any(), gomock.Any(), int64(7)).Return(nil),
	)
	subs.EXPECT().List(gomock.Any(), gomock.Any()).Return(nil, nil)

	overview, err := svc.Overview(s.ctx, s.admin, 2024)
	s.Require().NoError(err)
	s.Equal(1, overview.OrganizationCount)
}

func (s *ServiceSuite) TestUnreadableGenerationSkipsTheWrite() {
	s.cache.EXPECT().GetOrganization(gomock.Any(), s.bank.ID, 2024).Return(nil, false, nil)
	s.cache.EXPECT().Generation(gomock.Any()).Return(int64(0), errors.New("redis down"))

	view, err := s.service.Organization(s.ctx, s.admin, s.bank.ID, 2024)
	s.Require().NoError(err)
	s.Equal(s.bank.ID, view.OrganizationID)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.CacheErrors.WithLabelValues(compliancemetrics.ViewOrganization)))
}

func (s *ServiceSuite) TestStoreFailureIsInternal() {
	subs := mocks.NewMockSubmissionReader(s.ctrl)
	orgs := mocks.NewMockOrganizationReader(s.ctrl)
	svc := New(subs, orgs, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	orgs.EXPECT().List(gomock.Any(), true).Return(nil, nil)
	subs.EXPECT().List(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection reset"))

	_, err := svc.Overview(s.ctx, s.admin, 2024)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}
