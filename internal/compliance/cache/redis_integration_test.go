//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"amlstat/internal/compliance/cache"
	"amlstat/internal/compliance/models"
	id "amlstat/pkg/domain"
	"amlstat/pkg/testutil/containers"
)

type RedisCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *cache.RedisCache
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.cache = cache.NewRedis(s.redis.Client, time.Minute)
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisCacheSuite) TestRoundTripAndTTL() {
	ctx := context.Background()
	orgID := id.NewOrganizationID()

	_, ok, err := s.cache.GetOrganization(ctx, orgID, 2024)
	s.Require().NoError(err)
	s.False(ok)

	view := &models.OrganizationCompliance{OrganizationID: orgID, Code: "BNK", Year: 2024, ComplianceScore: 67,
		Financials: models.FinancialMetrics{TotalSTRs: 200.5}}
	s.Require().NoError(s.cache.SetOrganization(ctx, view, 0))

	got, ok, err := s.cache.GetOrganization(ctx, orgID, 2024)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal(67, got.ComplianceScore)
	s.Equal(200.5, got.Financials.TotalSTRs)

	ttl, err := s.redis.Client.TTL(ctx, cache.OrganizationKey(orgID, 2024)).Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
	s.LessOrEqual(ttl, time.Minute)
}

func (s *RedisCacheSuite) TestInvalidate() {
	ctx := context.Background()
	orgID := id.NewOrganizationID()
	other := id.NewOrganizationID()

	for _, year := range []int{2023, 2024} {
		s.Require().NoError(s.cache.SetOrganization(ctx, &models.OrganizationCompliance{OrganizationID: orgID, Year: year}, 0))
		s.Require().NoError(s.cache.SetOverview(ctx, &models.Overview{Year: year}, 0))
	}
	s.Require().NoError(s.cache.SetOrganization(ctx, &models.OrganizationCompliance{OrganizationID: other, Year: 2024}, 0))

	s.Require().NoError(s.cache.Invalidate(ctx, orgID, 2024))
	_, ok, _ := s.cache.GetOrganization(ctx, orgID, 2024)
	s.False(ok)
	_, ok, _ = s.cache.GetOverview(ctx, 2024)
	s.False(ok)
	_, ok, _ = s.cache.GetOrganization(ctx, orgID, 2023)
	s.True(ok, "other years stay cached")

	s.Require().NoError(s.cache.InvalidateOrganization(ctx, orgID))
	_, ok, _ = s.cache.GetOrganization(ctx, orgID, 2023)
	s.False(ok)
	_, ok, _ = s.cache.GetOverview(ctx, 2023)
	s.False(ok)
	_, ok, _ = s.cache.GetOrganization(ctx, other, 2024)
	s.True(ok, "unrelated organizations stay cached")
}

func (s *RedisCacheSuite) TestWritesFromAnOlderGenerationAreDropped() {
	ctx := context.Background()
	orgID := id.NewOrganizationID()

	gen, err := s.cache.Generation(ctx)
	s.Require().NoError(err)
	s.Zero(gen)

	// An approval lands while the view is being computed.
	s.Require().NoError(s.cache.Invalidate(ctx, orgID, 2024))
	s.Require().NoError(s.cache.SetOrganization(ctx, &models.OrganizationCompliance{OrganizationID: orgID, Year: 2024}, gen))
	s.Require().NoError(s.cache.SetOverview(ctx, &models.Overview{Year: 2024}, gen))
	_, ok, _ := s.cache.GetOrganization(ctx, orgID, 2024)
	s.False(ok)
	_, ok, _ = s.cache.GetOverview(ctx, 2024)
	s.False(ok)

	next, err := s.cache.Generation(ctx)
	s.Require().NoError(err)
	s.Equal(gen+1, next)
	s.Require().NoError(s.cache.SetOverview(ctx, &models.Overview{Year: 2024}, next))
	_, ok, _ = s.cache.GetOverview(ctx, 2024)
	s.True(ok)

	s.Require().NoError(s.cache.InvalidateOrganization(ctx, orgID))
	after, err := s.cache.Generation(ctx)
	s.Require().NoError(err)
	s.Equal(next+1, after)
}

func (s *RedisCacheSuite) TestCorruptEntryIsAMiss() {
	ctx := context.Background()
	s.Require().NoError(s.redis.Client.Set(ctx, cache.OverviewKey(2024), "{not json", time.Minute).Err())

	_, ok, err := s.cache.GetOverview(ctx, 2024)
	s.Require().NoError(err)
	s.False(ok)

	exists, err := s.redis.Client.Exists(ctx, cache.OverviewKey(2024)).Result()
	s.Require().NoError(err)
	s.Zero(exists)
}
