//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"amlstat/internal/organization/models"
	"amlstat/internal/organization/store"
	id "amlstat/pkg/domain"
	"amlstat/pkg/platform/sentinel"
	"amlstat/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(),
		"outbox", "audit_events", "submissions", "users", "organizations"))
}

func (s *PostgresStoreSuite) newOrganization(code string) *models.Organization {
	org, err := models.NewOrganization(id.NewOrganizationID(), code, "Org "+code, models.TypeInsurance,
		models.Contact{Email: "ops@example.com", Phone: "+1 555 0100", Address: "1 Main St"},
		time.Now().UTC().Truncate(time.Microsecond))
	s.Require().NoError(err)
	return org
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	org := s.newOrganization("INS1")
	s.Require().NoError(s.store.CreateIfCodeAvailable(ctx, org))

	found, err := s.store.FindByID(ctx, org.ID)
	s.Require().NoError(err)
	s.Equal(org.Contact, found.Contact)
	s.Equal(models.TypeInsurance, found.Type)
	s.True(found.Active)

	byCode, err := s.store.FindByCode(ctx, "ins1")
	s.Require().NoError(err)
	s.Equal(org.ID, byCode.ID)
}

// TestConcurrentCreateSameCode verifies that the lower(code) index admits
// exactly one of many racing creates.
func (s *PostgresStoreSuite) TestConcurrentCreateSameCode() {
	ctx := context.Background()
	const goroutines = 10

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		conflicts atomic.Int32
	)
	for i := range goroutines {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			org := s.newOrganization("RACE")
			if i%2 == 0 {
				org.Code = "race"
			}
			err := s.store.CreateIfCodeAvailable(ctx, org)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicts.Add(1)
			}
		}(i)
	}
	wg.Wait()

	s.Equal(int32(1), successes.Load())
	s.Equal(int32(goroutines-1), conflicts.Load())
}

func (s *PostgresStoreSuite) TestExecuteAndList() {
	ctx := context.Background()
	org := s.newOrganization("EXEC")
	s.Require().NoError(s.store.CreateIfCodeAvailable(ctx, org))
	s.Require().NoError(s.store.CreateIfCodeAvailable(ctx, s.newOrganization("ACTV")))

	now := time.Now().UTC().Truncate(time.Microsecond)
	updated, err := s.store.Execute(ctx, org.ID,
		func(o *models.Organization) error { return o.CanDeactivate() },
		func(o *models.Organization) { o.ApplyDeactivation(now) },
	)
	s.Require().NoError(err)
	s.False(updated.Active)

	active, err := s.store.List(ctx, true)
	s.Require().NoError(err)
	s.Require().Len(active, 1)
	s.Equal("ACTV", active[0].Code)

	all, err := s.store.List(ctx, false)
	s.Require().NoError(err)
	s.Len(all, 2)

	_, err = s.store.Execute(ctx, id.NewOrganizationID(),
		func(*models.Organization) error { return nil },
		func(*models.Organization) {},
	)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestDeleteWithDependents() {
	ctx := context.Background()
	org := s.newOrganization("DEPS")
	s.Require().NoError(s.store.CreateIfCodeAvailable(ctx, org))
	_, err := s.postgres.DB.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, role, organization_id, created_at, updated_at)
		VALUES ($1, 'member@example.com', 'x', 'org_user', $2, now(), now())`, id.NewUserID(), org.ID)
	s.Require().NoError(err)

	s.ErrorIs(s.store.Delete(ctx, org.ID), sentinel.ErrHasDependents)

	_, err = s.postgres.DB.ExecContext(ctx, `DELETE FROM users`)
	s.Require().NoError(err)
	s.NoError(s.store.Delete(ctx, org.ID))
	s.ErrorIs(s.store.Delete(ctx, org.ID), sentinel.ErrNotFound)
}
