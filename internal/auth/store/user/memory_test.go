package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"amlstat/internal/auth/models"
	id "amlstat/pkg/domain"
	"amlstat/pkg/platform/sentinel"
)

type InMemoryUserStoreSuite struct {
	suite.Suite
	store *InMemoryUserStore
	ctx   context.Context
}

func TestInMemoryUserStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryUserStoreSuite))
}

func (s *InMemoryUserStoreSuite) SetupTest() {
	s.store = New()
	s.ctx = context.Background()
}

func (s *InMemoryUserStoreSuite) newUser(email string, role id.Role, orgID *id.OrganizationID) *models.User {
	u, err := models.NewUser(id.NewUserID(), email, "", "$2a$hash", role, orgID, time.Now())
	s.Require().NoError(err)
	return u
}

func (s *InMemoryUserStoreSuite) TestLookup() {
	orgID := id.NewOrganizationID()
	u := s.newUser("jane.doe@bank.example", id.RoleOrgUser, &orgID)
	s.Require().NoError(s.store.Create(s.ctx, u))

	byID, err := s.store.FindByID(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(u, byID)

	byEmail, err := s.store.FindByEmail(s.ctx, "jane.doe@bank.example")
	s.Require().NoError(err)
	s.Equal(u.ID, byEmail.ID)

	_, err = s.store.FindByID(s.ctx, id.NewUserID())
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.FindByEmail(s.ctx, "missing@bank.example")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryUserStoreSuite) TestDuplicateEmailConflicts() {
	s.Require().NoError(s.store.Create(s.ctx, s.newUser("admin@regulator.example", id.RoleAdmin, nil)))
	err := s.store.Create(s.ctx, s.newUser("ADMIN@regulator.example", id.RoleAdmin, nil))
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *InMemoryUserStoreSuite) TestReadsReturnCopies() {
	orgID := id.NewOrganizationID()
	u := s.newUser("copy@bank.example", id.RoleOrgUser, &orgID)
	s.Require().NoError(s.store.Create(s.ctx, u))

	found, err := s.store.FindByID(s.ctx, u.ID)
	s.Require().NoError(err)
	found.Active = false
	*found.OrganizationID = id.NewOrganizationID()

	again, err := s.store.FindByID(s.ctx, u.ID)
	s.Require().NoError(err)
	s.True(again.Active)
	s.Equal(orgID, *again.OrganizationID)
}

func (s *InMemoryUserStoreSuite) TestListAndCount() {
	bank := id.NewOrganizationID()
	other := id.NewOrganizationID()
	s.Require().NoError(s.store.Create(s.ctx, s.newUser("b@bank.example", id.RoleOrgUser, &bank)))
	s.Require().NoError(s.store.Create(s.ctx, s.newUser("a@bank.example", id.RoleOrgAdmin, &bank)))
	s.Require().NoError(s.store.Create(s.ctx, s.newUser("c@other.example", id.RoleOrgUser, &other)))
	s.Require().NoError(s.store.Create(s.ctx, s.newUser("root@regulator.example", id.RoleAdmin, nil)))

	all, err := s.store.List(s.ctx, nil)
	s.Require().NoError(err)
	s.Len(all, 4)
	s.Equal("a@bank.example", all[0].Email)

	members, err := s.store.List(s.ctx, &bank)
	s.Require().NoError(err)
	s.Len(members, 2)

	n, err := s.store.CountByOrganization(s.ctx, bank)
	s.Require().NoError(err)
	s.Equal(2, n)
}

func (s *InMemoryUserStoreSuite) TestExecute() {
	u := s.newUser("deactivate@bank.example", id.RoleAdmin, nil)
	s.Require().NoError(s.store.Create(s.ctx, u))
	now := time.Now()

	updated, err := s.store.Execute(s.ctx, u.ID,
		func(u *models.User) error { return u.CanDeactivate() },
		func(u *models.User) { u.ApplyDeactivation(now) },
	)
	s.Require().NoError(err)
	s.False(updated.Active)

	failed := errors.New("rejected")
	_, err = s.store.Execute(s.ctx, u.ID,
		func(*models.User) error { return failed },
		func(u *models.User) { u.Name = "changed" },
	)
	s.ErrorIs(err, failed)

	found, err := s.store.FindByID(s.ctx, u.ID)
	s.Require().NoError(err)
	s.NotEqual("changed", found.Name)

	_, err = s.store.Execute(s.ctx, id.NewUserID(),
		func(*models.User) error { return nil },
		func(*models.User) {},
	)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
