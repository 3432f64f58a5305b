package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"amlstat/internal/submission/models"
	id "amlstat/pkg/domain"
	"amlstat/pkg/platform/sentinel"
)

type SubmissionStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	orgID id.OrganizationID
}

func TestSubmissionStoreSuite(t *testing.T) {
	suite.Run(t, new(SubmissionStoreSuite))
}

func (s *SubmissionStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.orgID = id.NewOrganizationID()
}

func (s *SubmissionStoreSuite) newSubmission(orgID id.OrganizationID, month, year int) models.Submission {
	sub, err := models.NewSubmission(id.NewSubmissionID(), orgID, month, year, models.Template(), id.NewUserID(), time.Now())
	s.Require().NoError(err)
	return sub
}

func (s *SubmissionStoreSuite) TestCreateAndFind() {
	s.Run("creates and finds by ID", func() {
		sub := s.newSubmission(s.orgID, 1, 2024)
		s.Require().NoError(s.store.Create(s.ctx, sub))

		found, err := s.store.FindByID(s.ctx, sub.ID)
		s.Require().NoError(err)
		s.Equal(sub.ID, found.ID)
		s.Equal(sub.Indicators, found.Indicators)
	})

	s.Run("returns ErrNotFound for unknown ID", func() {
		_, err := s.store.FindByID(s.ctx, id.NewSubmissionID())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returned values do not alias stored state", func() {
		sub := s.newSubmission(s.orgID, 2, 2024)
		s.Require().NoError(s.store.Create(s.ctx, sub))

		found, err := s.store.FindByID(s.ctx, sub.ID)
		s.Require().NoError(err)
		v := "tampered"
		found.Indicators[0].Value = &v

		again, err := s.store.FindByID(s.ctx, sub.ID)
		s.Require().NoError(err)
		s.Nil(again.Indicators[0].Value)
	})
}

func (s *SubmissionStoreSuite) TestPeriodUniqueness() {
	s.Run("second submission for the same period conflicts", func() {
		s.Require().NoError(s.store.Create(s.ctx, s.newSubmission(s.orgID, 12, 2024)))
		err := s.store.Create(s.ctx, s.newSubmission(s.orgID, 12, 2024))
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("other organizations and periods are independent", func() {
		s.NoError(s.store.Create(s.ctx, s.newSubmission(id.NewOrganizationID(), 12, 2024)))
		s.NoError(s.store.Create(s.ctx, s.newSubmission(s.orgID, 11, 2024)))
	})

	s.Run("concurrent creates for one period admit exactly one", func() {
		orgID := id.NewOrganizationID()
		var (
			wg        sync.WaitGroup
			successes atomic.Int32
			conflicts atomic.Int32
		)
		for range 25 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := s.store.Create(s.ctx, s.newSubmission(orgID, 6, 2024))
				switch {
				case err == nil:
					successes.Add(1)
				case errors.Is(err, sentinel.ErrConflict):
					conflicts.Add(1)
				}
			}()
		}
		wg.Wait()
		s.Equal(int32(1), successes.Load())
		s.Equal(int32(24), conflicts.Load())
	})

	s.Run("deleting frees the period", func() {
		orgID := id.NewOrganizationID()
		sub := s.newSubmission(orgID, 3, 2023)
		s.Require().NoError(s.store.Create(s.ctx, sub))
		_, err := s.store.DeleteIf(s.ctx, sub.ID, func(models.Submission) error { return nil })
		s.Require().NoError(err)
		s.NoError(s.store.Create(s.ctx, s.newSubmission(orgID, 3, 2023)))
	})
}

func (s *SubmissionStoreSuite) TestExecute() {
	s.Run("stores the successor returned by fn", func() {
		sub := s.newSubmission(s.orgID, 4, 2024)
		s.Require().NoError(s.store.Create(s.ctx, sub))

		updated, err := s.store.Execute(s.ctx, sub.ID, func(cur models.Submission) (models.Submission, error) {
			v := "10"
			inds := cur.Indicators
			inds[0].Value = &v
			return cur.WithIndicators(inds, time.Now())
		})
		s.Require().NoError(err)
		s.Equal(1, updated.FilledIndicators)

		found, err := s.store.FindByID(s.ctx, sub.ID)
		s.Require().NoError(err)
		s.Equal(1, found.FilledIndicators)
	})

	s.Run("fn error leaves the record untouched", func() {
		sub := s.newSubmission(s.orgID, 5, 2024)
		s.Require().NoError(s.store.Create(s.ctx, sub))

		_, err := s.store.Execute(s.ctx, sub.ID, func(cur models.Submission) (models.Submission, error) {
			return cur.Submit(id.NewUserID(), time.Now())
		})
		s.Require().Error(err)

		found, err := s.store.FindByID(s.ctx, sub.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusDraft, found.Status)
	})

	s.Run("rejects changes to identity", func() {
		sub := s.newSubmission(s.orgID, 7, 2024)
		s.Require().NoError(s.store.Create(s.ctx, sub))

		_, err := s.store.Execute(s.ctx, sub.ID, func(cur models.Submission) (models.Submission, error) {
			cur.Month = 8
			return cur, nil
		})
		s.ErrorIs(err, sentinel.ErrInvalidState)
	})

	s.Run("unknown ID", func() {
		_, err := s.store.Execute(s.ctx, id.NewSubmissionID(), func(cur models.Submission) (models.Submission, error) {
			return cur, nil
		})
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *SubmissionStoreSuite) TestDeleteIf() {
	sub := s.newSubmission(s.orgID, 9, 2024)
	s.Require().NoError(s.store.Create(s.ctx, sub))

	refused := errors.New("not deletable")
	_, err := s.store.DeleteIf(s.ctx, sub.ID, func(models.Submission) error { return refused })
	s.ErrorIs(err, refused)

	_, err = s.store.FindByID(s.ctx, sub.ID)
	s.NoError(err)

	deleted, err := s.store.DeleteIf(s.ctx, sub.ID, func(cur models.Submission) error { return cur.CanDelete() })
	s.Require().NoError(err)
	s.Equal(sub.ID, deleted.ID)

	_, err = s.store.FindByID(s.ctx, sub.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *SubmissionStoreSuite) TestListAndCount() {
	other := id.NewOrganizationID()
	for _, p := range []struct {
		org         id.OrganizationID
		month, year int
	}{
		{s.orgID, 1, 2024}, {s.orgID, 2, 2024}, {s.orgID, 12, 2023}, {other, 1, 2024},
	} {
		s.Require().NoError(s.store.Create(s.ctx, s.newSubmission(p.org, p.month, p.year)))
	}

	all, err := s.store.List(s.ctx, models.ListFilter{})
	s.Require().NoError(err)
	s.Len(all, 4)
	s.Equal(2024, all[0].Year)
	s.Equal(2, all[0].Month)

	scoped, err := s.store.List(s.ctx, models.ListFilter{OrganizationID: &s.orgID, Year: 2024})
	s.Require().NoError(err)
	s.Len(scoped, 2)

	byMonth, err := s.store.List(s.ctx, models.ListFilter{Month: 1})
	s.Require().NoError(err)
	s.Len(byMonth, 2)

	drafts, err := s.store.List(s.ctx, models.ListFilter{Status: models.StatusApproved})
	s.Require().NoError(err)
	s.Empty(drafts)

	n, err := s.store.CountByOrganization(s.ctx, s.orgID)
	s.Require().NoError(err)
	s.Equal(3, n)
}
