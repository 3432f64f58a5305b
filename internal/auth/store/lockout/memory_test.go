package lockout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"amlstat/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
	now   time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = New()
	s.ctx = context.Background()
	s.now = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
}

func (s *InMemoryStoreSuite) TestGetMissingReturnsNil() {
	rec, err := s.store.Get(s.ctx, "unknown")
	s.NoError(err)
	s.Nil(rec)
}

func (s *InMemoryStoreSuite) TestRecordFailureCountsWithinWindow() {
	first, err := s.store.RecordFailure(s.ctx, "k", s.now, 15*time.Minute)
	s.Require().NoError(err)
	s.Equal(1, first.FailureCount)
	s.Equal(s.now, first.WindowStart)

	second, err := s.store.RecordFailure(s.ctx, "k", s.now.Add(time.Minute), 15*time.Minute)
	s.Require().NoError(err)
	s.Equal(2, second.FailureCount)
	s.Equal(s.now, second.WindowStart, "window starts at the first failure")
}

func (s *InMemoryStoreSuite) TestRecordFailureAfterWindowStartsOver() {
	_, err := s.store.RecordFailure(s.ctx, "k", s.now, 15*time.Minute)
	s.Require().NoError(err)
	_, err = s.store.RecordFailure(s.ctx, "k", s.now.Add(time.Minute), 15*time.Minute)
	s.Require().NoError(err)

	later := s.now.Add(16 * time.Minute)
	rec, err := s.store.RecordFailure(s.ctx, "k", later, 15*time.Minute)
	s.Require().NoError(err)
	s.Equal(1, rec.FailureCount)
	s.Equal(later, rec.WindowStart)
}

func (s *InMemoryStoreSuite) TestLockAndClear() {
	s.ErrorIs(s.store.Lock(s.ctx, "k", s.now), sentinel.ErrNotFound)

	_, err := s.store.RecordFailure(s.ctx, "k", s.now, 15*time.Minute)
	s.Require().NoError(err)
	until := s.now.Add(30 * time.Minute)
	s.Require().NoError(s.store.Lock(s.ctx, "k", until))

	rec, err := s.store.Get(s.ctx, "k")
	s.Require().NoError(err)
	s.Require().NotNil(rec.LockedUntil)
	s.Equal(until, *rec.LockedUntil)

	// Returned records are copies.
	*rec.LockedUntil = s.now
	again, err := s.store.Get(s.ctx, "k")
	s.Require().NoError(err)
	s.Equal(until, *again.LockedUntil)

	s.Require().NoError(s.store.Clear(s.ctx, "k"))
	rec, err = s.store.Get(s.ctx, "k")
	s.NoError(err)
	s.Nil(rec)
}
