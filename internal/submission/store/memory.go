package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"amlstat/internal/submission/models"
	id "amlstat/pkg/domain"
	"amlstat/pkg/platform/sentinel"
)

type periodKey struct {
	org   id.OrganizationID
	month int
	year  int
}

func keyOf(s models.Submission) periodKey {
	return periodKey{org: s.OrganizationID, month: s.Month, year: s.Year}
}

// InMemory stores submissions in a map guarded by a mutex. The period index
// enforces one submission per organization and month.
type InMemory struct {
	mu       sync.RWMutex
	byID     map[id.SubmissionID]models.Submission
	byPeriod map[periodKey]id.SubmissionID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:     make(map[id.SubmissionID]models.Submission),
		byPeriod: make(map[periodKey]id.SubmissionID),
	}
}

// Create inserts a new submission. A second submission for the same period
// fails with sentinel.ErrConflict.
func (s *InMemory) Create(_ context.Context, sub models.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[sub.ID]; ok {
		return fmt.Errorf("submission %s exists: %w", sub.ID, sentinel.ErrConflict)
	}
	key := keyOf(sub)
	if _, ok := s.byPeriod[key]; ok {
		return fmt.Errorf("submission for %02d/%d exists: %w", sub.Month, sub.Year, sentinel.ErrConflict)
	}
	s.byID[sub.ID] = sub.Clone()
	s.byPeriod[key] = sub.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, subID id.SubmissionID) (models.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.byID[subID]
	if !ok {
		return models.Submission{}, sentinel.ErrNotFound
	}
	return sub.Clone(), nil
}

// List returns matching submissions, newest period first.
func (s *InMemory) List(_ context.Context, filter models.ListFilter) ([]models.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Submission, 0)
	for _, sub := range s.byID {
		if filter.Matches(sub) {
			out = append(out, sub.Clone())
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *InMemory) CountByOrganization(_ context.Context, orgID id.OrganizationID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, sub := range s.byID {
		if sub.OrganizationID == orgID {
			n++
		}
	}
	return n, nil
}

// Execute loads the submission, lets fn derive its successor and stores the
// result, all under the write lock. If fn fails nothing is written.
func (s *InMemory) Execute(_ context.Context, subID id.SubmissionID, fn func(current models.Submission) (models.Submission, error)) (models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[subID]
	if !ok {
		return models.Submission{}, sentinel.ErrNotFound
	}
	next, err := fn(current.Clone())
	if err != nil {
		return models.Submission{}, err
	}
	if next.ID != current.ID || keyOf(next) != keyOf(current) {
		return models.Submission{}, fmt.Errorf("submission identity changed during update: %w", sentinel.ErrInvalidState)
	}
	s.byID[subID] = next.Clone()
	return next, nil
}

// DeleteIf removes the submission when check passes.
func (s *InMemory) DeleteIf(_ context.Context, subID id.SubmissionID, check func(current models.Submission) error) (models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[subID]
	if !ok {
		return models.Submission{}, sentinel.ErrNotFound
	}
	if err := check(current.Clone()); err != nil {
		return models.Submission{}, err
	}
	delete(s.byID, subID)
	delete(s.byPeriod, keyOf(current))
	return current, nil
}

func sortNewestFirst(subs []models.Submission) {
	sort.Slice(subs, func(i, j int) bool {
		a, b := subs[i], subs[j]
		if a.Year != b.Year {
			return a.Year > b.Year
		}
		if a.Month != b.Month {
			return a.Month > b.Month
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
}
