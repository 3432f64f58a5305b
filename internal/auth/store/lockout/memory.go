// Package lockout persists failed-login counters. Stores are pure I/O; the
// lockout service decides when to lock.
package lockout

import (
	"context"
	"sync"
	"time"

	"amlstat/internal/auth/models"
	"amlstat/pkg/platform/sentinel"
)

// InMemoryStore keeps lockout records in process memory.
type InMemoryStore struct {
	mu      sync.Mutex
	records map[string]*models.Lockout
}

func New() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]*models.Lockout)}
}

// Get returns nil without error when the key has no record.
func (s *InMemoryStore) Get(_ context.Context, key string) (*models.Lockout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	return copyLockout(rec), nil
}

// RecordFailure counts one failure, starting a new window when the previous
// one has passed.
func (s *InMemoryStore) RecordFailure(_ context.Context, key string, now time.Time, window time.Duration) (*models.Lockout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok || rec.IsExpiredAt(now, window) {
		rec = &models.Lockout{Key: key, WindowStart: now}
		s.records[key] = rec
	}
	rec.FailureCount++
	return copyLockout(rec), nil
}

func (s *InMemoryStore) Lock(_ context.Context, key string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		return sentinel.ErrNotFound
	}
	rec.LockedUntil = &until
	return nil
}

func (s *InMemoryStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

func copyLockout(rec *models.Lockout) *models.Lockout {
	out := *rec
	if rec.LockedUntil != nil {
		until := *rec.LockedUntil
		out.LockedUntil = &until
	}
	return &out
}
