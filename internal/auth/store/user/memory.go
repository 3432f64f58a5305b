package user

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"amlstat/internal/auth/models"
	id "amlstat/pkg/domain"
	"amlstat/pkg/platform/sentinel"
)

// InMemoryUserStore keeps accounts in a map with an email index. Emails are
// stored normalized, so the index is exact-match.
type InMemoryUserStore struct {
	mu      sync.RWMutex
	users   map[id.UserID]*models.User
	byEmail map[string]id.UserID
}

func New() *InMemoryUserStore {
	return &InMemoryUserStore{
		users:   make(map[id.UserID]*models.User),
		byEmail: make(map[string]id.UserID),
	}
}

// Create inserts user unless its email is taken.
func (s *InMemoryUserStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[user.Email]; ok {
		return fmt.Errorf("user email %s: %w", user.Email, sentinel.ErrConflict)
	}
	if _, ok := s.users[user.ID]; ok {
		return fmt.Errorf("user %s: %w", user.ID, sentinel.ErrConflict)
	}
	s.users[user.ID] = user.Clone()
	s.byEmail[user.Email] = user.ID
	return nil
}

func (s *InMemoryUserStore) FindByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if user, ok := s.users[userID]; ok {
		return user.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if userID, ok := s.byEmail[email]; ok {
		return s.users[userID].Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

// List returns accounts ordered by email, restricted to orgID when set.
func (s *InMemoryUserStore) List(_ context.Context, orgID *id.OrganizationID) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.User, 0, len(s.users))
	for _, user := range s.users {
		if orgID != nil && (user.OrganizationID == nil || *user.OrganizationID != *orgID) {
			continue
		}
		out = append(out, user.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (s *InMemoryUserStore) CountByOrganization(_ context.Context, orgID id.OrganizationID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, user := range s.users {
		if user.OrganizationID != nil && *user.OrganizationID == orgID {
			n++
		}
	}
	return n, nil
}

// Execute runs validate and mutate on a copy under the store lock and saves
// the result only when validate passes.
func (s *InMemoryUserStore) Execute(_ context.Context, userID id.UserID, validate func(*models.User) error, mutate func(*models.User)) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.users[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	user := current.Clone()
	if err := validate(user); err != nil {
		return nil, err
	}
	mutate(user)
	if user.ID != current.ID || user.Email != current.Email {
		return nil, fmt.Errorf("user identity cannot change: %w", sentinel.ErrInvalidState)
	}
	s.users[userID] = user
	return user.Clone(), nil
}
