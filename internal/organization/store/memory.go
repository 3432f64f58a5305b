package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"amlstat/internal/organization/models"
	id "amlstat/pkg/domain"
	"amlstat/pkg/platform/sentinel"
)

// InMemory stores organizations in a map with a case-insensitive code index.
type InMemory struct {
	mu     sync.RWMutex
	byID   map[id.OrganizationID]*models.Organization
	byCode map[string]id.OrganizationID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:   make(map[id.OrganizationID]*models.Organization),
		byCode: make(map[string]id.OrganizationID),
	}
}

// CreateIfCodeAvailable inserts org unless its code is taken.
func (s *InMemory) CreateIfCodeAvailable(_ context.Context, org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(org.Code)
	if _, ok := s.byCode[key]; ok {
		return fmt.Errorf("organization code %s: %w", org.Code, sentinel.ErrConflict)
	}
	if _, ok := s.byID[org.ID]; ok {
		return fmt.Errorf("organization %s: %w", org.ID, sentinel.ErrConflict)
	}
	cp := *org
	s.byID[org.ID] = &cp
	s.byCode[key] = org.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, orgID id.OrganizationID) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	org, ok := s.byID[orgID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *org
	return &cp, nil
}

func (s *InMemory) FindByCode(_ context.Context, code string) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orgID, ok := s.byCode[strings.ToLower(strings.TrimSpace(code))]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.byID[orgID]
	return &cp, nil
}

// List returns organizations ordered by code, optionally only active ones.
func (s *InMemory) List(_ context.Context, activeOnly bool) ([]*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Organization, 0, len(s.byID))
	for _, org := range s.byID {
		if activeOnly && !org.Active {
			continue
		}
		cp := *org
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// Execute runs validate and then mutate on a copy of the organization while
// holding the write lock, and stores the result. If validate fails nothing
// is written.
func (s *InMemory) Execute(_ context.Context, orgID id.OrganizationID, validate func(*models.Organization) error, mutate func(*models.Organization)) (*models.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	org, ok := s.byID[orgID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *org
	if err := validate(&cp); err != nil {
		return nil, err
	}
	mutate(&cp)
	if cp.ID != org.ID || !strings.EqualFold(cp.Code, org.Code) {
		return nil, fmt.Errorf("organization identity changed during update: %w", sentinel.ErrInvalidState)
	}
	s.byID[orgID] = &cp
	out := cp
	return &out, nil
}

func (s *InMemory) Delete(_ context.Context, orgID id.OrganizationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	org, ok := s.byID[orgID]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.byCode, strings.ToLower(org.Code))
	delete(s.byID, orgID)
	return nil
}
