package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	audit "amlstat/pkg/platform/audit"
)

// InMemoryStore keeps audit events and their outbox entries in memory.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []audit.Event
	outbox []outboxRow
}

type outboxRow struct {
	entry     audit.OutboxEntry
	published bool
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
	s.outbox = nil
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	s.outbox = append(s.outbox, outboxRow{entry: audit.OutboxEntry{
		ID:            uuid.New(),
		AggregateType: string(event.SubjectType),
		AggregateID:   event.SubjectID,
		EventType:     string(event.Action),
		Payload:       payload,
		CreatedAt:     time.Now(),
	}})
	return nil
}

// ListBySubject returns events for one subject ordered oldest first.
func (s *InMemoryStore) ListBySubject(_ context.Context, subjectType audit.SubjectType, subjectID string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.Event
	for _, e := range s.events {
		if e.SubjectType == subjectType && e.SubjectID == subjectID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// ListAll returns every recorded event in append order.
func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events...), nil
}

// Claim passes up to limit unpublished entries to fn and marks them published
// when fn succeeds. The store lock is held for the duration of fn.
func (s *InMemoryStore) Claim(ctx context.Context, limit int, fn func(ctx context.Context, entries []audit.OutboxEntry) error) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		idx     []int
		entries []audit.OutboxEntry
	)
	for i, row := range s.outbox {
		if row.published {
			continue
		}
		if len(entries) == limit {
			break
		}
		idx = append(idx, i)
		entries = append(entries, row.entry)
	}
	if len(entries) == 0 {
		return 0, nil
	}
	if err := fn(ctx, entries); err != nil {
		return 0, err
	}
	for _, i := range idx {
		s.outbox[i].published = true
	}
	return len(entries), nil
}
