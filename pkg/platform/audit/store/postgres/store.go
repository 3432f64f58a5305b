package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "amlstat/pkg/domain"
	audit "amlstat/pkg/platform/audit"
	txcontext "amlstat/pkg/platform/tx"
)

// Store implements audit.Store using the transactional outbox pattern. Each
// event is written to audit_events for querying and to outbox for relaying,
// inside the caller's transaction when one is present.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append writes the event and its outbox entry.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	if event.ID.IsNil() {
		event.ID = id.NewAuditEventID()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	exec := txcontext.ExecutorFrom(ctx, s.db)

	_, err = exec.ExecContext(ctx, `
		INSERT INTO audit_events (
			id, category, action, subject_type, subject_id, organization_id,
			actor_id, reason, request_id, client_ip, user_agent, occurred_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		event.ID,
		string(event.Category),
		string(event.Action),
		string(event.SubjectType),
		event.SubjectID,
		nullableOrg(event.OrganizationID),
		nullableUser(event.ActorID),
		event.Reason,
		event.RequestID,
		event.ClientIP,
		event.UserAgent,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}

	_, err = exec.ExecContext(ctx, `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		uuid.New(),
		string(event.SubjectType),
		event.SubjectID,
		string(event.Action),
		payload,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// ListBySubject returns the events recorded for one subject, oldest first.
func (s *Store) ListBySubject(ctx context.Context, subjectType audit.SubjectType, subjectID string) ([]audit.Event, error) {
	rows, err := txcontext.ExecutorFrom(ctx, s.db).QueryContext(ctx, `
		SELECT id, category, action, subject_type, subject_id, organization_id,
			   actor_id, reason, request_id, client_ip, user_agent, occurred_at
		FROM audit_events
		WHERE subject_type = $1 AND subject_id = $2
		ORDER BY occurred_at ASC, id ASC
	`, string(subjectType), subjectID)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			event       audit.Event
			category    string
			action      string
			subjectKind string
			orgID       *id.OrganizationID
			actorID     *id.UserID
		)
		if err := rows.Scan(
			&event.ID,
			&category,
			&action,
			&subjectKind,
			&event.SubjectID,
			&orgID,
			&actorID,
			&event.Reason,
			&event.RequestID,
			&event.ClientIP,
			&event.UserAgent,
			&event.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Category = audit.EventCategory(category)
		event.Action = audit.AuditEvent(action)
		event.SubjectType = audit.SubjectType(subjectKind)
		if orgID != nil {
			event.OrganizationID = *orgID
		}
		if actorID != nil {
			event.ActorID = *actorID
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

// Claim locks up to limit unpublished outbox rows, hands them to fn and marks
// them published in the same transaction. Concurrent relays skip rows another
// relay holds.
func (s *Store) Claim(ctx context.Context, limit int, fn func(ctx context.Context, entries []audit.OutboxEntry) error) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin outbox claim: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return 0, fmt.Errorf("select outbox entries: %w", err)
	}

	var entries []audit.OutboxEntry
	for rows.Next() {
		var e audit.OutboxEntry
		if err := rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate outbox entries: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	if err := fn(ctx, entries); err != nil {
		return 0, err
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID.String()
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE outbox SET published_at = now() WHERE id = ANY($1::uuid[])`, ids,
	); err != nil {
		return 0, fmt.Errorf("mark outbox published: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit outbox claim: %w", err)
	}
	return len(entries), nil
}

func nullableOrg(v id.OrganizationID) any {
	if v.IsNil() {
		return nil
	}
	return v
}

func nullableUser(v id.UserID) any {
	if v.IsNil() {
		return nil
	}
	return v
}
