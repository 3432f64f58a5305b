package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"amlstat/internal/platform/postgres"
	"amlstat/internal/submission/models"
	id "amlstat/pkg/domain"
	"amlstat/pkg/platform/sentinel"
	txcontext "amlstat/pkg/platform/tx"
)

const periodConstraint = "submissions_org_period_key"

const submissionColumns = `
	id, organization_id, month, year, status, indicators,
	filled_indicators, total_indicators, completion_rate, created_by,
	submitted_at, submitted_by, approved_at, approved_by,
	reviewed_at, reviewed_by, rejection_reason, comments,
	created_at, updated_at`

// PostgresStore persists submissions in Postgres. Indicators are kept as a
// jsonb document; the period uniqueness is the submissions_org_period_key
// constraint.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, sub models.Submission) error {
	indicators, err := json.Marshal(sub.Indicators)
	if err != nil {
		return fmt.Errorf("marshal indicators: %w", err)
	}
	_, err = txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO submissions (`+submissionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`,
		sub.ID, sub.OrganizationID, sub.Month, sub.Year, string(sub.Status), indicators,
		sub.FilledIndicators, sub.TotalIndicators, sub.CompletionRate, sub.CreatedBy,
		sub.SubmittedAt, sub.SubmittedBy, sub.ApprovedAt, sub.ApprovedBy,
		sub.ReviewedAt, sub.ReviewedBy, sub.RejectionReason, sub.Comments,
		sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, periodConstraint, "submissions_pkey") {
			return fmt.Errorf("submission for %02d/%d exists: %w", sub.Month, sub.Year, sentinel.ErrConflict)
		}
		if postgres.IsForeignKeyViolation(err) {
			return fmt.Errorf("organization %s: %w", sub.OrganizationID, sentinel.ErrNotFound)
		}
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, subID id.SubmissionID) (models.Submission, error) {
	row := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, subID)
	return scanSubmission(row)
}

func (s *PostgresStore) List(ctx context.Context, filter models.ListFilter) ([]models.Submission, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.OrganizationID != nil {
		add("organization_id = $%d", *filter.OrganizationID)
	}
	if filter.Year != 0 {
		add("year = $%d", filter.Year)
	}
	if filter.Month != 0 {
		add("month = $%d", filter.Month)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}

	query := `SELECT ` + submissionColumns + ` FROM submissions`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY year DESC, month DESC, created_at DESC"

	rows, err := txcontext.ExecutorFrom(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	out := make([]models.Submission, 0)
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CountByOrganization(ctx context.Context, orgID id.OrganizationID) (int, error) {
	var n int
	err := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx,
		`SELECT count(*) FROM submissions WHERE organization_id = $1`, orgID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count submissions: %w", err)
	}
	return n, nil
}

// Execute locks the row with SELECT ... FOR UPDATE, applies fn and writes the
// successor. It joins the transaction in ctx or opens its own.
func (s *PostgresStore) Execute(ctx context.Context, subID id.SubmissionID, fn func(current models.Submission) (models.Submission, error)) (models.Submission, error) {
	var result models.Submission
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := scanSubmission(tx.QueryRowContext(ctx,
			`SELECT `+submissionColumns+` FROM submissions WHERE id = $1 FOR UPDATE`, subID))
		if err != nil {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		if next.ID != current.ID || next.OrganizationID != current.OrganizationID ||
			next.Month != current.Month || next.Year != current.Year {
			return fmt.Errorf("submission identity changed during update: %w", sentinel.ErrInvalidState)
		}
		if err := update(ctx, tx, next); err != nil {
			return err
		}
		result = next
		return nil
	})
	if err != nil {
		return models.Submission{}, err
	}
	return result, nil
}

// DeleteIf locks the row, runs check and deletes it when check passes.
func (s *PostgresStore) DeleteIf(ctx context.Context, subID id.SubmissionID, check func(current models.Submission) error) (models.Submission, error) {
	var deleted models.Submission
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := scanSubmission(tx.QueryRowContext(ctx,
			`SELECT `+submissionColumns+` FROM submissions WHERE id = $1 FOR UPDATE`, subID))
		if err != nil {
			return err
		}
		if err := check(current); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM submissions WHERE id = $1`, subID); err != nil {
			return fmt.Errorf("delete submission: %w", err)
		}
		deleted = current
		return nil
	})
	if err != nil {
		return models.Submission{}, err
	}
	return deleted, nil
}

func (s *PostgresStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if tx, ok := txcontext.From(ctx); ok {
		return fn(tx)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func update(ctx context.Context, tx *sql.Tx, sub models.Submission) error {
	indicators, err := json.Marshal(sub.Indicators)
	if err != nil {
		return fmt.Errorf("marshal indicators: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE submissions SET
			status = $2, indicators = $3,
			filled_indicators = $4, total_indicators = $5, completion_rate = $6,
			submitted_at = $7, submitted_by = $8, approved_at = $9, approved_by = $10,
			reviewed_at = $11, reviewed_by = $12, rejection_reason = $13, comments = $14,
			updated_at = $15
		WHERE id = $1
	`,
		sub.ID, string(sub.Status), indicators,
		sub.FilledIndicators, sub.TotalIndicators, sub.CompletionRate,
		sub.SubmittedAt, sub.SubmittedBy, sub.ApprovedAt, sub.ApprovedBy,
		sub.ReviewedAt, sub.ReviewedBy, sub.RejectionReason, sub.Comments,
		sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update submission: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (models.Submission, error) {
	var (
		sub        models.Submission
		status     string
		indicators []byte
		createdAt  time.Time
		updatedAt  time.Time
	)
	err := row.Scan(
		&sub.ID, &sub.OrganizationID, &sub.Month, &sub.Year, &status, &indicators,
		&sub.FilledIndicators, &sub.TotalIndicators, &sub.CompletionRate, &sub.CreatedBy,
		&sub.SubmittedAt, &sub.SubmittedBy, &sub.ApprovedAt, &sub.ApprovedBy,
		&sub.ReviewedAt, &sub.ReviewedBy, &sub.RejectionReason, &sub.Comments,
		&createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Submission{}, sentinel.ErrNotFound
		}
		return models.Submission{}, fmt.Errorf("scan submission: %w", err)
	}
	sub.Status = models.Status(status)
	if err := json.Unmarshal(indicators, &sub.Indicators); err != nil {
		return models.Submission{}, fmt.Errorf("decode indicators: %w", err)
	}
	if sub.Indicators == nil {
		sub.Indicators = []models.Indicator{}
	}
	sub.CreatedAt = createdAt.UTC()
	sub.UpdatedAt = updatedAt.UTC()
	return sub, nil
}
