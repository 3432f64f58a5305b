package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"amlstat/internal/organization/models"
	"amlstat/internal/platform/postgres"
	id "amlstat/pkg/domain"
	"amlstat/pkg/platform/sentinel"
	txcontext "amlstat/pkg/platform/tx"
)

const organizationColumns = `id, code, name, type, contact_email, contact_phone, address, active, created_at, updated_at`

// PostgresStore persists organizations. Code uniqueness is the
// organizations_code_key index on lower(code).
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateIfCodeAvailable(ctx context.Context, org *models.Organization) error {
	_, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO organizations (`+organizationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, org.ID, org.Code, org.Name, string(org.Type), org.Email, org.Phone, org.Address,
		org.Active, org.CreatedAt, org.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err, "organizations_code_key", "organizations_pkey") {
			return fmt.Errorf("organization code %s: %w", org.Code, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert organization: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, orgID id.OrganizationID) (*models.Organization, error) {
	row := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+organizationColumns+` FROM organizations WHERE id = $1`, orgID)
	return scanOrganization(row)
}

func (s *PostgresStore) FindByCode(ctx context.Context, code string) (*models.Organization, error) {
	row := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+organizationColumns+` FROM organizations WHERE lower(code) = lower($1)`, strings.TrimSpace(code))
	return scanOrganization(row)
}

func (s *PostgresStore) List(ctx context.Context, activeOnly bool) ([]*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY code`

	rows, err := txcontext.ExecutorFrom(ctx, s.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query organizations: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Organization, 0)
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, org)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate organizations: %w", err)
	}
	return out, nil
}

// Execute locks the row with SELECT ... FOR UPDATE, runs validate and mutate
// and writes the mutable columns back.
func (s *PostgresStore) Execute(ctx context.Context, orgID id.OrganizationID, validate func(*models.Organization) error, mutate func(*models.Organization)) (*models.Organization, error) {
	var result *models.Organization
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		org, err := scanOrganization(tx.QueryRowContext(ctx,
			`SELECT `+organizationColumns+` FROM organizations WHERE id = $1 FOR UPDATE`, orgID))
		if err != nil {
			return err
		}
		if err := validate(org); err != nil {
			return err
		}
		mutate(org)
		res, err := tx.ExecContext(ctx, `
			UPDATE organizations
			SET name = $2, type = $3, contact_email = $4, contact_phone = $5,
			    address = $6, active = $7, updated_at = $8
			WHERE id = $1
		`, org.ID, org.Name, string(org.Type), org.Email, org.Phone, org.Address, org.Active, org.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update organization: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return sentinel.ErrNotFound
		}
		result = org
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes the organization. Rows still referencing it make the
// foreign keys fail, reported as sentinel.ErrHasDependents.
func (s *PostgresStore) Delete(ctx context.Context, orgID id.OrganizationID) error {
	res, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, `DELETE FROM organizations WHERE id = $1`, orgID)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return fmt.Errorf("organization %s: %w", orgID, sentinel.ErrHasDependents)
		}
		return fmt.Errorf("delete organization: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete organization: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrganization(row rowScanner) (*models.Organization, error) {
	var (
		org     models.Organization
		orgType string
	)
	err := row.Scan(&org.ID, &org.Code, &org.Name, &orgType, &org.Email, &org.Phone, &org.Address,
		&org.Active, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan organization: %w", err)
	}
	org.Type = models.Type(orgType)
	return &org, nil
}
