package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	authservice "amlstat/internal/auth/service"
	userstore "amlstat/internal/auth/store/user"
	orgservice "amlstat/internal/organization/service"
	orgstore "amlstat/internal/organization/store"
	"amlstat/internal/platform/config"
	"amlstat/internal/platform/postgres"
	submissionservice "amlstat/internal/submission/service"
	substore "amlstat/internal/submission/store"
	httptransport "amlstat/internal/transport/http"
	audit "amlstat/pkg/platform/audit"
	auditmemory "amlstat/pkg/platform/audit/store/memory"
	auditpostgres "amlstat/pkg/platform/audit/store/postgres"
	txcontext "amlstat/pkg/platform/tx"
)

type submissionStore interface {
	submissionservice.Store
	orgservice.DependentCounter
}

type userStore interface {
	authservice.UserStore
	orgservice.DependentCounter
}

type auditStore interface {
	audit.Store
	audit.Outbox
}

// storage bundles the persistence backends chosen at startup.
type storage struct {
	submissions submissionStore
	orgs        orgservice.Store
	users       userStore
	audit       auditStore
	tx          txcontext.Runner
	checks      map[string]httptransport.HealthCheck
	close       func()
}

// openStorage uses Postgres when a database URL is configured and in-memory
// stores otherwise. Migrations run before any store is handed out.
func openStorage(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*storage, error) {
	if cfg.URL == "" {
		logger.WarnContext(ctx, "DATABASE_URL not set, using in-memory stores")
		return &storage{
			submissions: substore.NewInMemory(),
			orgs:        orgstore.NewInMemory(),
			users:       userstore.New(),
			audit:       auditmemory.NewInMemoryStore(),
			tx:          txcontext.NewLockingRunner(),
			checks:      map[string]httptransport.HealthCheck{},
			close:       func() {},
		}, nil
	}

	db, err := postgres.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := postgres.Migrate(ctx, db, logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return &storage{
		submissions: substore.NewPostgres(db),
		orgs:        orgstore.NewPostgres(db),
		users:       userstore.NewPostgres(db),
		audit:       auditpostgres.New(db),
		tx:          postgres.NewTxRunner(db, cfg.TxTimeout),
		checks: map[string]httptransport.HealthCheck{
			"postgres": pingDB(db),
		},
		close: func() { _ = db.Close() },
	}, nil
}

func pingDB(db *sql.DB) httptransport.HealthCheck {
	return func(ctx context.Context) error {
		return db.PingContext(ctx)
	}
}
