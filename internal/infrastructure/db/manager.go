package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/clipwave/revcore/internal/config"
	"github.com/clipwave/revcore/internal/persistence"
	"github.com/clipwave/revcore/internal/persistence/postgres"
)

// Manager owns the database connection pool and the repository set.
type Manager struct {
	db    *sqlx.DB
	cfg   config.DatabaseConfig
	repos *persistence.Repository
}

// NewManager opens the connection pool, verifies connectivity, and wires the
// repositories.
func NewManager(cfg config.DatabaseConfig) (*Manager, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	repos := &persistence.Repository{
		Events:     postgres.NewEventsRepo(db, cfg.QueryTimeout),
		Users:      postgres.NewUsersRepo(db, cfg.QueryTimeout),
		Videos:     postgres.NewVideosRepo(db, cfg.QueryTimeout),
		Aggregates: postgres.NewAggregatesRepo(db, cfg.QueryTimeout),
		Revenue:    postgres.NewRevenueRepo(db, cfg.QueryTimeout),
		Ledger:     postgres.NewLedgerRepo(db, cfg.QueryTimeout),
	}

	return &Manager{db: db, cfg: cfg, repos: repos}, nil
}

// Repository returns the wired repository set.
func (m *Manager) Repository() *persistence.Repository {
	return m.repos
}

// DB exposes the pool for schema application and health checks.
func (m *Manager) DB() *sqlx.DB {
	return m.db
}

// Ping tests basic connectivity.
func (m *Manager) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, m.cfg.QueryTimeout)
	defer cancel()
	return m.db.PingContext(pingCtx)
}

// Stats returns connection pool statistics for the health endpoint.
func (m *Manager) Stats() map[string]interface{} {
	s := m.db.Stats()
	return map[string]interface{}{
		"max_open_connections": s.MaxOpenConnections,
		"open_connections":     s.OpenConnections,
		"in_use":               s.InUse,
		"idle":                 s.Idle,
		"wait_count":           s.WaitCount,
		"wait_duration_ms":     s.WaitDuration.Milliseconds(),
	}
}

// Close shuts down the pool.
func (m *Manager) Close() error {
	if m.db == nil {
		return nil
	}
	return m.db.Close()
}
