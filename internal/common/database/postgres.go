// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"dealflow-workers/internal/common/config"

	_ "github.com/lib/pq"
)

// PostgresClient owns the shared connection pool. Workers and backfills
// receive the raw *sql.DB; the wrapper handles lifecycle and locking.
type PostgresClient struct {
	DB *sql.DB
}

// NewPostgres opens a pool against the configured database. Connections
// are recycled every few minutes so stale ones drop out of the pool.
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

// Ping verifies the pool can reach the server.
func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// Close drains the pool.
func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// GetDB exposes the raw pool.
func (c *PostgresClient) GetDB() *sql.DB {
	return c.DB
}

// AdvisoryLockTx takes a transaction-scoped advisory lock on the given key.
// Concurrent transactions locking the same key serialize here; the lock is
// released automatically at commit or rollback.
func AdvisoryLockTx(ctx context.Context, tx *sql.Tx, key string) error {
	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", key); err != nil {
		return fmt.Errorf("failed to acquire advisory lock for %q: %w", key, err)
	}
	return nil
}
