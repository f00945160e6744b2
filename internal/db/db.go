// Package db provides PostgreSQL-backed repository implementations for
// SkyKeeper. All repositories accept a DBTX interface that is satisfied by
// both *pgxpool.Pool (for normal queries) and pgx.Tx (for transactional
// execution), enabling clean transaction support.
//
// Expected schema:
//
//	CREATE TABLE users (
//	    id            TEXT PRIMARY KEY,
//	    name          TEXT NOT NULL,
//	    email         TEXT NOT NULL UNIQUE,
//	    password_hash TEXT NOT NULL,
//	    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
//
//	CREATE TABLE weather_snapshots (
//	    id           TEXT PRIMARY KEY,
//	    owner_id     TEXT NOT NULL REFERENCES users(id),
//	    city         TEXT NOT NULL,
//	    temperature  DOUBLE PRECISION NOT NULL,
//	    description  TEXT NOT NULL,
//	    humidity     DOUBLE PRECISION NOT NULL,
//	    saved_at     TIMESTAMPTZ NOT NULL,
//	    refreshed_at TIMESTAMPTZ
//	);
//	CREATE INDEX idx_snapshots_owner_saved ON weather_snapshots (owner_id, saved_at DESC);
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"skykeeper/internal/config"
)

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx.
// Repositories accept this so the same code works inside or outside a
// transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPool creates a pgx connection pool from the database configuration and
// verifies connectivity with a ping. The pool serializes per-row updates and
// deletes at the database level, so a concurrent update and delete on the same
// id resolve deterministically (the loser observes zero rows affected).
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod
	poolCfg.ConnConfig.ConnectTimeout = cfg.AcquireTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}
