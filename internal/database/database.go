// Package database opens the Postgres pool shared by the state and comic
// stores and creates the tables they expect.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Config controls the connection pool.
type Config struct {
	DSN      string
	MaxConns int32
	// ConnectTimeout bounds the initial ping. Zero means 10s.
	ConnectTimeout time.Duration
}

// Execer runs a statement. *pgxpool.Pool satisfies it.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Connect builds a pool for cfg.DSN and pings it.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("connect postgres: dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// Schema lists the statements EnsureSchema runs, in order.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS crawl_states (
	id           TEXT PRIMARY KEY,
	site         TEXT NOT NULL,
	url          TEXT NOT NULL,
	status       TEXT NOT NULL,
	started_at   TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ,
	error        TEXT NOT NULL DEFAULT '',
	item_count   INTEGER,
	updated_at   TIMESTAMPTZ NOT NULL,
	UNIQUE (site, url)
)`,
	`CREATE TABLE IF NOT EXISTS comics (
	url              TEXT PRIMARY KEY,
	title            TEXT NOT NULL,
	publisher        TEXT NOT NULL DEFAULT '',
	price            DOUBLE PRECISION NOT NULL DEFAULT 0,
	old_price        DOUBLE PRECISION NOT NULL DEFAULT 0,
	available        BOOLEAN NOT NULL DEFAULT FALSE,
	image            TEXT NOT NULL DEFAULT '',
	synopsis         TEXT NOT NULL DEFAULT '',
	isbn             TEXT NOT NULL DEFAULT '',
	isbn13           TEXT NOT NULL DEFAULT '',
	pages            INTEGER NOT NULL DEFAULT 0,
	weight           TEXT NOT NULL DEFAULT '',
	dimensions       TEXT NOT NULL DEFAULT '',
	categories       TEXT[] NOT NULL DEFAULT '{}',
	tags             TEXT[] NOT NULL DEFAULT '{}',
	series_type      TEXT[] NOT NULL DEFAULT '{}',
	color            TEXT[] NOT NULL DEFAULT '{}',
	authors          TEXT[] NOT NULL DEFAULT '{}',
	formats          TEXT[] NOT NULL DEFAULT '{}',
	languages        TEXT[] NOT NULL DEFAULT '{}',
	number_in_series TEXT NOT NULL DEFAULT '',
	year             INTEGER NOT NULL DEFAULT 0,
	last_update      TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS comics_isbn13_idx ON comics (isbn13) WHERE isbn13 <> ''`,
}

// EnsureSchema creates the crawl_states and comics tables when missing.
func EnsureSchema(ctx context.Context, db Execer) error {
	for _, stmt := range Schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
