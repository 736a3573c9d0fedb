// Package database provides Postgres connection setup and schema management.
package database

import (
	"context"
	"os"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

// PostgresConfig holds database configuration.
type PostgresConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultPostgresConfig returns optimized defaults.
func DefaultPostgresConfig() *PostgresConfig {
	maxConns := 25
	if envMax := os.Getenv("DB_MAX_CONNS"); envMax != "" {
		if v, err := strconv.Atoi(envMax); err == nil {
			maxConns = v
		}
	}
	return &PostgresConfig{
		MaxOpenConns:    maxConns,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
	}
}

// NewPostgres opens a pooled sqlx connection over the pgx stdlib driver.
func NewPostgres(databaseURL string) (*sqlx.DB, error) {
	return NewPostgresWithConfig(databaseURL, DefaultPostgresConfig())
}

// NewPostgresWithConfig opens a connection with explicit pool settings.
func NewPostgresWithConfig(databaseURL string, cfg *PostgresConfig) (*sqlx.DB, error) {
	if cfg == nil {
		cfg = DefaultPostgresConfig()
	}

	db, err := sqlx.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// schema is applied idempotently at startup; there is a single deployment, so
// full migration tooling would be overkill.
const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id                TEXT PRIMARY KEY,
	title             TEXT NOT NULL,
	company           TEXT NOT NULL,
	location          TEXT,
	is_remote         BOOLEAN NOT NULL DEFAULT FALSE,
	description       TEXT NOT NULL DEFAULT '',
	requirements      JSONB NOT NULL DEFAULT '[]',
	apply_url         TEXT,
	salary            TEXT,
	posted_date       TIMESTAMPTZ NOT NULL,
	source            TEXT,
	relevance_score   DOUBLE PRECISION NOT NULL DEFAULT 0,
	origin_message_id TEXT NOT NULL,
	processed         BOOLEAN NOT NULL DEFAULT FALSE,
	notified          BOOLEAN NOT NULL DEFAULT FALSE,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs (created_at);
CREATE INDEX IF NOT EXISTS idx_jobs_title_company ON jobs (LOWER(title), LOWER(company));
CREATE INDEX IF NOT EXISTS idx_jobs_apply_url ON jobs (apply_url) WHERE apply_url IS NOT NULL;

CREATE TABLE IF NOT EXISTS processed_messages (
	message_id     TEXT PRIMARY KEY,
	jobs_extracted INTEGER NOT NULL DEFAULT 0,
	archived       BOOLEAN NOT NULL DEFAULT FALSE,
	processed_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_processed_messages_at ON processed_messages (processed_at);

CREATE TABLE IF NOT EXISTS profile_analyses (
	id          BIGSERIAL PRIMARY KEY,
	summary     TEXT NOT NULL,
	skills      JSONB NOT NULL DEFAULT '[]',
	analyzed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// Migrate applies the schema.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
