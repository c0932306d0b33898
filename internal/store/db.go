package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB wraps sql.DB for Postgres using pgx.
type DB struct {
	Client *sql.DB
}

// NewDB creates a Postgres connection with sane defaults.
func NewDB(connString string) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	return &DB{Client: db}, db.PingContext(context.Background())
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}

// EnsureSchema creates the visitor and user tables when they do not exist.
func (d *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS visitors (
			id UUID PRIMARY KEY,
			identification TEXT NOT NULL,
			firstname TEXT NOT NULL,
			surname TEXT NOT NULL,
			birth_date TEXT NOT NULL,
			age INT,
			gender TEXT NOT NULL DEFAULT '',
			checkin TIMESTAMPTZ NOT NULL,
			checkout TIMESTAMPTZ,
			stay TEXT,
			purpose TEXT NOT NULL DEFAULT '',
			where_from TEXT NOT NULL DEFAULT '',
			where_to TEXT NOT NULL DEFAULT '',
			image TEXT NOT NULL DEFAULT '',
			ocr_success BOOLEAN NOT NULL DEFAULT FALSE,
			ocr_message TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_visitors_open
			ON visitors (identification) WHERE checkout IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_visitors_created_at
			ON visitors (created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			password TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'user',
			created_at TIMESTAMPTZ NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := d.Client.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
