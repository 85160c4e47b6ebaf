package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users (
	id              BIGSERIAL PRIMARY KEY,
	name            VARCHAR(64)  NOT NULL UNIQUE,
	email           VARCHAR(254) NOT NULL UNIQUE,
	hashed_password VARCHAR(255) NOT NULL,
	created_at      TIMESTAMPTZ  NOT NULL DEFAULT NOW()
)`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	name            TEXT     NOT NULL UNIQUE,
	email           TEXT     NOT NULL UNIQUE COLLATE NOCASE,
	hashed_password TEXT     NOT NULL,
	created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// MigratePostgres creates the users table if it does not exist.
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("migrate users table: %w", err)
	}
	return nil
}

// OpenSQLite opens (creating if needed) a SQLite database at path and
// ensures the schema exists. Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// One writer at a time; an in-memory database also lives on a single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate users table: %w", err)
	}
	return db, nil
}
