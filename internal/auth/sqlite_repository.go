package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// SQLiteUserRepository is a SQLite implementation of UserRepository.
// The *sql.DB is expected to be opened with the modernc "sqlite" driver.
type SQLiteUserRepository struct {
	db *sql.DB
}

// NewSQLiteUserRepository creates a new SQLite user repository.
func NewSQLiteUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

// Create creates a new user.
func (r *SQLiteUserRepository) Create(ctx context.Context, user *User) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (name, email, hashed_password, created_at) VALUES (?, ?, ?, ?)`,
		user.Name, user.Email, user.HashedPassword, user.CreatedAt.UTC(),
	)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return ErrUserExists
		}
		return err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	user.ID = id
	return nil
}

// FindByName finds a user by account name.
func (r *SQLiteUserRepository) FindByName(ctx context.Context, name string) (*User, error) {
	return r.findOne(ctx, `SELECT id, name, email, hashed_password, created_at FROM users WHERE name = ?`, name)
}

// FindByID finds a user by ID.
func (r *SQLiteUserRepository) FindByID(ctx context.Context, id int64) (*User, error) {
	return r.findOne(ctx, `SELECT id, name, email, hashed_password, created_at FROM users WHERE id = ?`, id)
}

// Ping checks the database handle.
func (r *SQLiteUserRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteUserRepository) findOne(ctx context.Context, query string, arg any) (*User, error) {
	var user User
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.HashedPassword,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// isSQLiteUniqueViolation matches SQLITE_CONSTRAINT_UNIQUE by message so the
// repository does not depend on driver-internal error types.
func isSQLiteUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
