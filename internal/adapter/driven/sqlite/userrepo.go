package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ericfisherdev/credvault/internal/domain/model"
	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.UserStore = (*UserRepo)(nil)

// UserRepo is the SQLite implementation of the UserStore port interface.
type UserRepo struct {
	db *DB
}

// NewUserRepo creates a new UserRepo backed by the given DB.
func NewUserRepo(db *DB) *UserRepo {
	return &UserRepo{db: db}
}

// AdminExists reports whether the admin row is present.
func (r *UserRepo) AdminExists(ctx context.Context) (bool, error) {
	const query = `SELECT COUNT(*) FROM users WHERE username = ?`
	var count int
	if err := r.db.Reader.QueryRowContext(ctx, query, model.AdminUsername).Scan(&count); err != nil {
		return false, fmt.Errorf("check admin: %w: %w", driven.ErrPersistence, err)
	}
	return count > 0, nil
}

// CreateAdmin inserts the admin row unless it exists. Idempotent; the
// UNIQUE constraint on username makes the conditional insert atomic.
func (r *UserRepo) CreateAdmin(ctx context.Context, encryptedSecret string) (bool, error) {
	const query = `INSERT INTO users (username, secret) VALUES (?, ?) ON CONFLICT(username) DO NOTHING`
	result, err := r.db.Writer.ExecContext(ctx, query, model.AdminUsername, encryptedSecret)
	if err != nil {
		return false, fmt.Errorf("create admin: %w: %w", driven.ErrPersistence, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check rows affected: %w: %w", driven.ErrPersistence, err)
	}
	return n == 1, nil
}

// GetAdmin returns the admin row. Returns nil, nil if it does not exist.
func (r *UserRepo) GetAdmin(ctx context.Context) (*model.AdminCredential, error) {
	const query = `SELECT id, username, secret FROM users WHERE username = ?`
	var admin model.AdminCredential
	err := r.db.Reader.QueryRowContext(ctx, query, model.AdminUsername).Scan(&admin.ID, &admin.Username, &admin.Secret)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get admin: %w: %w", driven.ErrPersistence, err)
	}
	return &admin, nil
}

