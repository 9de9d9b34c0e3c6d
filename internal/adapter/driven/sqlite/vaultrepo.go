package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ericfisherdev/credvault/internal/domain/model"
	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

const ivLayoutKey = "iv_layout"

// Compile-time interface satisfaction check.
var _ driven.LayoutStore = (*VaultRepo)(nil)

// VaultRepo is the SQLite implementation of the LayoutStore port interface.
// It owns the vault_meta table and the layout migration, which spans the
// credentials and users tables.
type VaultRepo struct {
	db     *DB
	cipher driven.SecretCipher
}

// NewVaultRepo creates a new VaultRepo backed by db. Migrations write with c.
func NewVaultRepo(db *DB, c driven.SecretCipher) *VaultRepo {
	return &VaultRepo{db: db, cipher: c}
}

// IVLayout returns the recorded IV layout, or "" when none is recorded.
func (r *VaultRepo) IVLayout(ctx context.Context) (string, error) {
	layout, err := readLayout(ctx, r.db.Reader)
	if err != nil {
		return "", fmt.Errorf("read iv layout: %w: %w", driven.ErrPersistence, err)
	}
	return layout, nil
}

// RecordIVLayout records layout unless a layout is already recorded, and
// returns the layout in effect.
func (r *VaultRepo) RecordIVLayout(ctx context.Context, layout string) (string, error) {
	const query = `INSERT INTO vault_meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO NOTHING`
	if _, err := r.db.Writer.ExecContext(ctx, query, ivLayoutKey, layout); err != nil {
		return "", fmt.Errorf("record iv layout: %w: %w", driven.ErrPersistence, err)
	}

	recorded, err := readLayout(ctx, r.db.Writer)
	if err != nil {
		return "", fmt.Errorf("read iv layout: %w: %w", driven.ErrPersistence, err)
	}
	return recorded, nil
}

// MigrateLayout rewrites every secret from fromLayout to toLayout in one
// transaction. Any failure rolls back all of it, the layout marker included.
func (r *VaultRepo) MigrateLayout(ctx context.Context, from driven.SecretCipher, fromLayout, toLayout string) (int, error) {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin layout migration: %w: %w", driven.ErrPersistence, err)
	}
	defer func() { _ = tx.Rollback() }()

	recorded, err := readLayout(ctx, tx)
	if err != nil {
		return 0, fmt.Errorf("read iv layout: %w: %w", driven.ErrPersistence, err)
	}
	if recorded != "" && recorded != fromLayout {
		return 0, fmt.Errorf("%w: vault is recorded as %q, migration reads %q", driven.ErrLayoutMismatch, recorded, fromLayout)
	}

	type row struct {
		id     int64
		secret string
	}

	rows, err := tx.QueryContext(ctx, `SELECT id, secret FROM credentials ORDER BY id`)
	if err != nil {
		return 0, fmt.Errorf("read secrets: %w: %w", driven.ErrPersistence, err)
	}
	var pending []row
	for rows.Next() {
		var rw row
		if err := rows.Scan(&rw.id, &rw.secret); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("scan secret: %w: %w", driven.ErrPersistence, err)
		}
		pending = append(pending, rw)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, fmt.Errorf("iterate secrets: %w: %w", driven.ErrPersistence, err)
	}
	_ = rows.Close()

	for _, rw := range pending {
		encrypted, err := r.rewrite(from, rw.secret)
		if err != nil {
			return 0, fmt.Errorf("credential %d: %w", rw.id, err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE credentials SET secret = ? WHERE id = ?`, encrypted, rw.id); err != nil {
			return 0, fmt.Errorf("rewrite credential %d: %w: %w", rw.id, driven.ErrPersistence, err)
		}
	}

	var adminSecret string
	err = tx.QueryRowContext(ctx, `SELECT secret FROM users WHERE username = ?`, model.AdminUsername).Scan(&adminSecret)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return 0, fmt.Errorf("read admin secret: %w: %w", driven.ErrPersistence, err)
	default:
		encrypted, err := r.rewrite(from, adminSecret)
		if err != nil {
			return 0, fmt.Errorf("admin secret: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE users SET secret = ? WHERE username = ?`, encrypted, model.AdminUsername); err != nil {
			return 0, fmt.Errorf("rewrite admin secret: %w: %w", driven.ErrPersistence, err)
		}
	}

	const upsert = `INSERT INTO vault_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err := tx.ExecContext(ctx, upsert, ivLayoutKey, toLayout); err != nil {
		return 0, fmt.Errorf("record iv layout: %w: %w", driven.ErrPersistence, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit layout migration: %w: %w", driven.ErrPersistence, err)
	}
	return len(pending), nil
}

func (r *VaultRepo) rewrite(from driven.SecretCipher, secret string) (string, error) {
	plaintext, err := from.Decrypt(secret)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	encrypted, err := r.cipher.Encrypt(plaintext)
	if err != nil {
		return "", fmt.Errorf("encrypt: %w", err)
	}
	return encrypted, nil
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func readLayout(ctx context.Context, q rowQuerier) (string, error) {
	var layout string
	err := q.QueryRowContext(ctx, `SELECT value FROM vault_meta WHERE key = ?`, ivLayoutKey).Scan(&layout)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return layout, err
}
