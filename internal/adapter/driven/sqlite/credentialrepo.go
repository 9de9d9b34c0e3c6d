package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ericfisherdev/credvault/internal/domain/model"
	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port interface.
// Secrets pass through the cipher before write and after read; the secret
// column never holds plaintext.
type CredentialRepo struct {
	db     *DB
	cipher driven.SecretCipher
}

// NewCredentialRepo creates a new CredentialRepo backed by db, encrypting
// secrets with c.
func NewCredentialRepo(db *DB, c driven.SecretCipher) *CredentialRepo {
	return &CredentialRepo{db: db, cipher: c}
}

// Create encrypts the secret and inserts a new row, returning its id.
func (r *CredentialRepo) Create(ctx context.Context, cred model.Credential) (int64, error) {
	if strings.TrimSpace(cred.Application) == "" {
		return 0, driven.ErrEmptyApplication
	}

	encrypted, err := r.cipher.Encrypt([]byte(cred.Secret))
	if err != nil {
		return 0, fmt.Errorf("encrypt secret for %q: %w", cred.Application, err)
	}

	var note sql.NullString
	if cred.Note != nil {
		note = sql.NullString{String: *cred.Note, Valid: true}
	}

	const query = `INSERT INTO credentials (application, username, email, secret, note) VALUES (?, ?, ?, ?, ?)`
	result, err := r.db.Writer.ExecContext(ctx, query, cred.Application, cred.Username, cred.Email, encrypted, note)
	if err != nil {
		return 0, fmt.Errorf("create credential %q: %w: %w", cred.Application, driven.ErrPersistence, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read id of credential %q: %w: %w", cred.Application, driven.ErrPersistence, err)
	}
	return id, nil
}

// FindByApplication returns every credential for the application name.
func (r *CredentialRepo) FindByApplication(ctx context.Context, name string) (model.Listing, error) {
	const query = `SELECT id, application, username, email, secret, note, created_at
		FROM credentials WHERE application = ? ORDER BY id`
	return r.list(ctx, fmt.Sprintf("find credentials for %q", name), query, name)
}

// ListAll returns every stored credential ordered by id.
func (r *CredentialRepo) ListAll(ctx context.Context) (model.Listing, error) {
	const query = `SELECT id, application, username, email, secret, note, created_at
		FROM credentials ORDER BY id`
	return r.list(ctx, "list credentials", query)
}

// DeleteByApplication removes every credential for the application name and
// returns how many rows were removed.
func (r *CredentialRepo) DeleteByApplication(ctx context.Context, name string) (int64, error) {
	const query = `DELETE FROM credentials WHERE application = ?`
	result, err := r.db.Writer.ExecContext(ctx, query, name)
	if err != nil {
		return 0, fmt.Errorf("delete credentials for %q: %w: %w", name, driven.ErrPersistence, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check rows affected: %w: %w", driven.ErrPersistence, err)
	}
	return n, nil
}

// list runs a credential query and decrypts each row. A row whose secret
// fails to decrypt is recorded in Failures and the scan continues.
func (r *CredentialRepo) list(ctx context.Context, op, query string, args ...any) (model.Listing, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return model.Listing{}, fmt.Errorf("%s: %w: %w", op, driven.ErrPersistence, err)
	}
	defer rows.Close()

	var listing model.Listing
	for rows.Next() {
		var cred model.Credential
		var encrypted, createdAt string
		var note sql.NullString
		if err := rows.Scan(&cred.ID, &cred.Application, &cred.Username, &cred.Email, &encrypted, &note, &createdAt); err != nil {
			return model.Listing{}, fmt.Errorf("scan credential: %w: %w", driven.ErrPersistence, err)
		}

		if note.Valid {
			cred.Note = &note.String
		}
		cred.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return model.Listing{}, fmt.Errorf("parse created_at for credential %d: %w", cred.ID, err)
		}

		plaintext, err := r.cipher.DecryptString(encrypted)
		if err != nil {
			listing.Failures = append(listing.Failures, model.RecordFailure{
				ID:          cred.ID,
				Application: cred.Application,
				Username:    cred.Username,
				Email:       cred.Email,
				Err:         err,
			})
			continue
		}
		cred.Secret = plaintext

		listing.Records = append(listing.Records, cred)
	}
	if err := rows.Err(); err != nil {
		return model.Listing{}, fmt.Errorf("iterate credentials: %w: %w", driven.ErrPersistence, err)
	}

	return listing, nil
}
