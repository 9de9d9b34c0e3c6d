package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/credvault/internal/adapter/driven/aescbc"
	"github.com/ericfisherdev/credvault/internal/domain/model"
	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

func mailCredential() model.Credential {
	return model.Credential{
		Application: "mail",
		Username:    "alice",
		Email:       "a@x.com",
		Secret:      "hunter2",
	}
}

func TestCredentialRepo_EndToEnd(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, newTestCipher(t, aescbc.IVPerRecord))
	ctx := context.Background()

	id, err := repo.Create(ctx, mailCredential())
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	found, err := repo.FindByApplication(ctx, "mail")
	require.NoError(t, err)
	require.Len(t, found.Records, 1)
	assert.Empty(t, found.Failures)

	got := found.Records[0]
	assert.Equal(t, int64(1), got.ID)
	assert.Equal(t, "mail", got.Application)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "a@x.com", got.Email)
	assert.Equal(t, "hunter2", got.Secret)
	assert.Nil(t, got.Note)
	assert.False(t, got.CreatedAt.IsZero())

	n, err := repo.DeleteByApplication(ctx, "mail")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	found, err = repo.FindByApplication(ctx, "mail")
	require.NoError(t, err)
	assert.True(t, found.Empty())
}

func TestCredentialRepo_SecretNeverStoredInClear(t *testing.T) {
	for _, mode := range []aescbc.IVMode{aescbc.IVPerRecord, aescbc.IVFixed} {
		t.Run(string(mode), func(t *testing.T) {
			db := setupTestDB(t)
			c := newTestCipher(t, mode)
			repo := NewCredentialRepo(db, c)
			ctx := context.Background()

			id, err := repo.Create(ctx, mailCredential())
			require.NoError(t, err)

			var stored string
			require.NoError(t, db.Reader.QueryRowContext(ctx, `SELECT secret FROM credentials WHERE id = ?`, id).Scan(&stored))
			assert.NotContains(t, stored, "hunter2")

			plaintext, err := c.DecryptString(stored)
			require.NoError(t, err)
			assert.Equal(t, "hunter2", plaintext)
		})
	}
}

func TestCredentialRepo_NotePreserved(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, newTestCipher(t, aescbc.IVPerRecord))
	ctx := context.Background()

	cred := mailCredential()
	cred.Note = strPtr("recovery codes in drawer")
	_, err := repo.Create(ctx, cred)
	require.NoError(t, err)

	listing, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, listing.Records, 1)
	require.NotNil(t, listing.Records[0].Note)
	assert.Equal(t, "recovery codes in drawer", *listing.Records[0].Note)
}

func TestCredentialRepo_IDsIncreaseAndAreNotReused(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, newTestCipher(t, aescbc.IVPerRecord))
	ctx := context.Background()

	id1, err := repo.Create(ctx, mailCredential())
	require.NoError(t, err)
	id2, err := repo.Create(ctx, mailCredential())
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	_, err = repo.DeleteByApplication(ctx, "mail")
	require.NoError(t, err)

	id3, err := repo.Create(ctx, mailCredential())
	require.NoError(t, err)
	assert.Greater(t, id3, id2)
}

func TestCredentialRepo_CreateRejectsEmptyApplication(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, newTestCipher(t, aescbc.IVPerRecord))

	cred := mailCredential()
	cred.Application = "  "
	_, err := repo.Create(context.Background(), cred)
	assert.ErrorIs(t, err, driven.ErrEmptyApplication)
}

func TestCredentialRepo_FindMatchesExactlyAndReturnsAll(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, newTestCipher(t, aescbc.IVPerRecord))
	ctx := context.Background()

	for _, app := range []string{"mail", "mail", "Mail", "mailbox"} {
		cred := mailCredential()
		cred.Application = app
		_, err := repo.Create(ctx, cred)
		require.NoError(t, err)
	}

	found, err := repo.FindByApplication(ctx, "mail")
	require.NoError(t, err)
	assert.Len(t, found.Records, 2)
	for _, rec := range found.Records {
		assert.Equal(t, "mail", rec.Application)
	}
}

func TestCredentialRepo_DeleteNothingMatched(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, newTestCipher(t, aescbc.IVPerRecord))

	n, err := repo.DeleteByApplication(context.Background(), "nonexistent")
	require.NoError(t, err, "deleting nonexistent credentials should not error")
	assert.Equal(t, int64(0), n)
}

func TestCredentialRepo_DeleteRemovesAllSharingName(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, newTestCipher(t, aescbc.IVPerRecord))
	ctx := context.Background()

	for range 3 {
		_, err := repo.Create(ctx, mailCredential())
		require.NoError(t, err)
	}
	other := mailCredential()
	other.Application = "bank"
	_, err := repo.Create(ctx, other)
	require.NoError(t, err)

	n, err := repo.DeleteByApplication(ctx, "mail")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	listing, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, listing.Records, 1)
	assert.Equal(t, "bank", listing.Records[0].Application)
}

func TestCredentialRepo_ListAllIdempotent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, newTestCipher(t, aescbc.IVPerRecord))
	ctx := context.Background()

	for _, app := range []string{"mail", "bank", "forum"} {
		cred := mailCredential()
		cred.Application = app
		_, err := repo.Create(ctx, cred)
		require.NoError(t, err)
	}

	first, err := repo.ListAll(ctx)
	require.NoError(t, err)
	second, err := repo.ListAll(ctx)
	require.NoError(t, err)

	assert.Len(t, first.Records, 3)
	assert.Equal(t, first, second)
}

func TestCredentialRepo_PartialFailureIsolation(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, newTestCipher(t, aescbc.IVPerRecord))
	ctx := context.Background()

	var ids []int64
	for _, user := range []string{"alice", "bob", "carol"} {
		cred := mailCredential()
		cred.Username = user
		id, err := repo.Create(ctx, cred)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	// Corrupt bob's secret column directly.
	_, err := db.Writer.ExecContext(ctx, `UPDATE credentials SET secret = ? WHERE id = ?`, "%%corrupt%%", ids[1])
	require.NoError(t, err)

	for name, query := range map[string]func() (model.Listing, error){
		"find": func() (model.Listing, error) { return repo.FindByApplication(ctx, "mail") },
		"list": func() (model.Listing, error) { return repo.ListAll(ctx) },
	} {
		t.Run(name, func(t *testing.T) {
			listing, err := query()
			require.NoError(t, err)

			require.Len(t, listing.Records, 2)
			assert.Equal(t, "alice", listing.Records[0].Username)
			assert.Equal(t, "carol", listing.Records[1].Username)

			require.Len(t, listing.Failures, 1)
			failure := listing.Failures[0]
			assert.Equal(t, ids[1], failure.ID)
			assert.Equal(t, "bob", failure.Username)
			assert.ErrorIs(t, failure.Err, aescbc.ErrDecode)
		})
	}
}

func TestCredentialRepo_PaddingFailureReported(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, newTestCipher(t, aescbc.IVPerRecord))
	ctx := context.Background()

	id, err := repo.Create(ctx, mailCredential())
	require.NoError(t, err)

	// Valid base64 but far too short to hold an IV and a block.
	_, err = db.Writer.ExecContext(ctx, `UPDATE credentials SET secret = ? WHERE id = ?`, "QUJD", id)
	require.NoError(t, err)

	listing, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, listing.Records)
	require.Len(t, listing.Failures, 1)
	assert.ErrorIs(t, listing.Failures[0].Err, aescbc.ErrPadding)
}

func TestCredentialRepo_PersistenceError(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, newTestCipher(t, aescbc.IVPerRecord))
	require.NoError(t, db.Close())

	_, err := repo.Create(context.Background(), mailCredential())
	assert.ErrorIs(t, err, driven.ErrPersistence)

	_, err = repo.ListAll(context.Background())
	assert.ErrorIs(t, err, driven.ErrPersistence)
}
