package application_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/credvault/internal/application"
	"github.com/ericfisherdev/credvault/internal/domain/model"
	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

func TestVaultService_RegisterNormalizes(t *testing.T) {
	store := &mockCredentialStore{}
	svc := application.NewVaultService(store, &mockLayoutStore{}, discardLogger())

	blank := "   "
	id, err := svc.Register(context.Background(), model.Credential{
		Application: " mail ",
		Username:    "alice\n",
		Email:       " a@x.com",
		Secret:      "hunter2 ",
		Note:        &blank,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	require.Len(t, store.created, 1)
	got := store.created[0]
	assert.Equal(t, "mail", got.Application)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "a@x.com", got.Email)
	assert.Equal(t, "hunter2", got.Secret)
	assert.Nil(t, got.Note)
}

func TestVaultService_RegisterKeepsNote(t *testing.T) {
	store := &mockCredentialStore{}
	svc := application.NewVaultService(store, &mockLayoutStore{}, discardLogger())

	note := " backup codes "
	_, err := svc.Register(context.Background(), model.Credential{Application: "mail", Note: &note})
	require.NoError(t, err)

	require.NotNil(t, store.created[0].Note)
	assert.Equal(t, "backup codes", *store.created[0].Note)
}

func TestVaultService_SearchLogsFailuresWithoutSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	store := &mockCredentialStore{listing: model.Listing{
		Records: []model.Credential{{ID: 1, Application: "mail", Secret: "hunter2"}},
		Failures: []model.RecordFailure{
			{ID: 2, Application: "mail", Username: "bob", Email: "b@x.com", Err: errors.New("bad padding")},
		},
	}}
	svc := application.NewVaultService(store, &mockLayoutStore{}, logger)

	listing, err := svc.Search(context.Background(), " mail ")
	require.NoError(t, err)
	assert.Equal(t, "mail", store.lastFind)
	assert.Len(t, listing.Records, 1)
	assert.Len(t, listing.Failures, 1)

	out := buf.String()
	assert.Contains(t, out, "stored secret could not be recovered")
	assert.Contains(t, out, "username=bob")
	assert.NotContains(t, out, "hunter2")
}

func TestVaultService_ListPropagatesError(t *testing.T) {
	sentinel := errors.New("locked")
	svc := application.NewVaultService(&mockCredentialStore{err: sentinel}, &mockLayoutStore{}, discardLogger())

	_, err := svc.List(context.Background())
	assert.ErrorIs(t, err, sentinel)
}

func TestVaultService_Delete(t *testing.T) {
	store := &mockCredentialStore{}
	svc := application.NewVaultService(store, &mockLayoutStore{}, discardLogger())

	n, err := svc.Delete(context.Background(), " mail ")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, []string{"mail"}, store.deleted)
}

func TestVaultService_StoredLayout(t *testing.T) {
	layouts := &mockLayoutStore{}
	svc := application.NewVaultService(&mockCredentialStore{}, layouts, discardLogger())
	ctx := context.Background()

	layout, err := svc.StoredLayout(ctx, "fixed")
	require.NoError(t, err)
	assert.Equal(t, "fixed", layout, "unrecorded vault falls back")
	assert.Empty(t, layouts.layout, "reading must not record")

	layouts.layout = "per-record"
	layout, err = svc.StoredLayout(ctx, "fixed")
	require.NoError(t, err)
	assert.Equal(t, "per-record", layout)
}

func TestVaultService_EnsureLayoutRecordsFirstUse(t *testing.T) {
	layouts := &mockLayoutStore{}
	svc := application.NewVaultService(&mockCredentialStore{}, layouts, discardLogger())

	require.NoError(t, svc.EnsureLayout(context.Background(), "per-record"))
	assert.Equal(t, "per-record", layouts.layout)
	require.NoError(t, svc.EnsureLayout(context.Background(), "per-record"))
}

func TestVaultService_EnsureLayoutRejectsOtherLayout(t *testing.T) {
	layouts := &mockLayoutStore{layout: "fixed"}
	svc := application.NewVaultService(&mockCredentialStore{}, layouts, discardLogger())

	err := svc.EnsureLayout(context.Background(), "per-record")
	require.ErrorIs(t, err, driven.ErrConfiguration)
	assert.Contains(t, err.Error(), "migrate-iv")
	assert.Equal(t, "fixed", layouts.layout)
}

func TestVaultService_MigrateIV(t *testing.T) {
	layouts := &mockLayoutStore{layout: "fixed", rewrote: 4}
	svc := application.NewVaultService(&mockCredentialStore{}, layouts, discardLogger())
	ctx := context.Background()

	n, err := svc.MigrateIV(ctx, prefixCipher{}, "fixed", "per-record")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "per-record", layouts.layout)

	_, err = svc.MigrateIV(ctx, prefixCipher{}, "fixed", "per-record")
	assert.ErrorIs(t, err, driven.ErrLayoutMismatch)
}
