package application_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/ericfisherdev/credvault/internal/domain/model"
	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// prefixCipher marks text as "encrypted" by prefixing it.
type prefixCipher struct{}

func (prefixCipher) Encrypt(p []byte) (string, error) { return "enc:" + string(p), nil }

func (prefixCipher) Decrypt(text string) ([]byte, error) {
	if !strings.HasPrefix(text, "enc:") {
		return nil, errors.New("not encrypted")
	}
	return []byte(strings.TrimPrefix(text, "enc:")), nil
}

func (c prefixCipher) DecryptString(text string) (string, error) {
	b, err := c.Decrypt(text)
	return string(b), err
}

type mockUserStore struct {
	admin      *model.AdminCredential
	existsErr  error
	createCall int
}

func (m *mockUserStore) AdminExists(_ context.Context) (bool, error) {
	return m.admin != nil, m.existsErr
}

func (m *mockUserStore) CreateAdmin(_ context.Context, secret string) (bool, error) {
	m.createCall++
	if m.admin != nil {
		return false, nil
	}
	m.admin = &model.AdminCredential{ID: 1, Username: model.AdminUsername, Secret: secret}
	return true, nil
}

func (m *mockUserStore) GetAdmin(_ context.Context) (*model.AdminCredential, error) {
	return m.admin, nil
}

type mockPrompter struct {
	password string
	err      error
	calls    int
}

func (m *mockPrompter) PromptAdminPassword(_ context.Context) (string, error) {
	m.calls++
	return m.password, m.err
}

type mockCredentialStore struct {
	created  []model.Credential
	listing  model.Listing
	deleted  []string
	lastFind string
	err      error
}

func (m *mockCredentialStore) Create(_ context.Context, cred model.Credential) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.created = append(m.created, cred)
	return int64(len(m.created)), nil
}

func (m *mockCredentialStore) FindByApplication(_ context.Context, name string) (model.Listing, error) {
	m.lastFind = name
	return m.listing, m.err
}

func (m *mockCredentialStore) ListAll(_ context.Context) (model.Listing, error) {
	return m.listing, m.err
}

func (m *mockCredentialStore) DeleteByApplication(_ context.Context, name string) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.deleted = append(m.deleted, name)
	return 2, nil
}

type mockLayoutStore struct {
	layout  string
	err     error
	rewrote int
}

func (m *mockLayoutStore) IVLayout(_ context.Context) (string, error) {
	return m.layout, m.err
}

func (m *mockLayoutStore) RecordIVLayout(_ context.Context, layout string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if m.layout == "" {
		m.layout = layout
	}
	return m.layout, nil
}

func (m *mockLayoutStore) MigrateLayout(_ context.Context, _ driven.SecretCipher, fromLayout, toLayout string) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	if m.layout != "" && m.layout != fromLayout {
		return 0, driven.ErrLayoutMismatch
	}
	m.layout = toLayout
	return m.rewrote, nil
}
