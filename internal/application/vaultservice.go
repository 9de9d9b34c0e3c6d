package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ericfisherdev/credvault/internal/domain/model"
	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

// VaultService is the command surface the CLI drives. It normalizes input,
// delegates to the credential store and logs per-record decryption failures
// using only non-secret fields.
type VaultService struct {
	store   driven.CredentialStore
	layouts driven.LayoutStore
	logger  *slog.Logger
}

// NewVaultService creates a new VaultService with the required dependencies.
func NewVaultService(store driven.CredentialStore, layouts driven.LayoutStore, logger *slog.Logger) *VaultService {
	return &VaultService{store: store, layouts: layouts, logger: logger}
}

// Register trims the credential's text fields, turns a blank note into no
// note, and stores it. Returns the new id.
func (s *VaultService) Register(ctx context.Context, cred model.Credential) (int64, error) {
	cred.Application = strings.TrimSpace(cred.Application)
	cred.Username = strings.TrimSpace(cred.Username)
	cred.Email = strings.TrimSpace(cred.Email)
	cred.Secret = strings.TrimSpace(cred.Secret)
	if cred.Note != nil {
		note := strings.TrimSpace(*cred.Note)
		if note == "" {
			cred.Note = nil
		} else {
			cred.Note = &note
		}
	}

	id, err := s.store.Create(ctx, cred)
	if err != nil {
		return 0, err
	}
	s.logger.Debug("credential registered", "id", id, "application", cred.Application)
	return id, nil
}

// Search returns every credential for the application name.
func (s *VaultService) Search(ctx context.Context, application string) (model.Listing, error) {
	listing, err := s.store.FindByApplication(ctx, strings.TrimSpace(application))
	if err != nil {
		return model.Listing{}, err
	}
	s.logFailures(listing.Failures)
	return listing, nil
}

// List returns every stored credential.
func (s *VaultService) List(ctx context.Context) (model.Listing, error) {
	listing, err := s.store.ListAll(ctx)
	if err != nil {
		return model.Listing{}, err
	}
	s.logFailures(listing.Failures)
	return listing, nil
}

// Delete removes every credential for the application name and returns the
// number removed.
func (s *VaultService) Delete(ctx context.Context, application string) (int64, error) {
	application = strings.TrimSpace(application)
	n, err := s.store.DeleteByApplication(ctx, application)
	if err != nil {
		return 0, err
	}
	s.logger.Debug("credentials deleted", "application", application, "count", n)
	return n, nil
}

// StoredLayout returns the IV layout the vault is recorded in, or fallback
// when nothing is recorded yet.
func (s *VaultService) StoredLayout(ctx context.Context, fallback string) (string, error) {
	layout, err := s.layouts.IVLayout(ctx)
	if err != nil {
		return "", err
	}
	if layout == "" {
		return fallback, nil
	}
	return layout, nil
}

// EnsureLayout records layout for a vault that has none and rejects a vault
// recorded in a different layout, so one dataset is never written in two.
func (s *VaultService) EnsureLayout(ctx context.Context, layout string) error {
	recorded, err := s.layouts.RecordIVLayout(ctx, layout)
	if err != nil {
		return err
	}
	if recorded != layout {
		return fmt.Errorf("%w: stored secrets use the %s iv layout but %s is configured; run migrate-iv or set the iv mode to %s",
			driven.ErrConfiguration, recorded, layout, recorded)
	}
	return nil
}

// MigrateIV moves every stored secret from fromLayout, read with from, to
// toLayout in the store's current cipher. A vault not recorded in fromLayout
// is left untouched and the error wraps driven.ErrLayoutMismatch.
func (s *VaultService) MigrateIV(ctx context.Context, from driven.SecretCipher, fromLayout, toLayout string) (int, error) {
	n, err := s.layouts.MigrateLayout(ctx, from, fromLayout, toLayout)
	if err != nil {
		return 0, err
	}
	s.logger.Info("secrets re-encrypted", "count", n, "from", fromLayout, "to", toLayout)
	return n, nil
}

func (s *VaultService) logFailures(failures []model.RecordFailure) {
	for _, f := range failures {
		s.logger.Warn("stored secret could not be recovered",
			"id", f.ID,
			"application", f.Application,
			"username", f.Username,
			"email", f.Email,
			"error", f.Err,
		)
	}
}
