package driven

import (
	"context"

	"github.com/ericfisherdev/credvault/internal/domain/model"
)

// UserStore defines the driven port for the administrator singleton.
// Secrets cross this boundary already encrypted.
type UserStore interface {
	// AdminExists reports whether the admin row is present.
	AdminExists(ctx context.Context) (bool, error)

	// CreateAdmin inserts the admin row unless one already exists. It reports
	// whether a row was inserted; the check and insert are one statement.
	CreateAdmin(ctx context.Context, encryptedSecret string) (bool, error)

	// GetAdmin returns the admin row, or nil if absent.
	GetAdmin(ctx context.Context) (*model.AdminCredential, error)
}
