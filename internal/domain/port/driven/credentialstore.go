package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/credvault/internal/domain/model"
)

// ErrPersistence wraps every backend I/O or query failure.
var ErrPersistence = errors.New("persistence failure")

// CredentialStore defines the driven port for credential persistence.
// Implementations encrypt Secret before write and decrypt it after read;
// this interface operates on plaintext at the domain boundary.
type CredentialStore interface {
	// Create stores a new credential and returns its assigned id.
	Create(ctx context.Context, cred model.Credential) (int64, error)

	// FindByApplication returns every credential whose application matches
	// name exactly. Rows whose secret cannot be decrypted are reported in
	// Listing.Failures. No match is an empty Listing, not an error.
	FindByApplication(ctx context.Context, name string) (model.Listing, error)

	// ListAll returns every credential with the same failure semantics as
	// FindByApplication.
	ListAll(ctx context.Context) (model.Listing, error)

	// DeleteByApplication removes every credential for the application and
	// returns how many were removed. Zero is not an error.
	DeleteByApplication(ctx context.Context, name string) (int64, error)
}

// ErrEmptyApplication is returned by Create when the application name is blank.
var ErrEmptyApplication = errors.New("application name is required")
