package driven

import (
	"errors"

	"github.com/ericfisherdev/credvault/internal/domain/model"
)

// ErrConfiguration is returned when key material is missing or malformed.
// It is fatal at startup.
var ErrConfiguration = errors.New("key material misconfigured")

// KeyProvider supplies the key and IV the cipher uses. Implementations must
// return the same pair for the lifetime of an encrypted dataset.
type KeyProvider interface {
	KeyMaterial() (model.KeyMaterial, error)
}
