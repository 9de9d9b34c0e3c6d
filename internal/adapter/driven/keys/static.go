// Package keys provides the key material sources for the secret cipher.
//
// Every provider validates sizes before handing material out and reports
// problems wrapped in driven.ErrConfiguration.
package keys

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/ericfisherdev/credvault/internal/domain/model"
	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.KeyProvider = (*StaticProvider)(nil)
	_ driven.KeyProvider = (*FileProvider)(nil)
	_ driven.KeyProvider = (*PassphraseProvider)(nil)
)

// StaticProvider returns a fixed key and IV.
type StaticProvider struct {
	material model.KeyMaterial
}

// NewStaticProvider copies key and iv and validates their sizes.
func NewStaticProvider(key, iv []byte) (*StaticProvider, error) {
	m := model.KeyMaterial{
		Key: append([]byte(nil), key...),
		IV:  append([]byte(nil), iv...),
	}
	if err := validate(m); err != nil {
		return nil, err
	}
	return &StaticProvider{material: m}, nil
}

// ParseStatic builds a StaticProvider from base64 text. keyText may hold the
// key alone (32 bytes), in which case ivText must hold the IV, or key||iv
// (48 bytes), in which case ivText must be empty.
func ParseStatic(keyText, ivText string) (*StaticProvider, error) {
	if strings.TrimSpace(keyText) == "" {
		return nil, fmt.Errorf("%w: no key supplied", driven.ErrConfiguration)
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(keyText))
	if err != nil {
		return nil, fmt.Errorf("%w: decode key: %v", driven.ErrConfiguration, err)
	}

	if len(raw) == model.KeySize+model.IVSize {
		if strings.TrimSpace(ivText) != "" {
			return nil, fmt.Errorf("%w: key already carries an iv, drop the separate iv", driven.ErrConfiguration)
		}
		return NewStaticProvider(raw[:model.KeySize], raw[model.KeySize:])
	}

	iv, err := base64.StdEncoding.DecodeString(strings.TrimSpace(ivText))
	if err != nil {
		return nil, fmt.Errorf("%w: decode iv: %v", driven.ErrConfiguration, err)
	}
	return NewStaticProvider(raw, iv)
}

// KeyMaterial returns the configured pair.
func (p *StaticProvider) KeyMaterial() (model.KeyMaterial, error) {
	return p.material, nil
}

func validate(m model.KeyMaterial) error {
	if len(m.Key) != model.KeySize {
		return fmt.Errorf("%w: key is %d bytes, want %d", driven.ErrConfiguration, len(m.Key), model.KeySize)
	}
	if len(m.IV) != model.IVSize {
		return fmt.Errorf("%w: iv is %d bytes, want %d", driven.ErrConfiguration, len(m.IV), model.IVSize)
	}
	return nil
}
