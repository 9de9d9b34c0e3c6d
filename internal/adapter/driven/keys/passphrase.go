package keys

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"

	"github.com/BurntSushi/toml"
	"golang.org/x/crypto/argon2"

	"github.com/ericfisherdev/credvault/internal/domain/model"
	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

const saltSize = 32

// KDFParams are the Argon2id cost parameters.
type KDFParams struct {
	Time    uint32 `toml:"time"`
	Memory  uint32 `toml:"memory"`
	Threads uint8  `toml:"threads"`
}

// DefaultKDFParams returns the parameters written into new salt files.
func DefaultKDFParams() KDFParams {
	return KDFParams{Time: 3, Memory: 64 * 1024, Threads: 4}
}

// saltFile is the on-disk TOML layout of the per-installation salt.
type saltFile struct {
	Version int       `toml:"version"`
	KDF     string    `toml:"kdf"`
	Salt    string    `toml:"salt"`
	Params  KDFParams `toml:"params"`
}

// PassphraseFunc returns the user's passphrase. The returned slice is zeroed
// after derivation.
type PassphraseFunc func() ([]byte, error)

// PassphraseProvider derives key and IV from a passphrase with Argon2id. The
// salt and cost parameters live in a TOML file created on first use. The
// passphrase is requested once and the derived material is cached.
type PassphraseProvider struct {
	saltPath   string
	passphrase PassphraseFunc
	params     KDFParams
	random     io.Reader

	mu       sync.Mutex
	material *model.KeyMaterial
}

// NewPassphraseProvider creates a provider using the salt file at saltPath.
// params apply only when a new salt file is written.
func NewPassphraseProvider(saltPath string, passphrase PassphraseFunc, params KDFParams) *PassphraseProvider {
	return &PassphraseProvider{
		saltPath:   saltPath,
		passphrase: passphrase,
		params:     params,
		random:     rand.Reader,
	}
}

// KeyMaterial derives (once) and returns the key and IV.
func (p *PassphraseProvider) KeyMaterial() (model.KeyMaterial, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.material != nil {
		return *p.material, nil
	}

	sf, err := p.loadOrCreateSalt()
	if err != nil {
		return model.KeyMaterial{}, err
	}

	salt, err := base64.StdEncoding.DecodeString(sf.Salt)
	if err != nil || len(salt) == 0 {
		return model.KeyMaterial{}, fmt.Errorf("%w: salt file %s has an unreadable salt", driven.ErrConfiguration, p.saltPath)
	}

	pass, err := p.passphrase()
	if err != nil {
		return model.KeyMaterial{}, fmt.Errorf("%w: read passphrase: %v", driven.ErrConfiguration, err)
	}
	defer zero(pass)
	if len(pass) == 0 {
		return model.KeyMaterial{}, fmt.Errorf("%w: empty passphrase", driven.ErrConfiguration)
	}

	derived := argon2.IDKey(pass, salt, sf.Params.Time, sf.Params.Memory, sf.Params.Threads, model.KeySize+model.IVSize)
	m := model.KeyMaterial{Key: derived[:model.KeySize], IV: derived[model.KeySize:]}

	p.material = &m
	return m, nil
}

func (p *PassphraseProvider) loadOrCreateSalt() (saltFile, error) {
	var sf saltFile
	_, err := toml.DecodeFile(p.saltPath, &sf)
	switch {
	case err == nil:
		if sf.KDF != "argon2id" {
			return saltFile{}, fmt.Errorf("%w: salt file %s uses unsupported kdf %q", driven.ErrConfiguration, p.saltPath, sf.KDF)
		}
		if sf.Params.Time == 0 || sf.Params.Memory == 0 || sf.Params.Threads == 0 {
			return saltFile{}, fmt.Errorf("%w: salt file %s has zero kdf parameters", driven.ErrConfiguration, p.saltPath)
		}
		return sf, nil
	case !errors.Is(err, fs.ErrNotExist):
		return saltFile{}, fmt.Errorf("%w: read salt file %s: %v", driven.ErrConfiguration, p.saltPath, err)
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(p.random, salt); err != nil {
		return saltFile{}, fmt.Errorf("generate salt: %w", err)
	}
	sf = saltFile{
		Version: 1,
		KDF:     "argon2id",
		Salt:    base64.StdEncoding.EncodeToString(salt),
		Params:  p.params,
	}

	f, err := os.OpenFile(p.saltPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return saltFile{}, fmt.Errorf("create salt file %s: %w", p.saltPath, err)
	}
	if err := toml.NewEncoder(f).Encode(sf); err != nil {
		_ = f.Close()
		_ = os.Remove(p.saltPath)
		return saltFile{}, fmt.Errorf("write salt file %s: %w", p.saltPath, err)
	}
	if err := f.Close(); err != nil {
		return saltFile{}, fmt.Errorf("close salt file %s: %w", p.saltPath, err)
	}
	return sf, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
