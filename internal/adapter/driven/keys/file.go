package keys

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/ericfisherdev/credvault/internal/domain/model"
	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

const (
	keyFileVersion = 1
	algorithm      = "aes-256-cbc"
)

// keyFile is the on-disk TOML layout of a generated key.
type keyFile struct {
	Version   int    `toml:"version"`
	Algorithm string `toml:"algorithm"`
	Key       string `toml:"key"`
	IV        string `toml:"iv"`
}

// FileProvider loads key material from a TOML key file kept apart from the
// database. The file is read once and cached.
type FileProvider struct {
	path   string
	random io.Reader

	mu       sync.Mutex
	material *model.KeyMaterial
}

// NewFileProvider creates a provider for the key file at path.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path, random: rand.Reader}
}

// Ensure generates and writes a fresh random key file if none exists. It
// reports whether a file was created. An existing file is left untouched.
func (p *FileProvider) Ensure() (bool, error) {
	if _, err := os.Stat(p.path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("%w: stat key file %s: %v", driven.ErrConfiguration, p.path, err)
	}

	m := model.KeyMaterial{
		Key: make([]byte, model.KeySize),
		IV:  make([]byte, model.IVSize),
	}
	if _, err := io.ReadFull(p.random, m.Key); err != nil {
		return false, fmt.Errorf("generate key: %w", err)
	}
	if _, err := io.ReadFull(p.random, m.IV); err != nil {
		return false, fmt.Errorf("generate iv: %w", err)
	}

	if dir := filepath.Dir(p.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return false, fmt.Errorf("create key directory: %w", err)
		}
	}

	// O_EXCL keeps a concurrently created file from being clobbered.
	f, err := os.OpenFile(p.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("create key file %s: %w", p.path, err)
	}

	kf := keyFile{
		Version:   keyFileVersion,
		Algorithm: algorithm,
		Key:       base64.StdEncoding.EncodeToString(m.Key),
		IV:        base64.StdEncoding.EncodeToString(m.IV),
	}
	if err := toml.NewEncoder(f).Encode(kf); err != nil {
		_ = f.Close()
		_ = os.Remove(p.path)
		return false, fmt.Errorf("write key file %s: %w", p.path, err)
	}
	if err := f.Close(); err != nil {
		return false, fmt.Errorf("close key file %s: %w", p.path, err)
	}

	p.mu.Lock()
	p.material = &m
	p.mu.Unlock()

	return true, nil
}

// KeyMaterial returns the key and IV from the key file.
func (p *FileProvider) KeyMaterial() (model.KeyMaterial, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.material != nil {
		return *p.material, nil
	}

	var kf keyFile
	if _, err := toml.DecodeFile(p.path, &kf); err != nil {
		return model.KeyMaterial{}, fmt.Errorf("%w: read key file %s: %v", driven.ErrConfiguration, p.path, err)
	}
	if kf.Version != keyFileVersion {
		return model.KeyMaterial{}, fmt.Errorf("%w: key file %s has unsupported version %d", driven.ErrConfiguration, p.path, kf.Version)
	}
	if kf.Algorithm != algorithm {
		return model.KeyMaterial{}, fmt.Errorf("%w: key file %s is for %q, want %q", driven.ErrConfiguration, p.path, kf.Algorithm, algorithm)
	}

	key, err := base64.StdEncoding.DecodeString(kf.Key)
	if err != nil {
		return model.KeyMaterial{}, fmt.Errorf("%w: decode key in %s: %v", driven.ErrConfiguration, p.path, err)
	}
	iv, err := base64.StdEncoding.DecodeString(kf.IV)
	if err != nil {
		return model.KeyMaterial{}, fmt.Errorf("%w: decode iv in %s: %v", driven.ErrConfiguration, p.path, err)
	}

	m := model.KeyMaterial{Key: key, IV: iv}
	if err := validate(m); err != nil {
		return model.KeyMaterial{}, fmt.Errorf("key file %s: %w", p.path, err)
	}

	p.material = &m
	return m, nil
}
