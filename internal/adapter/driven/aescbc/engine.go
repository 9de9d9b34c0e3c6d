// Package aescbc implements the secret cipher: AES-256 in CBC mode with
// PKCS#7 padding, encoded as standard base64 for text columns.
package aescbc

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ericfisherdev/credvault/internal/domain/model"
	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

// Decryption failures. Each is wrapped with detail; test with errors.Is.
var (
	// ErrDecode indicates the stored text is not valid base64.
	ErrDecode = errors.New("secret is not valid base64")

	// ErrPadding indicates the decrypted padding is inconsistent: wrong key
	// or IV, corrupted ciphertext, or truncated input.
	ErrPadding = errors.New("secret has invalid padding")

	// ErrEncoding indicates the decrypted bytes are not valid UTF-8.
	ErrEncoding = errors.New("secret is not valid UTF-8")
)

// Compile-time interface satisfaction check.
var _ driven.SecretCipher = (*Engine)(nil)

// encoding decodes strictly so that altered trailing bits are rejected rather
// than silently ignored.
var encoding = base64.StdEncoding.Strict()

// IVMode selects where the CBC initialization vector comes from.
type IVMode string

const (
	// IVPerRecord draws a random IV for every Encrypt and stores it in front
	// of the ciphertext: base64(iv || ciphertext).
	IVPerRecord IVMode = "per-record"

	// IVFixed uses the key provider's IV for every record and stores only
	// base64(ciphertext). Equal leading plaintext blocks produce equal
	// leading ciphertext blocks; kept for data written in that layout.
	IVFixed IVMode = "fixed"
)

// ParseIVMode converts a configuration string to an IVMode.
func ParseIVMode(s string) (IVMode, error) {
	switch IVMode(strings.ToLower(strings.TrimSpace(s))) {
	case IVPerRecord, "":
		return IVPerRecord, nil
	case IVFixed:
		return IVFixed, nil
	default:
		return "", fmt.Errorf("unknown IV mode %q (want %q or %q)", s, IVPerRecord, IVFixed)
	}
}

// Engine is the AES-256-CBC secret cipher. It asks its KeyProvider for key
// material on every operation.
type Engine struct {
	keys   driven.KeyProvider
	mode   IVMode
	random io.Reader
}

// Option configures an Engine.
type Option func(*Engine)

// WithIVMode sets the IV mode. The default is IVPerRecord.
func WithIVMode(mode IVMode) Option {
	return func(e *Engine) { e.mode = mode }
}

// WithRandom replaces the source of per-record IVs. Tests only.
func WithRandom(r io.Reader) Option {
	return func(e *Engine) { e.random = r }
}

// New creates an Engine reading key material from keys.
func New(keys driven.KeyProvider, opts ...Option) *Engine {
	e := &Engine{
		keys:   keys,
		mode:   IVPerRecord,
		random: rand.Reader,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Mode returns the engine's IV mode.
func (e *Engine) Mode() IVMode {
	return e.mode
}

// Encrypt pads and encrypts plaintext and returns it as base64 text.
func (e *Engine) Encrypt(plaintext []byte) (string, error) {
	material, block, err := e.block()
	if err != nil {
		return "", err
	}

	padded := pad(plaintext, aes.BlockSize)

	switch e.mode {
	case IVFixed:
		out := make([]byte, len(padded))
		cipher.NewCBCEncrypter(block, material.IV).CryptBlocks(out, padded)
		return encoding.EncodeToString(out), nil
	default:
		out := make([]byte, aes.BlockSize+len(padded))
		iv := out[:aes.BlockSize]
		if _, err := io.ReadFull(e.random, iv); err != nil {
			return "", fmt.Errorf("generate iv: %w", err)
		}
		cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], padded)
		return encoding.EncodeToString(out), nil
	}
}

// Decrypt reverses Encrypt. It returns an error wrapping ErrDecode or
// ErrPadding when the text cannot be recovered.
func (e *Engine) Decrypt(text string) ([]byte, error) {
	data, err := encoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	material, block, err := e.block()
	if err != nil {
		return nil, err
	}

	iv := material.IV
	ciphertext := data
	if e.mode != IVFixed {
		if len(data) < 2*aes.BlockSize {
			return nil, fmt.Errorf("%w: %d bytes is too short for iv and one block", ErrPadding, len(data))
		}
		iv, ciphertext = data[:aes.BlockSize], data[aes.BlockSize:]
	}

	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d is not a positive multiple of %d", ErrPadding, len(ciphertext), aes.BlockSize)
	}

	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)

	return unpad(out, aes.BlockSize)
}

// DecryptString decrypts text and checks that the result is valid UTF-8.
func (e *Engine) DecryptString(text string) (string, error) {
	plaintext, err := e.Decrypt(text)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(plaintext) {
		return "", ErrEncoding
	}
	return string(plaintext), nil
}

func (e *Engine) block() (model.KeyMaterial, cipher.Block, error) {
	material, err := e.keys.KeyMaterial()
	if err != nil {
		return model.KeyMaterial{}, nil, fmt.Errorf("load key material: %w", err)
	}
	if !material.Valid() {
		return model.KeyMaterial{}, nil, fmt.Errorf("%w: key is %d bytes and iv is %d bytes, want %d and %d",
			driven.ErrConfiguration, len(material.Key), len(material.IV), model.KeySize, model.IVSize)
	}

	block, err := aes.NewCipher(material.Key)
	if err != nil {
		return model.KeyMaterial{}, nil, fmt.Errorf("%w: aes.NewCipher: %v", driven.ErrConfiguration, err)
	}
	return material, block, nil
}
