package application

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

// ErrEmptyPassword is returned when the administrator password is blank.
var ErrEmptyPassword = errors.New("admin password must not be empty")

// GateState is the AdminGate lifecycle state.
type GateState int

const (
	GateUninitialized GateState = iota
	GateReady
)

// String returns the state name.
func (s GateState) String() string {
	switch s {
	case GateReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

// PasswordPrompter asks the operator for the administrator password.
type PasswordPrompter interface {
	PromptAdminPassword(ctx context.Context) (string, error)
}

// AdminGate ensures the administrator credential exists before the vault is
// used. It moves from GateUninitialized to GateReady once and never back.
type AdminGate struct {
	users    driven.UserStore
	cipher   driven.SecretCipher
	prompter PasswordPrompter
	logger   *slog.Logger
	state    GateState
}

// NewAdminGate creates a new AdminGate in the uninitialized state.
func NewAdminGate(users driven.UserStore, cipher driven.SecretCipher, prompter PasswordPrompter, logger *slog.Logger) *AdminGate {
	return &AdminGate{
		users:    users,
		cipher:   cipher,
		prompter: prompter,
		logger:   logger,
	}
}

// State returns the current gate state.
func (g *AdminGate) State() GateState {
	return g.state
}

// Bootstrap creates the admin credential if it is absent, prompting for its
// password, and moves the gate to GateReady. It reports whether the admin was
// created by this call. Once ready, further calls do nothing.
func (g *AdminGate) Bootstrap(ctx context.Context) (bool, error) {
	if g.state == GateReady {
		return false, nil
	}

	exists, err := g.users.AdminExists(ctx)
	if err != nil {
		return false, err
	}
	if exists {
		g.state = GateReady
		return false, nil
	}

	password, err := g.prompter.PromptAdminPassword(ctx)
	if err != nil {
		return false, fmt.Errorf("prompt admin password: %w", err)
	}
	password = strings.TrimSpace(password)
	if password == "" {
		return false, ErrEmptyPassword
	}

	encrypted, err := g.cipher.Encrypt([]byte(password))
	if err != nil {
		return false, fmt.Errorf("encrypt admin password: %w", err)
	}

	created, err := g.users.CreateAdmin(ctx, encrypted)
	if err != nil {
		return false, err
	}
	if created {
		g.logger.Info("admin user created")
	}

	g.state = GateReady
	return created, nil
}

// Verify reports whether password matches the stored admin password. A
// missing admin row is a false match, not an error.
func (g *AdminGate) Verify(ctx context.Context, password string) (bool, error) {
	admin, err := g.users.GetAdmin(ctx)
	if err != nil {
		return false, err
	}
	if admin == nil {
		return false, nil
	}

	stored, err := g.cipher.Decrypt(admin.Secret)
	if err != nil {
		return false, fmt.Errorf("decrypt admin password: %w", err)
	}

	return subtle.ConstantTimeCompare(stored, []byte(strings.TrimSpace(password))) == 1, nil
}

// CheckKey confirms that the gate's cipher opens the stored admin secret,
// which proves the key material belongs to this vault. It runs before any
// write; a vault without an admin passes.
func (g *AdminGate) CheckKey(ctx context.Context) error {
	admin, err := g.users.GetAdmin(ctx)
	if err != nil {
		return err
	}
	if admin == nil {
		return nil
	}

	if _, err := g.cipher.DecryptString(admin.Secret); err != nil {
		return fmt.Errorf("%w: key material does not open this vault (wrong passphrase or key?): %v",
			driven.ErrConfiguration, err)
	}
	return nil
}
