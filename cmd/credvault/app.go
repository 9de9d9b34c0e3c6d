package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/ericfisherdev/credvault/internal/adapter/driven/aescbc"
	"github.com/ericfisherdev/credvault/internal/adapter/driven/keys"
	sqliteadapter "github.com/ericfisherdev/credvault/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/credvault/internal/adapter/driving/cli"
	"github.com/ericfisherdev/credvault/internal/application"
	"github.com/ericfisherdev/credvault/internal/config"
	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

// app is the wired composition root shared by every command.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *sqliteadapter.DB
	keys   driven.KeyProvider
	cipher *aescbc.Engine
	stored *aescbc.Engine
	vault  *application.VaultService
	gate   *application.AdminGate
	prompt *cli.Prompter
	out    io.Writer
}

// openApp resolves key material, opens and migrates the database and wires
// the services. Key material problems are returned before the database is
// touched. When migrating, a vault with no recorded IV layout is read as
// fixed; otherwise as the configured mode.
func openApp(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer, migrating bool) (*app, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	logger.Debug("config loaded",
		"db_path", cfg.DBPath,
		"key_source", cfg.KeySource,
		"iv_mode", cfg.IVMode,
	)

	mode, err := aescbc.ParseIVMode(cfg.IVMode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", driven.ErrConfiguration, err)
	}

	prompt := cli.NewPrompter(in, out)

	// 1. Resolve key material (fatal on any configuration problem).
	provider, err := newKeyProvider(cfg, prompt, logger)
	if err != nil {
		return nil, err
	}
	if _, err := provider.KeyMaterial(); err != nil {
		return nil, err
	}

	// 2. Open database and run migrations on the writer connection.
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w: %w", driven.ErrPersistence, err)
	}
	version, err := sqliteadapter.RunMigrations(db.Writer)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Debug("database ready", "path", cfg.DBPath, "schema_version", version)

	// 3. Wire adapters and services.
	engine := aescbc.New(provider, aescbc.WithIVMode(mode))
	credentialStore := sqliteadapter.NewCredentialRepo(db, engine)
	userStore := sqliteadapter.NewUserRepo(db)
	vault := application.NewVaultService(credentialStore, sqliteadapter.NewVaultRepo(db, engine), logger)

	// 4. Existing secrets are read in the layout they were recorded in.
	fallback := mode
	if migrating {
		fallback = aescbc.IVFixed
	}
	layout, err := vault.StoredLayout(ctx, string(fallback))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	storedMode, err := aescbc.ParseIVMode(layout)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: recorded layout: %v", driven.ErrConfiguration, err)
	}
	stored := engine
	if storedMode != mode {
		stored = aescbc.New(provider, aescbc.WithIVMode(storedMode))
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		db:     db,
		keys:   provider,
		cipher: engine,
		stored: stored,
		vault:  vault,
		gate:   application.NewAdminGate(userStore, stored, prompt, logger),
		prompt: prompt,
		out:    out,
	}, nil
}

func newKeyProvider(cfg *config.Config, prompt *cli.Prompter, logger *slog.Logger) (driven.KeyProvider, error) {
	switch cfg.KeySource {
	case config.KeySourceEnv:
		return keys.ParseStatic(cfg.SecretKey, cfg.SecretIV)
	case config.KeySourcePassphrase:
		if err := guardExistingVault(cfg.DBPath, cfg.SaltFile); err != nil {
			return nil, err
		}
		return keys.NewPassphraseProvider(cfg.SaltFile, prompt.Passphrase, keys.DefaultKDFParams()), nil
	default:
		provider := keys.NewFileProvider(cfg.KeyFile)
		if err := guardExistingVault(cfg.DBPath, cfg.KeyFile); err != nil {
			return nil, err
		}
		created, err := provider.Ensure()
		if err != nil {
			return nil, err
		}
		if created {
			logger.Warn("generated new key file; back it up, it is the only way to read this vault",
				"key_file", cfg.KeyFile)
		}
		return provider, nil
	}
}

// guardExistingVault refuses to generate fresh key material (a key file or a
// salt file at keyPath) for a database that already exists, since the new
// key could not read its secrets.
func guardExistingVault(dbPath, keyPath string) error {
	if _, err := os.Stat(keyPath); err == nil {
		return nil
	}
	if _, err := os.Stat(dbPath); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("%w: database %s exists but %s is missing", driven.ErrConfiguration, dbPath, keyPath)
}

// ready checks the key against the vault, pins the IV layout, then runs the
// admin bootstrap and, when configured, the login check. Nothing is written
// before the key check passes. A migration manages the layout itself.
func (a *app) ready(ctx context.Context, migrating bool) error {
	if err := a.gate.CheckKey(ctx); err != nil {
		return err
	}
	if !migrating {
		if err := a.vault.EnsureLayout(ctx, string(a.cipher.Mode())); err != nil {
			return err
		}
	}

	created, err := a.gate.Bootstrap(ctx)
	if err != nil {
		return err
	}
	if created {
		fmt.Fprintln(a.out, "Admin user registered.")
		return nil
	}

	if !a.cfg.RequireLogin {
		return nil
	}
	pw, err := a.prompt.Secret("Admin password: ")
	if err != nil {
		return fmt.Errorf("read admin password: %w", err)
	}
	ok, err := a.gate.Verify(ctx, pw)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("invalid admin password")
	}
	return nil
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		a.logger.Error("error closing database", "error", err)
	}
}
