// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// KeySource names where the cipher's key material comes from.
type KeySource string

const (
	KeySourceFile       KeySource = "file"
	KeySourcePassphrase KeySource = "passphrase"
	KeySourceEnv        KeySource = "env"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath       string
	KeySource    KeySource
	KeyFile      string
	SaltFile     string
	SecretKey    string
	SecretIV     string
	IVMode       string
	LogLevel     slog.Level
	RequireLogin bool
}

// Load reads configuration from environment variables and returns a validated Config.
// Optional variables with defaults: CREDVAULT_DB_PATH (password_manager.db),
// CREDVAULT_KEY_SOURCE (file), CREDVAULT_KEY_FILE (credvault.key.toml),
// CREDVAULT_SALT_FILE (credvault.salt.toml), CREDVAULT_IV_MODE (per-record),
// CREDVAULT_LOG_LEVEL (warn), CREDVAULT_REQUIRE_LOGIN (false).
// CREDVAULT_SECRET_KEY is required when the key source is env.
func Load() (*Config, error) {
	cfg := &Config{
		DBPath:    "password_manager.db",
		KeySource: KeySourceFile,
		KeyFile:   "credvault.key.toml",
		SaltFile:  "credvault.salt.toml",
		IVMode:    "per-record",
		LogLevel:  slog.LevelWarn,
	}

	if v, ok := os.LookupEnv("CREDVAULT_DB_PATH"); ok && v != "" {
		cfg.DBPath = v
	}
	if v, ok := os.LookupEnv("CREDVAULT_KEY_FILE"); ok && v != "" {
		cfg.KeyFile = v
	}
	if v, ok := os.LookupEnv("CREDVAULT_SALT_FILE"); ok && v != "" {
		cfg.SaltFile = v
	}
	if v, ok := os.LookupEnv("CREDVAULT_IV_MODE"); ok && v != "" {
		cfg.IVMode = v
	}
	cfg.SecretKey = os.Getenv("CREDVAULT_SECRET_KEY")
	cfg.SecretIV = os.Getenv("CREDVAULT_SECRET_IV")

	if v, ok := os.LookupEnv("CREDVAULT_KEY_SOURCE"); ok && v != "" {
		source, err := ParseKeySource(v)
		if err != nil {
			return nil, fmt.Errorf("CREDVAULT_KEY_SOURCE: %w", err)
		}
		cfg.KeySource = source
	}

	if v, ok := os.LookupEnv("CREDVAULT_LOG_LEVEL"); ok && v != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("CREDVAULT_LOG_LEVEL has invalid level %q: %w", v, err)
		}
		cfg.LogLevel = level
	}

	if v, ok := os.LookupEnv("CREDVAULT_REQUIRE_LOGIN"); ok && v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("CREDVAULT_REQUIRE_LOGIN has invalid boolean %q: %w", v, err)
		}
		cfg.RequireLogin = parsed
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints. It is called by Load and again
// after command-line overrides are applied.
func (c *Config) Validate() error {
	if c.KeySource == KeySourceEnv && strings.TrimSpace(c.SecretKey) == "" {
		return fmt.Errorf("CREDVAULT_SECRET_KEY is required when the key source is %q", KeySourceEnv)
	}
	if c.DBPath == "" {
		return fmt.Errorf("database path must not be empty")
	}
	return nil
}

// ParseKeySource converts a string to a KeySource.
func ParseKeySource(s string) (KeySource, error) {
	switch KeySource(strings.ToLower(strings.TrimSpace(s))) {
	case KeySourceFile:
		return KeySourceFile, nil
	case KeySourcePassphrase:
		return KeySourcePassphrase, nil
	case KeySourceEnv:
		return KeySourceEnv, nil
	default:
		return "", fmt.Errorf("unknown key source %q (want file, passphrase or env)", s)
	}
}
