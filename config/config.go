// Package config loads the settings of the tally command from an optional
// YAML file, a .env file and the process environment, in that order of
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Web server
	Addr           string   `yaml:"addr"`
	JWTSecret      string   `yaml:"jwt_secret"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	// LedgerFile is the YAML ledger loaded into the in-memory store and
	// written back by serve.
	LedgerFile string `yaml:"ledger_file"`

	// Engine
	Tolerance            int64         `yaml:"tolerance"`
	AutoSimplify         bool          `yaml:"auto_simplify"`
	AutoSimplifyInterval time.Duration `yaml:"auto_simplify_interval"`
	LockTimeout          time.Duration `yaml:"lock_timeout"`

	LogLevel string `yaml:"log_level"`
}

// Default returns the settings used when nothing overrides them.
func Default() *Config {
	return &Config{
		Addr:                 "0.0.0.0:8080",
		JWTSecret:            "dev-only-change-me",
		AllowedOrigins:       []string{"*"},
		LedgerFile:           "ledger.yaml",
		AutoSimplifyInterval: 30 * time.Second,
		LockTimeout:          30 * time.Second,
		LogLevel:             "info",
	}
}

// Load reads path (skipped when it does not exist) and then applies
// environment overrides.
func Load(path string) (*Config, error) {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Addr, "TALLY_ADDR")
	setString(&c.JWTSecret, "TALLY_JWT_SECRET")
	setString(&c.LedgerFile, "TALLY_LEDGER_FILE")
	setString(&c.LogLevel, "TALLY_LOG_LEVEL")

	if v := os.Getenv("TALLY_ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("TALLY_TOLERANCE"); v != "" {
		tol, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("TALLY_TOLERANCE: %w", err)
		}
		c.Tolerance = tol
	}
	if v := os.Getenv("TALLY_AUTO_SIMPLIFY"); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TALLY_AUTO_SIMPLIFY: %w", err)
		}
		c.AutoSimplify = on
	}
	if v := os.Getenv("TALLY_AUTO_SIMPLIFY_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("TALLY_AUTO_SIMPLIFY_INTERVAL: %w", err)
		}
		c.AutoSimplifyInterval = d
	}
	return nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.Tolerance < 0 {
		return fmt.Errorf("tolerance must not be negative, got %d", c.Tolerance)
	}
	if c.AutoSimplify && c.AutoSimplifyInterval <= 0 {
		return fmt.Errorf("auto_simplify_interval must be positive, got %s", c.AutoSimplifyInterval)
	}
	if c.LockTimeout <= 0 {
		return fmt.Errorf("lock_timeout must be positive, got %s", c.LockTimeout)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
