package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the pamctl configuration structure.
type Config struct {
	// BasePath is the directory holding per-service configuration for the
	// local backend.
	BasePath string `toml:"base_path"`

	// Backend is the pam backend name used for transactions.
	Backend string `toml:"backend"`

	// Token configures session token issuance for `session --token`.
	Token TokenConfig `toml:"token"`
}

// TokenConfig holds session token settings.
type TokenConfig struct {
	// Secret is the shared HS256 signing secret.
	Secret string `toml:"secret"`

	// Issuer is the issuer name embedded in minted tokens.
	Issuer string `toml:"issuer"`

	// TTL is the token lifetime as a duration string (e.g. "5m").
	TTL string `toml:"ttl"`
}

// defaultConfig returns the configuration used when no config file exists.
func defaultConfig() Config {
	return Config{
		BasePath: "/etc/localauth",
		Backend:  "local",
		Token:    TokenConfig{Issuer: "pamctl"},
	}
}

// loadConfig reads the configuration file at path, falling back to defaults
// when path is empty or the file does not exist.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Backend == "" {
		cfg.Backend = "local"
	}
	return cfg, nil
}

// tokenTTL parses the configured token lifetime. Zero means "use the
// issuer's default".
func (c Config) tokenTTL() (time.Duration, error) {
	if c.Token.TTL == "" {
		return 0, nil
	}
	ttl, err := time.ParseDuration(c.Token.TTL)
	if err != nil {
		return 0, fmt.Errorf("parse token ttl: %w", err)
	}
	return ttl, nil
}
