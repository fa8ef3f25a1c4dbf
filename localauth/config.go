package localauth

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// ServiceConfig is the per-service configuration structure.
type ServiceConfig struct {
	// PasswdFile is the path to the credential file, relative to the
	// service directory unless absolute. Defaults to "passwd".
	PasswdFile string `toml:"passwd_file"`

	// Environment seeds the transaction's service-side environment, the
	// way an environment policy module would.
	Environment map[string]string `toml:"environment"`

	// Options contains backend-specific settings.
	Options map[string]string `toml:"options"`
}

// mergeConfig returns a new ServiceConfig with base values overridden by
// non-zero values from override. Fields absent in override retain the base
// value.
func mergeConfig(base, override ServiceConfig) ServiceConfig {
	result := base
	if override.PasswdFile != "" {
		result.PasswdFile = override.PasswdFile
	}
	if len(override.Environment) > 0 {
		result.Environment = override.Environment
	}
	if len(override.Options) > 0 {
		result.Options = override.Options
	}
	return result
}

// LoadServiceConfig reads and parses a service configuration file.
func LoadServiceConfig(path string) (*ServiceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg ServiceConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}
