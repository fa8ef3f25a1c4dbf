// Package localauth is a pure-Go authentication backend for pam. It
// implements the full primitive operation set against per-service credential
// files with argon2id-hashed secrets, giving programs real
// authenticate/session semantics on hosts where the system binding is
// unavailable, and tests a backend with observable state.
package localauth

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/infodancer/pam"
	pamerrors "github.com/infodancer/pam/errors"
)

// Provider starts transactions from a directory of per-service
// configurations. Each service has its own subdirectory. A per-service
// config.toml is optional when defaults are set via WithDefaults — any
// subdirectory is then a valid service, with config.toml values overriding
// the defaults when present.
//
// Directory structure:
//
//	/etc/localauth/
//	├── login/
//	│   ├── config.toml   (optional when defaults are set)
//	│   └── passwd
//	├── sshd/
//	│   └── passwd
type Provider struct {
	basePath string
	defaults *ServiceConfig
	cache    map[string]*ServiceConfig
	mu       sync.RWMutex
	logger   *slog.Logger
}

// NewProvider creates a new filesystem-based service provider.
func NewProvider(basePath string, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		basePath: basePath,
		cache:    make(map[string]*ServiceConfig),
		logger:   logger,
	}
}

// WithDefaults sets default service configuration values used when a
// service directory has no config.toml, or to fill in fields not present in
// it. Returns the provider to allow chaining.
func (p *Provider) WithDefaults(cfg ServiceConfig) *Provider {
	p.defaults = &cfg
	return p
}

// Register makes the provider available as a named pam backend.
func (p *Provider) Register(name string) {
	pam.RegisterBackend(name, p.Start)
}

// Start begins a transaction for the named service. It implements
// pam.StartFunc.
func (p *Provider) Start(service, user string, conv pam.Conversation) (pam.Transaction, error) {
	if conv == nil {
		return nil, fmt.Errorf("%w: nil conversation", pamerrors.ErrConfigInvalid)
	}
	cfg, err := p.serviceConfig(service)
	if err != nil {
		return nil, err
	}

	env := make(map[string]string, len(cfg.Environment))
	for k, v := range cfg.Environment {
		env[k] = v
	}

	p.logger.Debug("starting transaction", "service", service, "user", user)
	return &transaction{
		service: service,
		user:    user,
		passwd:  p.passwdPath(service, cfg),
		conv:    conv,
		env:     env,
		logger:  p.logger,
	}, nil
}

// UserLookup returns a pam.UserLookupFunc that resolves session users from
// the named service's credential file instead of the OS user database.
func (p *Provider) UserLookup(service string) pam.UserLookupFunc {
	return func(username string) (*pam.UserRecord, error) {
		cfg, err := p.serviceConfig(service)
		if err != nil {
			return nil, err
		}
		entry, err := findEntry(p.passwdPath(service, cfg), username)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			return nil, fmt.Errorf("user %q not found", username)
		}
		rec := &pam.UserRecord{Name: entry.Username, Home: entry.Home, Shell: entry.Shell}
		if rec.Shell == "" {
			rec.Shell = "/bin/sh"
		}
		return rec, nil
	}
}

// PasswdPath returns the credential file path for the named service, for
// management tooling that edits the file directly.
func (p *Provider) PasswdPath(service string) (string, error) {
	cfg, err := p.serviceConfig(service)
	if err != nil {
		return "", err
	}
	return p.passwdPath(service, cfg), nil
}

// serviceConfig loads, merges, and caches the configuration for a service.
func (p *Provider) serviceConfig(service string) (*ServiceConfig, error) {
	service = strings.ToLower(service)
	if service == "" || strings.ContainsAny(service, "/\x00") {
		return nil, fmt.Errorf("%w: invalid service name %q", pamerrors.ErrConfigInvalid, service)
	}

	p.mu.RLock()
	if cfg, ok := p.cache[service]; ok {
		p.mu.RUnlock()
		return cfg, nil
	}
	p.mu.RUnlock()

	serviceDir := filepath.Join(p.basePath, service)
	if _, err := os.Stat(serviceDir); err != nil {
		return nil, fmt.Errorf("%w: service %q: %v", pamerrors.ErrConfigInvalid, service, err)
	}

	cfg := ServiceConfig{PasswdFile: "passwd"}
	if p.defaults != nil {
		cfg = mergeConfig(cfg, *p.defaults)
	}

	configPath := filepath.Join(serviceDir, "config.toml")
	loaded, err := LoadServiceConfig(configPath)
	switch {
	case err == nil:
		cfg = mergeConfig(cfg, *loaded)
	case errors.Is(err, os.ErrNotExist):
		if p.defaults == nil {
			return nil, fmt.Errorf("%w: service %q has no config.toml and no defaults are set", pamerrors.ErrConfigInvalid, service)
		}
	default:
		return nil, err
	}

	p.mu.Lock()
	p.cache[service] = &cfg
	p.mu.Unlock()

	p.logger.Debug("loaded service config", "service", service, "passwd_file", cfg.PasswdFile)
	return &cfg, nil
}

// passwdPath resolves the credential file path for a service.
func (p *Provider) passwdPath(service string, cfg *ServiceConfig) string {
	if filepath.IsAbs(cfg.PasswdFile) {
		return cfg.PasswdFile
	}
	return filepath.Join(p.basePath, strings.ToLower(service), cfg.PasswdFile)
}
