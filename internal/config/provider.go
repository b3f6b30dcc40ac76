package config

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Provider supplies the active configuration. GetConfig returns a cached
// value unless forceRefresh is set or nothing has been loaded yet.
type Provider interface {
	GetConfig(forceRefresh bool) (*AppConfig, error)
}

// FileProvider loads configuration from a YAML file and caches the parsed,
// validated result. Safe for concurrent use.
type FileProvider struct {
	path string

	mu     sync.Mutex
	cached *AppConfig
}

// NewFileProvider returns a provider reading from the given path. The file is
// not read until the first GetConfig call.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

// GetConfig implements Provider.
func (p *FileProvider) GetConfig(forceRefresh bool) (*AppConfig, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != nil && !forceRefresh {
		return p.cached, nil
	}

	raw, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", p.path, err)
	}

	var cfg AppConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", p.path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p.cached = &cfg
	return p.cached, nil
}

// Static wraps an already-built AppConfig as a Provider. Used by tests and by
// callers that assemble configuration programmatically.
type Static struct {
	Config *AppConfig
	Err    error
}

// GetConfig implements Provider.
func (s Static) GetConfig(bool) (*AppConfig, error) {
	return s.Config, s.Err
}
