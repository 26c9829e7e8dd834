// Package config loads the process configuration: data-source connection
// settings and pipeline sizing. Precedence, highest to lowest: flags, then
// environment variables, then the config file, then defaults.
package config

import (
	"fmt"
	"strings"

	"github.com/rubeniskov/ripel/internal/source"
)

// Default configuration values.
const (
	DefaultEnvironment = "dev"
	DefaultSourceType  = "sqlite"
	DefaultWorkers     = 4
	DefaultBuffer      = 64
)

// SourceConfig holds the data-source connection settings.
type SourceConfig struct {
	Type     string            `koanf:"type"`
	Path     string            `koanf:"path"`
	Host     string            `koanf:"host"`
	Port     int               `koanf:"port"`
	Database string            `koanf:"database"`
	User     string            `koanf:"user"`
	Password string            `koanf:"password"`
	Options  map[string]string `koanf:"options"`
}

// ToSource converts to the adapter connection config.
func (s *SourceConfig) ToSource() source.Config {
	return source.Config{
		Type:     s.Type,
		Path:     s.Path,
		Host:     s.Host,
		Port:     s.Port,
		Database: s.Database,
		Username: s.User,
		Password: s.Password,
		Options:  s.Options,
	}
}

// Validate checks the source settings against the adapter registry.
func (s *SourceConfig) Validate() error {
	if s.Type == "" {
		return fmt.Errorf("source type is required")
	}
	if !source.IsRegistered(strings.ToLower(s.Type)) {
		return &source.UnknownSourceError{Type: s.Type, Available: source.List()}
	}
	return nil
}

// PipelineConfig sizes the event pipeline.
type PipelineConfig struct {
	// Workers is the number of concurrent event processors.
	Workers int `koanf:"workers"`
	// Buffer is the event channel capacity.
	Buffer int `koanf:"buffer"`
}

// Validate checks pipeline sizing.
func (p *PipelineConfig) Validate() error {
	if p.Workers < 1 {
		return fmt.Errorf("pipeline workers must be at least 1, got %d", p.Workers)
	}
	if p.Buffer < 1 {
		return fmt.Errorf("pipeline buffer must be at least 1, got %d", p.Buffer)
	}
	return nil
}

// Config is the full process configuration.
type Config struct {
	Environment string         `koanf:"environment"`
	Verbose     bool           `koanf:"verbose"`
	Source      SourceConfig   `koanf:"source"`
	Pipeline    PipelineConfig `koanf:"pipeline"`
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	if err := c.Source.Validate(); err != nil {
		return err
	}
	return c.Pipeline.Validate()
}
