// Package config loads the kdnn command configuration from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/viant/sqlite-kd/internal/kd/tree"
)

// Config describes the database, points table and search parameters of the kdnn command.
type Config struct {
	Database   string             `yaml:"database"`
	Source     string             `yaml:"source"`
	Dimensions []string           `yaml:"dimensions"`
	Weights    map[string]float64 `yaml:"weights,omitempty"`
	Radius     float64            `yaml:"radius"`
	Parallel   int                `yaml:"parallel,omitempty"` // 0 uses GOMAXPROCS
	LogLevel   string             `yaml:"log_level,omitempty"`
}

const (
	DefaultDatabase = "kdnn.sqlite"
	DefaultSource   = "points"
	DefaultLogLevel = "info"
)

// LoadConfig reads and validates the configuration at path, defaulting to kdnn.yaml.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = "kdnn.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database == "" {
		c.Database = DefaultDatabase
	}
	if c.Source == "" {
		c.Source = DefaultSource
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// Validate checks dimensions, weights and radius.
func (c *Config) Validate() error {
	dims, err := tree.NewDimensions(c.Dimensions...)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := tree.Weights(c.Weights).Resolve(dims); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if !(c.Radius > 0) {
		return fmt.Errorf("config: %w: radius %v", tree.ErrInvalidDistance, c.Radius)
	}
	if c.Parallel < 0 {
		return fmt.Errorf("config: %w: parallel %d", tree.ErrInvalidConfiguration, c.Parallel)
	}
	return nil
}
