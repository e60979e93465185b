// Package config loads the optional YAML run configuration for the migrate
// command.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config mirrors the migrate command's flags. Zero values mean "not set".
type Config struct {
	Schema          string   `yaml:"schema"`
	Source          string   `yaml:"source"`
	PGDSN           string   `yaml:"pg_dsn"`
	PGSchema        string   `yaml:"pg_schema"`
	Collections     []string `yaml:"collections"`
	Limit           int      `yaml:"limit"`
	ShowCreates     bool     `yaml:"show_creates"`
	ShowFirstInsert bool     `yaml:"show_first_insert"`
	Debug           bool     `yaml:"debug"`
}

// Load reads a run configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a run configuration. Unknown keys are rejected; an empty
// document yields the zero Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that no flag could have produced.
func (c *Config) Validate() error {
	if c.Limit < 0 {
		return fmt.Errorf("limit must not be negative, got %d", c.Limit)
	}
	for i, name := range c.Collections {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("collections[%d] is empty", i)
		}
	}
	return nil
}
