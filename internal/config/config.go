// Package config loads the dashboard's configuration file and fills in
// defaults for anything the file leaves out.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultLimit caps the items fetched per stage when nothing else is set.
const DefaultLimit = 50

// DefaultServer is the triage service's usual local address.
const DefaultServer = "http://127.0.0.1:3000"

// Config is the on-disk configuration. All fields are optional.
type Config struct {
	// Server is the base URL of the triage service.
	Server string `yaml:"server"`
	// Limit caps the items fetched per stage.
	Limit int `yaml:"limit"`
	// StorePath is where the hidden-item list lives.
	StorePath string `yaml:"store_path"`
}

// Load reads the YAML file at path. A missing file yields a default
// config; a malformed file is an error.
func Load(path string) (*Config, error) {
	var cfg Config

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// No config file is the common case.
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server == "" {
		c.Server = DefaultServer
	}
	if c.Limit <= 0 {
		c.Limit = DefaultLimit
	}
	if c.StorePath == "" {
		c.StorePath = filepath.Join(configDir(), "hidden.json")
	}
}

// DefaultPath returns the config file location, e.g.
// ~/.config/prdeck/config.yaml.
func DefaultPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

func configDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		// No home directory: fall back to the working directory.
		return ".prdeck"
	}
	return filepath.Join(dir, "prdeck")
}
