// Package config loads tool configuration from a YAML file, with sensible
// defaults when no file exists.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds filesystem locations for the tool.
type Config struct {
	DataDir      string `yaml:"data_dir"`
	DatabasePath string `yaml:"database_path"`
	ImportsDir   string `yaml:"imports_dir"`
	SeedFile     string `yaml:"seed_file"` // optional; empty means built-in seed data
}

// Default returns the default configuration rooted under the user home
// directory.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	dataDir := filepath.Join(home, ".fintally")
	return &Config{
		DataDir:      dataDir,
		DatabasePath: filepath.Join(dataDir, "fintally.db"),
		ImportsDir:   filepath.Join(dataDir, "imports"),
	}
}

// Load reads configuration from path. A missing file yields the defaults;
// a present but malformed file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to path, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	raw, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}

// EnsureDirs creates the data and imports directories.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.DataDir, c.ImportsDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	return nil
}
