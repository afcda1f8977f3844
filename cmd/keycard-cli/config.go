package main

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the optional YAML configuration of the CLI. Flags override it.
type Config struct {
	// Reader is the preferred reader name. Empty means the first reader
	// found.
	Reader string `yaml:"reader"`

	// PairingStore is the path of the JSON file pairing records are kept
	// in.
	PairingStore string `yaml:"pairing_store"`

	// LogLevel is one of error, warn, info, debug, trace.
	LogLevel string `yaml:"log_level"`
}

func defaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	return &Config{
		PairingStore: filepath.Join(home, ".keycard-cli", "pairings.json"),
		LogLevel:     "info",
	}
}

// LoadConfig reads the YAML config at path, falling back to defaults when
// the file does not exist.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}

		return nil, err
	}

	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
