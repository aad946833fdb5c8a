// Package config loads console configuration from config/console.yaml with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the console configuration.
type Config struct {
	// Endpoints are candidate backend base URLs, probed in order. The
	// first entry is the production origin and the last-resort default.
	Endpoints []string `yaml:"endpoints"`
	// StatePath is the JSON file holding the persisted endpoint and
	// credential pair.
	StatePath string `yaml:"state_path"`
	// Listen is the local console gateway address.
	Listen string `yaml:"listen"`
	// RequestTimeout bounds each backend call.
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// ProbeInterval paces endpoint probes.
	ProbeInterval time.Duration `yaml:"probe_interval"`
}

// LoadConfig loads configuration from config/console.yaml.
func LoadConfig() (*Config, error) {
	return LoadConfigFromPath(filepath.Join("config", "console.yaml"))
}

// LoadConfigFromPath loads configuration from a specific path.
func LoadConfigFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read console config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse console config: %w", err)
	}
	cfg.applyEnv()

	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("at least one endpoint is required")
	}
	return cfg, nil
}

// LoadConfigOrDefault loads configuration or returns defaults if the file is
// not found.
func LoadConfigOrDefault(path string) *Config {
	if path == "" {
		path = filepath.Join("config", "console.yaml")
	}
	cfg, err := LoadConfigFromPath(path)
	if err != nil {
		cfg = DefaultConfig()
		cfg.applyEnv()
	}
	return cfg
}

// DefaultConfig returns the built-in candidate list and paths: production
// origin first, then local development origins.
func DefaultConfig() *Config {
	return &Config{
		Endpoints: []string{
			"https://ref-backend-8arb.onrender.com/api",
			"http://localhost:8000/api",
			"http://127.0.0.1:8000/api",
		},
		StatePath:      defaultStatePath(),
		Listen:         "127.0.0.1:8990",
		RequestTimeout: 30 * time.Second,
		ProbeInterval:  200 * time.Millisecond,
	}
}

// applyEnv overlays environment variables on the loaded configuration.
func (c *Config) applyEnv() {
	if v := os.Getenv("ADMIN_API_BASE"); v != "" {
		// A single env-provided base takes candidate priority.
		c.Endpoints = append([]string{v}, c.Endpoints...)
	}
	if v := os.Getenv("ADMIN_STATE_PATH"); v != "" {
		c.StatePath = v
	}
	if v := os.Getenv("ADMIN_LISTEN"); v != "" {
		c.Listen = v
	}
}

func defaultStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".adminconsole/state.json"
	}
	return filepath.Join(home, ".adminconsole", "state.json")
}
