package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.yaml")
	content := `
endpoints:
  - https://staging.example.com/api
  - http://localhost:8000/api
listen: "127.0.0.1:9000"
request_timeout: 10s
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFromPath(path)
	if err != nil {
		t.Fatalf("LoadConfigFromPath() error = %v", err)
	}

	if len(cfg.Endpoints) != 2 {
		t.Fatalf("Endpoints = %v, want 2 entries", cfg.Endpoints)
	}
	if cfg.Endpoints[0] != "https://staging.example.com/api" {
		t.Errorf("Endpoints[0] = %q", cfg.Endpoints[0])
	}
	if cfg.Listen != "127.0.0.1:9000" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.RequestTimeout != 10*time.Second {
		t.Errorf("RequestTimeout = %v, want 10s", cfg.RequestTimeout)
	}
	// Unset fields keep defaults.
	if cfg.StatePath == "" {
		t.Error("StatePath default missing")
	}
}

func TestLoadConfigOrDefault_MissingFile(t *testing.T) {
	cfg := LoadConfigOrDefault(filepath.Join(t.TempDir(), "nope.yaml"))

	if len(cfg.Endpoints) == 0 {
		t.Fatal("default Endpoints empty")
	}
	if cfg.Endpoints[0] != "https://ref-backend-8arb.onrender.com/api" {
		t.Errorf("Endpoints[0] = %q, want production origin first", cfg.Endpoints[0])
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("ADMIN_API_BASE", "http://localhost:9999/api")
	t.Setenv("ADMIN_LISTEN", "127.0.0.1:7777")

	cfg := LoadConfigOrDefault(filepath.Join(t.TempDir(), "nope.yaml"))

	if cfg.Endpoints[0] != "http://localhost:9999/api" {
		t.Errorf("Endpoints[0] = %q, want env-provided base first", cfg.Endpoints[0])
	}
	if cfg.Listen != "127.0.0.1:7777" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
}
