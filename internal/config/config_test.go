package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	// Point at an empty directory so no config file is found.
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir() failed: %v", err)
	}
	defer os.Chdir(cwd)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Daemon.URL != "http://127.0.0.1:8384" {
		t.Errorf("Daemon.URL = %q", cfg.Daemon.URL)
	}
	if cfg.Cache.TTL != 30*time.Second {
		t.Errorf("Cache.TTL = %v, want 30s", cfg.Cache.TTL)
	}
	if cfg.Dashboard.Port != 8385 {
		t.Errorf("Dashboard.Port = %d, want 8385", cfg.Dashboard.Port)
	}
	if !cfg.Watch.Enabled {
		t.Error("Watch.Enabled should default to true")
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
daemon:
  url: http://sync.local:8384
  api_key: secret
cache:
  ttl: 45s
folders:
  - id: docs
    root: /srv/docs
  - id: photos
    root: /srv/photos
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Daemon.URL != "http://sync.local:8384" {
		t.Errorf("Daemon.URL = %q", cfg.Daemon.URL)
	}
	if cfg.Daemon.APIKey != "secret" {
		t.Errorf("Daemon.APIKey = %q", cfg.Daemon.APIKey)
	}
	if cfg.Cache.TTL != 45*time.Second {
		t.Errorf("Cache.TTL = %v, want 45s", cfg.Cache.TTL)
	}
	if len(cfg.Folders) != 2 || cfg.Folders[1].ID != "photos" {
		t.Errorf("Folders = %+v", cfg.Folders)
	}
	// Unset keys still get defaults.
	if cfg.Daemon.PageSize != 100 {
		t.Errorf("Daemon.PageSize = %d, want 100", cfg.Daemon.PageSize)
	}
}

func TestLoad_BadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("daemon: [not a map"), 0644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Load() should fail on malformed YAML")
	}
}
