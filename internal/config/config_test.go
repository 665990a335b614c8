package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, _, exists, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if cfg.Sync.DrainIntervalSeconds != 30 {
		t.Fatalf("expected default drain interval 30, got %d", cfg.Sync.DrainIntervalSeconds)
	}
	if cfg.Storage.KeepRecentNotes != 20 {
		t.Fatalf("expected default retention 20, got %d", cfg.Storage.KeepRecentNotes)
	}
	if !filepath.IsAbs(cfg.Paths.DataDir) {
		t.Fatalf("expected expanded data dir, got %q", cfg.Paths.DataDir)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"

[inference]
base_url = "https://inference.example.com/v2/"
timeout_seconds = 5

[sync]
max_retries = 5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected resolved existing path %q, got %q exists=%v", path, resolved, exists)
	}
	if cfg.Inference.BaseURL != "https://inference.example.com/v2" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Inference.BaseURL)
	}
	if cfg.Sync.MaxRetries != 5 {
		t.Fatalf("expected max_retries 5, got %d", cfg.Sync.MaxRetries)
	}
	if cfg.Sync.ProbeURL != cfg.Inference.BaseURL {
		t.Fatalf("expected probe URL to default to base URL, got %q", cfg.Sync.ProbeURL)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty base url", func(c *Config) { c.Inference.BaseURL = "" }, "inference.base_url"},
		{"zero drain interval", func(c *Config) { c.Sync.DrainIntervalSeconds = 0 }, "sync.drain_interval"},
		{"zero retries", func(c *Config) { c.Sync.MaxRetries = 0 }, "sync.max_retries"},
		{"negative budget", func(c *Config) { c.Storage.BudgetBytes = -1 }, "storage.budget_bytes"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[inference]") {
		t.Fatal("expected sample to contain inference section")
	}
}
