package config_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"github.com/tsawler/metricate/internal/config"
	"github.com/tsawler/metricate/settings"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if resolved != filepath.Join(tempHome, ".config", "metricate", "config.toml") {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	want := filepath.Join(tempHome, ".config", "metricate", "settings.toml")
	if cfg.Settings.Path != want {
		t.Fatalf("unexpected settings path: got %q want %q", cfg.Settings.Path, want)
	}
	if cfg.Server.Addr != "127.0.0.1:7391" || cfg.Server.Path != "/control" {
		t.Fatalf("unexpected server defaults: %+v", cfg.Server)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "console" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[settings]
backend = "SQLite"

[server]
addr = ":9000"

[logging]
level = "debug"
format = "json"

[engine]
smart_rounding_default = true
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected %q to be found, got %q exists=%v", path, resolved, exists)
	}
	if cfg.Settings.Backend != config.BackendSQLite {
		t.Errorf("backend = %q", cfg.Settings.Backend)
	}
	if !strings.HasSuffix(cfg.Settings.Path, filepath.Join("metricate", "settings.db")) {
		t.Errorf("sqlite default path = %q", cfg.Settings.Path)
	}
	if cfg.Server.Addr != ":9000" || cfg.Server.Path != "/control" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if !cfg.DefaultSettings().SmartRounding || !cfg.DefaultSettings().Enabled {
		t.Errorf("DefaultSettings() = %+v", cfg.DefaultSettings())
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[server]\nport = 80\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("METRICATE_LOG_LEVEL", "warn")
	t.Setenv("METRICATE_SETTINGS", "~/custom.toml")

	cfg, _, _, err := config.Load(filepath.Join(dir, "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("level = %q", cfg.Logging.Level)
	}
	if cfg.Settings.Path != filepath.Join(dir, "custom.toml") {
		t.Errorf("settings path = %q", cfg.Settings.Path)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"backend", func(c *config.Config) { c.Settings.Backend = "redis" }},
		{"addr", func(c *config.Config) { c.Server.Addr = "" }},
		{"path", func(c *config.Config) { c.Server.Path = "control" }},
		{"frame", func(c *config.Config) { c.Server.MaxFrameSize = -1 }},
		{"format", func(c *config.Config) { c.Logging.Format = "xml" }},
		{"level", func(c *config.Config) { c.Logging.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	for _, backend := range []string{config.BackendTOML, config.BackendSQLite, config.BackendMemory} {
		t.Run(backend, func(t *testing.T) {
			cfg := config.Default()
			cfg.Settings.Backend = backend
			cfg.Settings.Path = filepath.Join(dir, backend, "settings")
			store, err := cfg.OpenStore(ctx)
			if err != nil {
				t.Fatalf("OpenStore failed: %v", err)
			}
			defer store.Close()

			want := settings.Settings{Enabled: false, SmartRounding: true}
			if err := store.Save(ctx, want); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			if got, _ := store.Load(ctx); got != want {
				t.Errorf("Load = %+v, want %+v", got, want)
			}
		})
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if cfg.Settings.Backend != config.BackendTOML || cfg.Server.Addr == "" {
		t.Fatalf("unexpected sample values: %+v", cfg)
	}
}
