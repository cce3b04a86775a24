package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/tsawler/metricate/internal/logging"
	"github.com/tsawler/metricate/settings"
)

//go:embed sample_config.toml
var sampleConfig string

// Settings backends.
const (
	BackendTOML   = "toml"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Settings selects where the enabled and smartRounding options persist.
type Settings struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
}

// Server configures the control channel listener.
type Server struct {
	Addr         string `toml:"addr"`
	Path         string `toml:"path"`
	MaxFrameSize int64  `toml:"max_frame_size"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Engine holds conversion defaults used when no stored setting applies.
type Engine struct {
	SmartRoundingDefault bool `toml:"smart_rounding_default"`
}

// Config encapsulates all configuration values for metricate.
type Config struct {
	Settings Settings `toml:"settings"`
	Server   Server   `toml:"server"`
	Logging  Logging  `toml:"logging"`
	Engine   Engine   `toml:"engine"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Settings: Settings{Backend: BackendTOML},
		Server: Server{
			Addr:         "127.0.0.1:7391",
			Path:         "/control",
			MaxFrameSize: 1 << 20,
		},
		Logging: Logging{Format: "console", Level: "info"},
	}
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/metricate/config.toml")
}

// Load locates, parses, and validates a configuration file. An empty path
// searches the default location and then ./metricate.toml. The returned
// config has its paths expanded.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("metricate.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// applyEnv lets the environment override a few values from the file.
func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv("METRICATE_LOG_LEVEL"); ok && strings.TrimSpace(v) != "" {
		c.Logging.Level = v
	}
	if v, ok := os.LookupEnv("METRICATE_SETTINGS"); ok && strings.TrimSpace(v) != "" {
		c.Settings.Path = v
	}
}

// Normalize trims values, fills backend-specific default paths and expands
// "~" in paths.
func (c *Config) Normalize() error {
	c.Settings.Backend = strings.ToLower(strings.TrimSpace(c.Settings.Backend))
	if c.Settings.Backend == "" {
		c.Settings.Backend = BackendTOML
	}
	c.Settings.Path = strings.TrimSpace(c.Settings.Path)
	if c.Settings.Path == "" {
		switch c.Settings.Backend {
		case BackendTOML:
			c.Settings.Path = "~/.config/metricate/settings.toml"
		case BackendSQLite:
			c.Settings.Path = "~/.local/share/metricate/settings.db"
		}
	}
	if c.Settings.Backend != BackendMemory && c.Settings.Path != ":memory:" {
		expanded, err := expandPath(c.Settings.Path)
		if err != nil {
			return fmt.Errorf("settings path: %w", err)
		}
		c.Settings.Path = expanded
	}

	c.Server.Addr = strings.TrimSpace(c.Server.Addr)
	c.Server.Path = strings.TrimSpace(c.Server.Path)
	if c.Server.Path == "" {
		c.Server.Path = "/control"
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}

// Validate reports the first invalid value.
func (c *Config) Validate() error {
	switch c.Settings.Backend {
	case BackendTOML, BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("settings.backend: unsupported value %q", c.Settings.Backend)
	}
	if c.Server.Addr == "" {
		return errors.New("server.addr must be set")
	}
	if !strings.HasPrefix(c.Server.Path, "/") {
		return fmt.Errorf("server.path must start with /: %q", c.Server.Path)
	}
	if c.Server.MaxFrameSize < 0 {
		return fmt.Errorf("server.max_frame_size must not be negative: %d", c.Server.MaxFrameSize)
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

// DefaultSettings returns the settings a fresh store starts from.
func (c *Config) DefaultSettings() settings.Settings {
	s := settings.Default()
	s.SmartRounding = c.Engine.SmartRoundingDefault
	return s
}

// OpenStore opens the configured settings backend.
func (c *Config) OpenStore(ctx context.Context) (settings.Store, error) {
	switch c.Settings.Backend {
	case BackendMemory:
		return settings.NewMemory(c.DefaultSettings()), nil
	case BackendSQLite:
		store, err := settings.OpenSQL(ctx, c.Settings.Path)
		if err != nil {
			return nil, err
		}
		store.Defaults = c.DefaultSettings()
		return store, nil
	default:
		store, err := settings.NewFileStore(c.Settings.Path)
		if err != nil {
			return nil, err
		}
		store.Defaults = c.DefaultSettings()
		return store, nil
	}
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
