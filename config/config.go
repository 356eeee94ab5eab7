// Package config resolves the plugin host's data layout and settings.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Directory and file names of the data layout.
const (
	AppName            = "STranslate"
	PortableFolderName = "PortableConfig"
	PluginsFolder      = "Plugins"
	SettingsFolder     = "Settings"
	CacheFolder        = "Cache"
	FileName           = "plugin-host.yaml"
)

// Environment variables consulted by Load.
const (
	EnvDataDir    = "STRANSLATE_DATA_DIR"
	EnvLocale     = "STRANSLATE_LOCALE"
	EnvLogLevel   = "STRANSLATE_LOG_LEVEL"
	EnvHTTPProxy  = "STRANSLATE_HTTP_PROXY"
	EnvPreinstall = "STRANSLATE_PREINSTALLED_DIR"
	EnvHTTPRetry  = "STRANSLATE_HTTP_MAX_RETRIES"
)

// HTTPConfig configures the HTTP facility handed to plugins.
type HTTPConfig struct {
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	Proxy          string        `yaml:"proxy"`
	UserAgent      string        `yaml:"user_agent"`
	MaxBodySize    int64         `yaml:"max_body_size"`
}

// Config is the plugin host configuration. Empty directories are derived
// from DataDir by Resolve.
type Config struct {
	DataDir         string     `yaml:"data_dir"`
	PreinstalledDir string     `yaml:"preinstalled_dir"`
	PluginsDir      string     `yaml:"plugins_dir"`
	SettingsDir     string     `yaml:"settings_dir"`
	CacheDir        string     `yaml:"cache_dir"`
	TempDir         string     `yaml:"temp_dir"`
	PreinstalledIDs []string   `yaml:"preinstalled_ids"`
	Locale          string     `yaml:"locale"`
	LogLevel        string     `yaml:"log_level"`
	HTTP            HTTPConfig `yaml:"http"`
}

// Default returns the configuration for a program installed in programDir.
func Default(programDir string) Config {
	return Config{
		DataDir:         DataDirectory(programDir),
		PreinstalledDir: filepath.Join(programDir, PluginsFolder),
		Locale:          "en",
		LogLevel:        "info",
		HTTP: HTTPConfig{
			Timeout:        30 * time.Second,
			MaxRetries:     3,
			InitialBackoff: time.Second,
			UserAgent:      AppName,
			MaxBodySize:    10 * 1024 * 1024,
		},
	}
}

// DataDirectory returns programDir/PortableConfig when it exists, otherwise
// the per-user configuration directory.
func DataDirectory(programDir string) string {
	portable := filepath.Join(programDir, PortableFolderName)
	if info, err := os.Stat(portable); err == nil && info.IsDir() {
		return portable
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, AppName)
	}
	return portable
}

// IsPortable reports whether the data directory is the portable one.
func (c Config) IsPortable(programDir string) bool {
	return filepath.Clean(c.DataDir) == filepath.Join(programDir, PortableFolderName)
}

// Load builds the configuration: defaults, then the YAML file in the data
// directory if present, then environment overrides. Paths are resolved last.
func Load(programDir string) (Config, error) {
	cfg := Default(programDir)
	if dir, ok := os.LookupEnv(EnvDataDir); ok && dir != "" {
		cfg.DataDir = dir
	}

	if err := cfg.mergeFile(filepath.Join(cfg.DataDir, FileName)); err != nil {
		return Config{}, err
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	cfg.Resolve()
	return cfg, cfg.Validate()
}

// LoadFile reads a configuration file over the defaults, applies environment
// overrides and resolves paths.
func LoadFile(programDir, path string) (Config, error) {
	cfg := Default(programDir)
	if err := cfg.mergeFile(path); err != nil {
		return Config{}, err
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	cfg.Resolve()
	return cfg, cfg.Validate()
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv(EnvDataDir); ok && v != "" {
		c.DataDir = v
	}
	if v, ok := os.LookupEnv(EnvLocale); ok && v != "" {
		c.Locale = v
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := os.LookupEnv(EnvHTTPProxy); ok {
		c.HTTP.Proxy = v
	}
	if v, ok := os.LookupEnv(EnvPreinstall); ok && v != "" {
		c.PreinstalledDir = v
	}
	if v, ok := os.LookupEnv(EnvHTTPRetry); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvHTTPRetry, err)
		}
		c.HTTP.MaxRetries = n
	}
	return nil
}

// Resolve fills empty directories from DataDir.
func (c *Config) Resolve() {
	if c.PluginsDir == "" {
		c.PluginsDir = filepath.Join(c.DataDir, PluginsFolder)
	}
	if c.SettingsDir == "" {
		c.SettingsDir = filepath.Join(c.DataDir, SettingsFolder, PluginsFolder)
	}
	if c.CacheDir == "" {
		c.CacheDir = filepath.Join(c.DataDir, CacheFolder, PluginsFolder)
	}
}

// Validate checks that the layout is usable.
func (c Config) Validate() error {
	var errs []error
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is empty"))
	}
	if c.PreinstalledDir == "" {
		errs = append(errs, errors.New("preinstalled_dir is empty"))
	}
	if c.PreinstalledDir != "" && filepath.Clean(c.PreinstalledDir) == filepath.Clean(c.PluginsDir) {
		errs = append(errs, errors.New("preinstalled_dir and plugins_dir must differ"))
	}
	if c.HTTP.MaxRetries < 0 {
		errs = append(errs, errors.New("http.max_retries must not be negative"))
	}
	return errors.Join(errs...)
}

// SlogLevel parses LogLevel, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// Save writes the configuration to path as YAML.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
