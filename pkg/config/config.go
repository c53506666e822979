// Package config loads hookscope.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI and daemon look for the config file.
const DefaultPath = "~/.config/hookscope/hookscope.yaml"

// Config represents a hookscope.yaml configuration file.
type Config struct {
	Version         int           `yaml:"version"           json:"version"`
	LogDir          string        `yaml:"log_dir"           json:"log_dir"`
	Socket          string        `yaml:"socket"            json:"socket"`
	PollInterval    time.Duration `yaml:"poll_interval"     json:"poll_interval"`
	ErrorBackoff    time.Duration `yaml:"error_backoff"     json:"error_backoff"`
	DirScanInterval time.Duration `yaml:"dir_scan_interval" json:"dir_scan_interval"`
	DefaultLimit    int           `yaml:"default_limit"     json:"default_limit"`
	DetailLimit     int           `yaml:"detail_limit"      json:"detail_limit"`
	LogLevel        string        `yaml:"log_level"         json:"log_level"`
	LogFormat       string        `yaml:"log_format"        json:"log_format"`

	// FilePath is the file the config was loaded from, if any.
	FilePath string `yaml:"-" json:"-"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version:         1,
		LogDir:          "/tmp/claude-hooks-debug",
		Socket:          "/tmp/hookscope.sock",
		PollInterval:    500 * time.Millisecond,
		ErrorBackoff:    time.Second,
		DirScanInterval: 2 * time.Second,
		DefaultLimit:    100,
		DetailLimit:     1000,
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// Load reads the config at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	resolved, err := ExpandPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			cfg.FilePath = resolved
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", resolved, err)
	}
	cfg.FilePath = resolved
	return cfg, nil
}

// Parse decodes YAML over the defaults and expands paths. Keys not present
// keep their default values.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.interpolate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as YAML, creating parent directories.
func Save(cfg *Config, path string) error {
	resolved, err := ExpandPath(path)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(resolved, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// interpolate expands ~, environment variables and ${log_dir} in path
// fields. log_dir is expanded first so the socket may live under it.
func (c *Config) interpolate() error {
	dir, err := expand(c.LogDir, nil)
	if err != nil {
		return fmt.Errorf("log_dir: %w", err)
	}
	c.LogDir = dir

	vars := map[string]string{"log_dir": c.LogDir}
	sock, err := expand(c.Socket, vars)
	if err != nil {
		return fmt.Errorf("socket: %w", err)
	}
	c.Socket = sock
	return nil
}

// ExpandPath resolves ~ and environment variables in path.
func ExpandPath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath
	}
	return expand(path, nil)
}

func expand(path string, vars map[string]string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	trimmed = os.Expand(trimmed, func(key string) string {
		if v, ok := vars[key]; ok {
			return v
		}
		return os.Getenv(key)
	})
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return trimmed, nil
}
