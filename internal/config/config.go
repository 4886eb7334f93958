// Package config resolves tool settings from .apigovern.yaml, falling back
// to defaults that match the repository layout conventions.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rideflow/apigovern/internal/rules"
)

// DefaultPath is where the tool looks for configuration when no explicit
// path is given.
const DefaultPath = ".apigovern.yaml"

type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error (%s): %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

type ScanConfig struct {
	Roots           []string `yaml:"roots"`
	ExcludePatterns []string `yaml:"exclude_patterns"`
}

type WatchConfig struct {
	DebounceWindow time.Duration `yaml:"debounce_window"`
	MaxBatchSize   int           `yaml:"max_batch_size"`
	IgnorePatterns []string      `yaml:"ignore_patterns"`
}

type Config struct {
	SpecPath      string             `yaml:"spec_path"`
	AllowlistPath string             `yaml:"allowlist_path"`
	TestedPath    string             `yaml:"tested_path"`
	IgnorePath    string             `yaml:"ignore_path"`
	CeilingPath   string             `yaml:"ceiling_path"`
	HistoryDBPath string             `yaml:"history_db_path"`
	SocketPath    string             `yaml:"socket_path"`
	Cap           int                `yaml:"cap"`
	LogLevel      string             `yaml:"log_level"`
	Scan          ScanConfig         `yaml:"scan"`
	Rules         []rules.Definition `yaml:"rules"`
	Watch         WatchConfig        `yaml:"watch"`
}

func Default() *Config {
	return &Config{
		SpecPath:      "openapi.yaml",
		AllowlistPath: "api-allowlist.txt",
		TestedPath:    "api-smoke-tested.txt",
		IgnorePath:    "api-drift-ignore.txt",
		CeilingPath:   ".apigovern/stub-budget",
		HistoryDBPath: ".apigovern/history.db",
		SocketPath:    ".apigovern/daemon.sock",
		Cap:           3,
		LogLevel:      "warn",
		Scan: ScanConfig{
			Roots: []string{"frontend/src"},
			ExcludePatterns: []string{
				"**/node_modules/**",
				"**/dist/**",
				"**/build/**",
				"**/.git/**",
				"**/*.test.*",
				"**/*.spec.*",
			},
		},
		Watch: WatchConfig{
			DebounceWindow: 300 * time.Millisecond,
			MaxBatchSize:   100,
			IgnorePatterns: []string{
				"**/.git/**",
				"**/node_modules/**",
				"**/*.tmp-*",
			},
		},
	}
}

// Load overlays the config file, when present, on top of the defaults. A
// missing file at the default path is fine; a missing file at an explicit
// path, or a malformed file anywhere, is a ConfigError.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return nil, &ConfigError{Path: path, Err: err}
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	if cfg.Cap <= 0 {
		cfg.Cap = 3
	}
	return cfg, nil
}
