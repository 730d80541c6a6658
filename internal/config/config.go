// Package config loads the dcc CLI configuration from YAML files and
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// OutputFormat selects how structuring results are rendered.
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// Config holds all configuration for the dcc CLI.
type Config struct {
	// Output selects the default rendering of structuring results.
	Output OutputFormat `yaml:"output" env:"DCC_OUTPUT"`

	// CacheDir is where memoized structuring results are persisted.
	CacheDir string `yaml:"cache_dir" env:"DCC_CACHE_DIR"`

	// CacheSize bounds the number of memoized procedures kept in the
	// result cache.
	CacheSize int `yaml:"cache_size" env:"DCC_CACHE_SIZE"`

	// NoCache disables result memoization entirely.
	NoCache bool `yaml:"no_cache" env:"DCC_NO_CACHE"`

	// Verbose enables debug logging.
	Verbose bool `yaml:"verbose" env:"DCC_VERBOSE"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Output:    FormatText,
		CacheDir:  defaultCacheDir(),
		CacheSize: 128,
		NoCache:   false,
		Verbose:   false,
	}
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".dcc/cache"
	}
	return filepath.Join(home, ".dcc", "cache")
}

// globalConfigFilePath returns the global config file path (~/.dcc/config.yaml)
func globalConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".dcc/config.yaml"
	}
	return filepath.Join(home, ".dcc", "config.yaml")
}

// projectConfigFilePath returns the project-level config file path (./.dcc/config.yaml)
func projectConfigFilePath() string {
	return ".dcc/config.yaml"
}

// Load reads configuration with the following priority (highest to lowest):
// 1. Environment variables
// 2. Project-level config (./.dcc/config.yaml)
// 3. Global config (~/.dcc/config.yaml)
// 4. Defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	globalConfigPath := globalConfigFilePath()
	if data, err := os.ReadFile(globalConfigPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", globalConfigPath, err)
		}
	}

	projectConfigPath := projectConfigFilePath()
	if data, err := os.ReadFile(projectConfigPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", projectConfigPath, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile reads configuration from a specific YAML file path.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	if data, err := os.ReadFile(path); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the specified YAML file path.
// It creates parent directories if they don't exist.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}

	return nil
}

// SaveProject writes the configuration to the project-level path.
func (c *Config) SaveProject() error {
	return c.Save(projectConfigFilePath())
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DCC_OUTPUT"); v != "" {
		cfg.Output = OutputFormat(v)
	}
	if v := os.Getenv("DCC_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv("DCC_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheSize = n
		}
	}
	if v := os.Getenv("DCC_NO_CACHE"); v != "" {
		cfg.NoCache = v == "1" || v == "true"
	}
	if v := os.Getenv("DCC_VERBOSE"); v != "" {
		cfg.Verbose = v == "1" || v == "true"
	}
}

// Validate checks the configuration for inconsistent values.
func (c *Config) Validate() error {
	switch c.Output {
	case FormatText, FormatJSON:
	default:
		return fmt.Errorf("invalid output format %q (use %q or %q)", c.Output, FormatText, FormatJSON)
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("cache_size must be positive, got %d", c.CacheSize)
	}
	if !c.NoCache && c.CacheDir == "" {
		return fmt.Errorf("cache_dir must be set when caching is enabled")
	}
	return nil
}
