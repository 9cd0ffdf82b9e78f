// Package config provides configuration loading and structs for the tssd pipeline.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug    bool           `yaml:"debug"`
	Patterns PatternsConfig `yaml:"patterns"`
	Match    MatchConfig    `yaml:"match"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Storage  StorageConfig  `yaml:"storage"`
}

// PatternsConfig holds the paths of the indicator-term pattern files.
type PatternsConfig struct {
	PositivePath string `yaml:"positive_path"`
	NegativePath string `yaml:"negative_path"`
}

// MatchConfig holds matching and history-read settings.
type MatchConfig struct {
	Controls      int     `yaml:"controls"`
	MinSimilarity float64 `yaml:"min_similarity"`
	MinAcceptable int     `yaml:"min_acceptable"`
	Workers       int     `yaml:"workers"`
	MaxPosts      int     `yaml:"max_posts"`
}

// FetchConfig holds timeline API client settings.
type FetchConfig struct {
	BaseURL           string  `yaml:"base_url"`
	BearerToken       string  `yaml:"bearer_token"`
	PageSize          int     `yaml:"page_size"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	MaxRetries        int     `yaml:"max_retries"`
}

// StorageConfig holds the path of the timeline cache database.
type StorageConfig struct {
	CachePath string `yaml:"cache_path"`
}

// Load reads and parses the config file at path, expands paths, and applies
// defaults. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Patterns.PositivePath = expandPath(cfg.Patterns.PositivePath, configDir)
	cfg.Patterns.NegativePath = expandPath(cfg.Patterns.NegativePath, configDir)
	cfg.Storage.CachePath = expandPath(cfg.Storage.CachePath, configDir)

	return &cfg, nil
}

// Default returns a config with all defaults applied, for flag-only runs
// without a config file. Paths stay relative to the working directory.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return &cfg
}

// expandPath converts a path to absolute. Paths starting with "./" are
// relative to configDir; other relative paths are relative to the home
// directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
