// Package config loads runtime configuration from an optional YAML
// file with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// StorageConfig holds the SQLite location.
type StorageConfig struct {
	DSN string `yaml:"dsn"`
}

// ScrapingConfig tunes the fetcher and the run as a whole.
type ScrapingConfig struct {
	RequestInterval time.Duration `yaml:"request_interval"`
	MaxRetries      int           `yaml:"max_retries"`
	RetryDelay      time.Duration `yaml:"retry_delay"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	RunTimeout      time.Duration `yaml:"run_timeout"`
	UserAgent       string        `yaml:"user_agent"`
}

// ServerConfig holds the HTTP listen address.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Config is the full runtime configuration.
type Config struct {
	Storage  StorageConfig  `yaml:"storage"`
	Scraping ScrapingConfig `yaml:"scraping"`
	Server   ServerConfig   `yaml:"server"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{DSN: defaultDSN()},
		Scraping: ScrapingConfig{
			RequestInterval: time.Second,
			MaxRetries:      3,
			RetryDelay:      time.Second,
			RequestTimeout:  10 * time.Second,
			RunTimeout:      5 * time.Minute,
			UserAgent:       "Mozilla/5.0 (compatible; newsdex/1.0)",
		},
		Server: ServerConfig{Addr: ":8080"},
	}
}

func defaultDSN() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "newsdex.db"
	}
	return filepath.Join(homeDir, ".newsdex", "newsdex.db")
}

// Load builds the configuration: defaults, then the YAML file at path
// (skipped when path is empty and the default location is absent), then
// NEWSDEX_* environment variables. An empty path falls back to
// ~/.newsdex/config.yaml.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		if homeDir, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(homeDir, ".newsdex", "config.yaml")
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		case os.IsNotExist(err) && !explicit:
			// Default location missing is not an error.
		default:
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv overlays NEWSDEX_* environment variables on cfg.
func applyEnv(cfg *Config) error {
	if v := os.Getenv("NEWSDEX_DB"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("NEWSDEX_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("NEWSDEX_USER_AGENT"); v != "" {
		cfg.Scraping.UserAgent = v
	}
	if v := os.Getenv("NEWSDEX_MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid NEWSDEX_MAX_RETRIES %q: %w", v, err)
		}
		cfg.Scraping.MaxRetries = n
	}

	durations := map[string]*time.Duration{
		"NEWSDEX_REQUEST_INTERVAL": &cfg.Scraping.RequestInterval,
		"NEWSDEX_RETRY_DELAY":      &cfg.Scraping.RetryDelay,
		"NEWSDEX_REQUEST_TIMEOUT":  &cfg.Scraping.RequestTimeout,
		"NEWSDEX_RUN_TIMEOUT":      &cfg.Scraping.RunTimeout,
	}
	for key, target := range durations {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		*target = d
	}

	return nil
}
