// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for nostrforge
// components.
//
// Configuration is loaded from a single yaml file specified by the
// NOSTRFORGE_CONFIG environment variable or a --config flag. There are
// no fallbacks or automatic discovery. This ensures deterministic,
// auditable configuration with no hidden overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the master configuration for nostrforge.
type Config struct {
	// Relays configures the relay pool.
	Relays RelaysConfig `yaml:"relays"`

	// Paths configures file and directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Sync configures the repository sync engine.
	Sync SyncConfig `yaml:"sync"`

	// Limits configures provisioning and cache bounds.
	Limits LimitsConfig `yaml:"limits"`
}

// RelaysConfig configures the relay pool.
type RelaysConfig struct {
	// Defaults are the platform's relays, used for every publish
	// and as the fetch pool.
	Defaults []string `yaml:"defaults"`

	// TimeoutSeconds bounds each per-relay operation.
	// Default: 10.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Timeout returns the per-relay operation timeout.
func (r RelaysConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// PathsConfig configures file and directory locations.
type PathsConfig struct {
	// RepoRoot is the directory holding bare repositories, one
	// subdirectory per owner pubkey.
	RepoRoot string `yaml:"repo_root"`

	// KeyFile is the sealed (age-encrypted) platform signing key.
	KeyFile string `yaml:"key_file"`

	// TransportRules is the jsonc file mapping remote host patterns
	// to proxies. Empty means no special transport.
	TransportRules string `yaml:"transport_rules"`

	// CloneURLBase is the public URL prefix under which provisioned
	// repositories are served.
	CloneURLBase string `yaml:"clone_url_base"`
}

// SyncConfig configures the repository sync engine.
type SyncConfig struct {
	// AllowForcePush permits force pushes to mirrors
	// unconditionally. Default: false.
	AllowForcePush bool `yaml:"allow_force_push"`

	// RetryAttempts bounds per-remote and per-publish retries.
	// Default: 3.
	RetryAttempts int `yaml:"retry_attempts"`

	// IntervalSeconds is the period of the daemon's mirror sync
	// loop. Default: 300.
	IntervalSeconds int `yaml:"interval_seconds"`
}

// Interval returns the mirror sync period.
func (s SyncConfig) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds) * time.Second
}

// LimitsConfig configures provisioning and cache bounds.
type LimitsConfig struct {
	// MaxReposPerOwner caps repositories per identity. Zero means
	// unlimited.
	MaxReposPerOwner int `yaml:"max_repos_per_owner"`

	// CacheMaxEntries bounds the event cache. Default: 1024.
	CacheMaxEntries int `yaml:"cache_max_entries"`

	// CacheTTLSeconds is the default event cache TTL. Default: 60.
	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
}

// CacheTTL returns the default event cache TTL.
func (l LimitsConfig) CacheTTL() time.Duration {
	return time.Duration(l.CacheTTLSeconds) * time.Second
}

// Default returns the default configuration. These defaults are a base
// for the config file, not a substitute for it: Validate still rejects
// a config with no relays or paths.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".local", "share", "nostrforge")

	return &Config{
		Relays: RelaysConfig{
			TimeoutSeconds: 10,
		},
		Paths: PathsConfig{
			RepoRoot: filepath.Join(defaultRoot, "repos"),
			KeyFile:  filepath.Join(defaultRoot, "signing.key.age"),
		},
		Sync: SyncConfig{
			RetryAttempts:   3,
			IntervalSeconds: 300,
		},
		Limits: LimitsConfig{
			CacheMaxEntries: 1024,
			CacheTTLSeconds: 60,
		},
	}
}

// Load loads configuration from the NOSTRFORGE_CONFIG environment
// variable. There are no fallbacks: if the variable is not set, this
// fails.
func Load() (*Config, error) {
	path := os.Getenv("NOSTRFORGE_CONFIG")
	if path == "" {
		return nil, fmt.Errorf("NOSTRFORGE_CONFIG environment variable not set; " +
			"set it to the path of your nostrforge.yaml config file, or use --config")
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path. The file is
// the single source of truth; environment variables do not override
// its values.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if len(c.Relays.Defaults) == 0 {
		return fmt.Errorf("relays.defaults must list at least one relay")
	}
	for _, relay := range c.Relays.Defaults {
		if !strings.HasPrefix(relay, "wss://") && !strings.HasPrefix(relay, "ws://") {
			return fmt.Errorf("relay %q: must be a ws:// or wss:// URL", relay)
		}
	}
	if c.Relays.TimeoutSeconds <= 0 {
		return fmt.Errorf("relays.timeout_seconds must be positive")
	}
	if c.Paths.RepoRoot == "" {
		return fmt.Errorf("paths.repo_root is required")
	}
	if c.Paths.CloneURLBase == "" {
		return fmt.Errorf("paths.clone_url_base is required")
	}
	if c.Sync.RetryAttempts < 1 {
		return fmt.Errorf("sync.retry_attempts must be at least 1")
	}
	if c.Sync.IntervalSeconds <= 0 {
		return fmt.Errorf("sync.interval_seconds must be positive")
	}
	return nil
}
