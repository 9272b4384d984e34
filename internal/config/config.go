// Package config loads the xpub TOML configuration.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/blacktop/xpub/internal/xpub"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Publish PublishConfig     `toml:"publish"`
	Routes  map[string]string `toml:"routes"`
	Bluesky BlueskyConfig     `toml:"bluesky"`
}

// PublishConfig holds task defaults.
type PublishConfig struct {
	MaxRetries int           `toml:"max_retries"`
	Pacing     time.Duration `toml:"pacing"`
	RetryDelay time.Duration `toml:"retry_delay"`
}

// BlueskyConfig holds non-secret Bluesky settings; credentials come from the
// environment.
type BlueskyConfig struct {
	PDSURL string `toml:"pds_url"`
}

// Load reads and parses a TOML configuration file from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration embedded in the binary.
func Default() *Config {
	var cfg Config
	if err := toml.Unmarshal(exampleConf, &cfg); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &cfg
}

// CreateFile writes the example configuration to path. It refuses to
// overwrite an existing file.
func CreateFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, exampleConf, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// DefaultPath is the config location used when --config is not given.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "xpub.toml"
	}
	return filepath.Join(dir, "xpub", "config.toml")
}

// Validate checks values the rest of the program relies on.
func (c *Config) Validate() error {
	var errs []error
	if c.Publish.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("publish.max_retries must not be negative, got %d", c.Publish.MaxRetries))
	}
	if c.Publish.Pacing < 0 {
		errs = append(errs, fmt.Errorf("publish.pacing must not be negative, got %s", c.Publish.Pacing))
	}
	if c.Publish.RetryDelay < 0 {
		errs = append(errs, fmt.Errorf("publish.retry_delay must not be negative, got %s", c.Publish.RetryDelay))
	}
	for name := range c.Routes {
		if _, err := xpub.ParsePlatform(name); err != nil {
			errs = append(errs, fmt.Errorf("routes: %w", err))
		}
	}
	return errors.Join(errs...)
}

// RoutesByPlatform resolves route keys, which may be aliases, to platforms.
func (c *Config) RoutesByPlatform() map[xpub.Platform]string {
	out := make(map[xpub.Platform]string, len(c.Routes))
	for name, transport := range c.Routes {
		p, err := xpub.ParsePlatform(name)
		if err != nil || transport == "" {
			continue
		}
		out[p] = transport
	}
	return out
}
