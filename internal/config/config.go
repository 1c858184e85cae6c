// Package config holds all nerddash configuration.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all nerddash configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Server connection
	Server ServerConfig `yaml:"server"`

	// Reconnection policy
	Reconnect ReconnectConfig `yaml:"reconnect"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the orchestrator connection.
type ServerConfig struct {
	// Endpoint is the full WebSocket URL (ws:// or wss://).
	// When empty it is derived from Origin.
	Endpoint string `yaml:"endpoint"`

	// Origin is the dashboard's own origin (http:// or https://);
	// the secure variant of the origin yields a wss endpoint.
	Origin string `yaml:"origin"`

	// Path appended to the origin when deriving the endpoint.
	Path string `yaml:"path"`

	DialTimeout  string `yaml:"dial_timeout"`
	PingInterval string `yaml:"ping_interval"`
}

// ReconnectConfig configures exponential backoff reconnection.
type ReconnectConfig struct {
	MaxAttempts int    `yaml:"max_attempts"`
	BaseDelay   string `yaml:"base_delay"`
}

// LoggingConfig configures categorized debug logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "nerddash",
		Version: "1.0.0",

		Server: ServerConfig{
			Origin:       "http://localhost:8420",
			Path:         "/ws",
			DialTimeout:  "10s",
			PingInterval: "30s",
		},

		Reconnect: ReconnectConfig{
			MaxAttempts: 10,
			BaseDelay:   "1s",
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
// A missing file yields defaults, not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults only; env overrides still apply below.
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("NERDDASH_ENDPOINT"); v != "" {
		c.Server.Endpoint = v
	}
	if v := os.Getenv("NERDDASH_ORIGIN"); v != "" {
		c.Server.Origin = v
	}
	if v := os.Getenv("NERDDASH_DEBUG"); v == "1" || strings.EqualFold(v, "true") {
		c.Logging.DebugMode = true
	}
}

// GetDialTimeout returns the dial timeout as a duration.
func (c *Config) GetDialTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.DialTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// GetPingInterval returns the keepalive interval as a duration.
func (c *Config) GetPingInterval() time.Duration {
	d, err := time.ParseDuration(c.Server.PingInterval)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetBaseDelay returns the reconnect base delay as a duration.
func (c *Config) GetBaseDelay() time.Duration {
	d, err := time.ParseDuration(c.Reconnect.BaseDelay)
	if err != nil {
		return time.Second
	}
	return d
}

// ResolveEndpoint resolves the WebSocket endpoint.
// Resolution order: explicit argument, configured endpoint,
// derived from the configured origin (wss when the origin is https).
func (c *Config) ResolveEndpoint(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if c.Server.Endpoint != "" {
		return c.Server.Endpoint, nil
	}
	if c.Server.Origin == "" {
		return "", fmt.Errorf("no endpoint configured and no origin to derive one from")
	}

	u, err := url.Parse(c.Server.Origin)
	if err != nil {
		return "", fmt.Errorf("invalid origin %q: %w", c.Server.Origin, err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("origin %q has unsupported scheme %q", c.Server.Origin, u.Scheme)
	}
	path := c.Server.Path
	if path == "" {
		path = "/ws"
	}
	u.Path = path
	return u.String(), nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Endpoint == "" && c.Server.Origin == "" {
		return fmt.Errorf("server.endpoint or server.origin must be set")
	}
	if c.Reconnect.MaxAttempts < 0 {
		return fmt.Errorf("reconnect.max_attempts must be >= 0")
	}
	if _, err := time.ParseDuration(c.Reconnect.BaseDelay); err != nil {
		return fmt.Errorf("invalid reconnect.base_delay: %w", err)
	}
	if _, err := time.ParseDuration(c.Server.DialTimeout); err != nil {
		return fmt.Errorf("invalid server.dial_timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.Server.PingInterval); err != nil {
		return fmt.Errorf("invalid server.ping_interval: %w", err)
	}
	return nil
}
