package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for moonsim.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Manager   ManagerConfig   `yaml:"manager"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ManagerConfig contains device instance manager settings.
type ManagerConfig struct {
	// Host is the address new instances bind to unless one is given explicitly.
	Host string `yaml:"host"`

	// StartPort seeds the auto-incrementing port counter used when an
	// instance is added without an explicit port.
	StartPort int `yaml:"start_port"`

	// Devices is the number of instances created at startup.
	Devices int `yaml:"devices"`
}

// APIConfig contains per-instance HTTP server settings.
type APIConfig struct {
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains realtime channel settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// DiscoveryConfig contains mDNS advertisement settings.
type DiscoveryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceType string `yaml:"service_type"`
	Domain      string `yaml:"domain"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern MOONSIM_SECTION_KEY, for example
// MOONSIM_MANAGER_START_PORT or MOONSIM_LOGGING_LEVEL.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration without reading any file.
// Useful for embedding the simulator in tests.
func Default() *Config {
	return defaultConfig()
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Manager: ManagerConfig{
			Host:      "0.0.0.0",
			StartPort: 7125,
			Devices:   1,
		},
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Discovery: DiscoveryConfig{
			Enabled:     true,
			ServiceType: "_moonraker._tcp",
			Domain:      "local.",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MOONSIM_MANAGER_HOST"); v != "" {
		cfg.Manager.Host = v
	}
	if v := os.Getenv("MOONSIM_MANAGER_START_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Manager.StartPort = port
		}
	}
	if v := os.Getenv("MOONSIM_MANAGER_DEVICES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Manager.Devices = n
		}
	}
	if v := os.Getenv("MOONSIM_DISCOVERY_ENABLED"); v != "" {
		cfg.Discovery.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("MOONSIM_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Manager.Host == "" {
		errs = append(errs, "manager.host is required")
	}
	if c.Manager.StartPort < 1 || c.Manager.StartPort > 65535 {
		errs = append(errs, "manager.start_port must be between 1 and 65535")
	}
	if c.Manager.Devices < 0 {
		errs = append(errs, "manager.devices must not be negative")
	}
	if c.WebSocket.MaxMessageSize <= 0 {
		errs = append(errs, "websocket.max_message_size must be positive")
	}
	if c.WebSocket.PingInterval <= 0 || c.WebSocket.PongTimeout <= 0 {
		errs = append(errs, "websocket ping_interval and pong_timeout must be positive")
	}
	if c.Discovery.Enabled && c.Discovery.ServiceType == "" {
		errs = append(errs, "discovery.service_type is required when discovery is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
