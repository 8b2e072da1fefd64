package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Manager.Host != "0.0.0.0" {
		t.Errorf("Manager.Host = %q, want 0.0.0.0", cfg.Manager.Host)
	}
	if cfg.Manager.StartPort != 7125 {
		t.Errorf("Manager.StartPort = %d, want 7125", cfg.Manager.StartPort)
	}
	if cfg.Manager.Devices != 1 {
		t.Errorf("Manager.Devices = %d, want 1", cfg.Manager.Devices)
	}
	if !cfg.Discovery.Enabled {
		t.Error("Discovery.Enabled = false, want true")
	}
	if cfg.Discovery.ServiceType != "_moonraker._tcp" {
		t.Errorf("Discovery.ServiceType = %q", cfg.Discovery.ServiceType)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
manager:
  host: "127.0.0.1"
  start_port: 8125
  devices: 3
logging:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Manager.Host != "127.0.0.1" {
		t.Errorf("Manager.Host = %q, want 127.0.0.1", cfg.Manager.Host)
	}
	if cfg.Manager.StartPort != 8125 {
		t.Errorf("Manager.StartPort = %d, want 8125", cfg.Manager.StartPort)
	}
	if cfg.Manager.Devices != 3 {
		t.Errorf("Manager.Devices = %d, want 3", cfg.Manager.Devices)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	// Untouched sections keep their defaults.
	if cfg.WebSocket.MaxMessageSize != 8192 {
		t.Errorf("WebSocket.MaxMessageSize = %d, want default 8192", cfg.WebSocket.MaxMessageSize)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
manager:
  start_port: 8125
`)
	t.Setenv("MOONSIM_MANAGER_START_PORT", "9125")
	t.Setenv("MOONSIM_MANAGER_DEVICES", "5")
	t.Setenv("MOONSIM_DISCOVERY_ENABLED", "false")
	t.Setenv("MOONSIM_LOGGING_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Manager.StartPort != 9125 {
		t.Errorf("Manager.StartPort = %d, want env override 9125", cfg.Manager.StartPort)
	}
	if cfg.Manager.Devices != 5 {
		t.Errorf("Manager.Devices = %d, want 5", cfg.Manager.Devices)
	}
	if cfg.Discovery.Enabled {
		t.Error("Discovery.Enabled = true, want env override false")
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "manager: [not a map")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "empty host",
			mutate:  func(c *Config) { c.Manager.Host = "" },
			wantErr: "manager.host",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Manager.StartPort = 70000 },
			wantErr: "start_port",
		},
		{
			name:    "negative devices",
			mutate:  func(c *Config) { c.Manager.Devices = -1 },
			wantErr: "devices",
		},
		{
			name:    "zero max message size",
			mutate:  func(c *Config) { c.WebSocket.MaxMessageSize = 0 },
			wantErr: "max_message_size",
		},
		{
			name: "discovery enabled without service type",
			mutate: func(c *Config) {
				c.Discovery.Enabled = true
				c.Discovery.ServiceType = ""
			},
			wantErr: "service_type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestTimeoutGetters(t *testing.T) {
	cfg := Default()
	cfg.API.Timeouts.Read = 15
	cfg.API.Timeouts.Write = 20
	cfg.API.Timeouts.Idle = 90

	if got := cfg.GetReadTimeout(); got != 15*time.Second {
		t.Errorf("GetReadTimeout = %v", got)
	}
	if got := cfg.GetWriteTimeout(); got != 20*time.Second {
		t.Errorf("GetWriteTimeout = %v", got)
	}
	if got := cfg.GetIdleTimeout(); got != 90*time.Second {
		t.Errorf("GetIdleTimeout = %v", got)
	}
}
