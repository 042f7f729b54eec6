package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	// Create a temporary config file
	content := `
server:
  id: "test-server"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
cache:
  ttl_hours: 24
api:
  host: "0.0.0.0"
  port: 8080
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.ID != "test-server" {
		t.Errorf("Server.ID = %q, want %q", cfg.Server.ID, "test-server")
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}

	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}

	if got := cfg.CacheTTL(); got != 24*time.Hour {
		t.Errorf("CacheTTL() = %v, want %v", got, 24*time.Hour)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	content := `
server:
  id: "test-server"
database:
  path: "/tmp/test.db"
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	t.Setenv("FLEETCORE_MQTT_HOST", "broker.internal")
	t.Setenv("FLEETCORE_DATABASE_PATH", "/var/lib/fleetcore/core.db")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MQTT.Broker.Host != "broker.internal" {
		t.Errorf("MQTT.Broker.Host = %q, want env override %q", cfg.MQTT.Broker.Host, "broker.internal")
	}
	if cfg.Database.Path != "/var/lib/fleetcore/core.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
}

func TestConfig_Validate(t *testing.T) {
	// validJWTSecret is a secret that meets the 32-character minimum requirement
	validJWTSecret := "test-secret-key-at-least-32-chars!"

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid defaults with secret",
			mutate:  func(_ *Config) {},
			wantErr: false,
		},
		{
			name:    "empty server id",
			mutate:  func(c *Config) { c.Server.ID = "" },
			wantErr: true,
		},
		{
			name:    "empty database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name:    "invalid qos",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "zero workers",
			mutate:  func(c *Config) { c.Ingest.Workers = 0 },
			wantErr: true,
		},
		{
			name:    "zero cache ttl",
			mutate:  func(c *Config) { c.Cache.TTLHours = 0 },
			wantErr: true,
		},
		{
			name:    "invalid api port",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "missing jwt secret",
			mutate:  func(c *Config) { c.Security.JWT.Secret = "" },
			wantErr: true,
		},
		{
			name:    "short jwt secret",
			mutate:  func(c *Config) { c.Security.JWT.Secret = "too-short" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Security.JWT.Secret = validJWTSecret
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}
