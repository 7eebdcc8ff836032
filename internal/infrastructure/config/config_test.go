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
device:
  id: "test-device"
mqtt:
  broker:
    host: "broker.local"
    port: 8883
    client_id: "test-client"
  tls:
    enabled: true
  qos: 1
pins: [5, 15, 17, 18]
telemetry:
  interval: 30
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

	if cfg.Device.ID != "test-device" {
		t.Errorf("Device.ID = %q, want %q", cfg.Device.ID, "test-device")
	}

	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}

	if !cfg.MQTT.TLS.Enabled {
		t.Error("MQTT.TLS.Enabled = false, want true")
	}

	if cfg.MQTT.TLS.InsecureSkipVerify {
		t.Error("MQTT.TLS.InsecureSkipVerify = true by default, want false")
	}

	if len(cfg.Pins) != 4 || cfg.Pins[1] != 15 {
		t.Errorf("Pins = %v, want [5 15 17 18]", cfg.Pins)
	}
}

func TestLoad_Defaults(t *testing.T) {
	content := `
device:
  id: "test-device"
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

	if cfg.MQTT.TopicPrefix != "esp32/gpio" {
		t.Errorf("MQTT.TopicPrefix = %q, want %q", cfg.MQTT.TopicPrefix, "esp32/gpio")
	}
	if got := cfg.ReconnectDelay(); got != 5*time.Second {
		t.Errorf("ReconnectDelay() = %v, want 5s", got)
	}
	if got := cfg.TelemetryInterval(); got != 30*time.Second {
		t.Errorf("TelemetryInterval() = %v, want 30s", got)
	}
	if got := cfg.TickInterval(); got != 100*time.Millisecond {
		t.Errorf("TickInterval() = %v, want 100ms", got)
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
device:
  id: "test-device"
mqtt:
  broker:
    host: "from-file"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	t.Setenv("GPIOAGENT_MQTT_HOST", "from-env")
	t.Setenv("GPIOAGENT_MQTT_PASSWORD", "secret")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MQTT.Broker.Host != "from-env" {
		t.Errorf("MQTT.Broker.Host = %q, want env override %q", cfg.MQTT.Broker.Host, "from-env")
	}
	if cfg.MQTT.Auth.Password != "secret" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "secret")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Device.ID = "dev-1"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "empty device id",
			mutate:  func(c *Config) { c.Device.ID = "" },
			wantErr: true,
		},
		{
			name:    "invalid qos",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.MQTT.Broker.Port = 0 },
			wantErr: true,
		},
		{
			name:    "trailing slash in topic prefix",
			mutate:  func(c *Config) { c.MQTT.TopicPrefix = "esp32/gpio/" },
			wantErr: true,
		},
		{
			name:    "no pins",
			mutate:  func(c *Config) { c.Pins = nil },
			wantErr: true,
		},
		{
			name:    "duplicate pins",
			mutate:  func(c *Config) { c.Pins = []int{5, 15, 5} },
			wantErr: true,
		},
		{
			name:    "negative pin",
			mutate:  func(c *Config) { c.Pins = []int{-1} },
			wantErr: true,
		},
		{
			name:    "zero reconnect delay",
			mutate:  func(c *Config) { c.MQTT.Reconnect.Delay = 0 },
			wantErr: true,
		},
		{
			name: "insecure skip verify without tls",
			mutate: func(c *Config) {
				c.MQTT.TLS.Enabled = false
				c.MQTT.TLS.InsecureSkipVerify = true
			},
			wantErr: true,
		},
		{
			name: "unknown sensor type",
			mutate: func(c *Config) {
				c.Sensor.Enabled = true
				c.Sensor.Type = "bme280"
			},
			wantErr: true,
		},
		{
			name: "history enabled without path",
			mutate: func(c *Config) {
				c.History.Enabled = true
				c.History.Path = ""
			},
			wantErr: true,
		},
		{
			name: "influxdb enabled without url",
			mutate: func(c *Config) {
				c.InfluxDB.Enabled = true
				c.InfluxDB.Bucket = "telemetry"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ProbeTarget(t *testing.T) {
	cfg := defaultConfig()
	cfg.MQTT.Broker.Host = "broker.local"
	cfg.MQTT.Broker.Port = 8883

	if got := cfg.ProbeTarget(); got != "broker.local:8883" {
		t.Errorf("ProbeTarget() = %q, want broker fallback", got)
	}

	cfg.Network.ProbeTarget = "gateway.local:53"
	if got := cfg.ProbeTarget(); got != "gateway.local:53" {
		t.Errorf("ProbeTarget() = %q, want explicit target", got)
	}
}
