package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the GPIO agent.
// All configuration is loaded from YAML and can be overridden by environment variables.
//
// The agent consumes this as an immutable snapshot at startup; nothing
// re-reads configuration at runtime.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Network   NetworkConfig   `yaml:"network"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Pins      []int           `yaml:"pins"`
	Sensor    SensorConfig    `yaml:"sensor"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	History   HistoryConfig   `yaml:"history"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DeviceConfig identifies this agent instance.
type DeviceConfig struct {
	ID string `yaml:"id"`
}

// NetworkConfig controls network availability probing.
//
// The agent does not manage radio association itself; it verifies that the
// host network can reach the probe target before attempting the broker
// handshake. ProbeTarget defaults to the broker address when empty.
type NetworkConfig struct {
	ProbeTarget    string `yaml:"probe_target"`
	ProbeTimeout   int    `yaml:"probe_timeout"`   // seconds
	ConnectTimeout int    `yaml:"connect_timeout"` // seconds, bound on one association attempt
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	TLS         MQTTTLSConfig       `yaml:"tls"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTTLSConfig contains TLS settings for the broker connection.
//
// Certificate verification is ON by default. InsecureSkipVerify exists only
// for development against brokers with self-signed certificates and must be
// set explicitly in the config file; there is no environment override for it.
type MQTTTLSConfig struct {
	Enabled            bool   `yaml:"enabled"`
	CAFile             string `yaml:"ca_file"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// MQTTReconnectConfig contains broker reconnection settings.
// Delay is a fixed interval between attempts, in seconds.
type MQTTReconnectConfig struct {
	Delay          int `yaml:"delay"`
	ConnectTimeout int `yaml:"connect_timeout"`
}

// SensorConfig describes the environmental sensor, if any.
type SensorConfig struct {
	Enabled bool   `yaml:"enabled"`
	Type    string `yaml:"type"` // dht11 or dht22
	Pin     int    `yaml:"pin"`
}

// TelemetryConfig controls the periodic telemetry publish.
type TelemetryConfig struct {
	Interval     int `yaml:"interval"`      // seconds between telemetry publishes
	TickInterval int `yaml:"tick_interval"` // milliseconds between scheduler ticks
}

// HistoryConfig contains the pin state-change journal settings.
//
// The journal is diagnostic only: it records transitions but is never read
// back to restore pin state after a restart.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// InfluxDBConfig contains settings for the optional telemetry mirror.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
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
// Environment variables follow the pattern: GPIOAGENT_SECTION_KEY
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Validated configuration ready for use
//   - error: If the file cannot be read, parsed, or fails validation
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

// defaultConfig returns a Config with sensible defaults.
//
// The defaults mirror the reference deployment: four controllable pins,
// 5 second broker reconnect delay, 30 second telemetry period.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			ID: "gpio-agent",
		},
		Network: NetworkConfig{
			ProbeTimeout:   5,
			ConnectTimeout: 20,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "gpio-agent",
			},
			TLS: MQTTTLSConfig{
				Enabled:            false,
				InsecureSkipVerify: false,
			},
			QoS:         1,
			TopicPrefix: "esp32/gpio",
			Reconnect: MQTTReconnectConfig{
				Delay:          5,
				ConnectTimeout: 10,
			},
		},
		Pins: []int{5, 15, 17, 18},
		Sensor: SensorConfig{
			Enabled: false,
			Type:    "dht22",
			Pin:     4,
		},
		Telemetry: TelemetryConfig{
			Interval:     30,
			TickInterval: 100,
		},
		History: HistoryConfig{
			Enabled: false,
			Path:    "./data/gpio-agent.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GPIOAGENT_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Device
	if v := os.Getenv("GPIOAGENT_DEVICE_ID"); v != "" {
		cfg.Device.ID = v
	}

	// MQTT
	if v := os.Getenv("GPIOAGENT_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GPIOAGENT_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("GPIOAGENT_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GPIOAGENT_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// History
	if v := os.Getenv("GPIOAGENT_HISTORY_PATH"); v != "" {
		cfg.History.Path = v
	}

	// InfluxDB
	if v := os.Getenv("GPIOAGENT_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Device.ID == "" {
		errs = append(errs, "device.id is required")
	}

	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.TopicPrefix == "" {
		errs = append(errs, "mqtt.topic_prefix is required")
	}
	if strings.HasSuffix(c.MQTT.TopicPrefix, "/") {
		errs = append(errs, "mqtt.topic_prefix must not end with '/'")
	}
	if c.MQTT.Reconnect.Delay < 1 {
		errs = append(errs, "mqtt.reconnect.delay must be at least 1 second")
	}
	if c.MQTT.TLS.InsecureSkipVerify && !c.MQTT.TLS.Enabled {
		errs = append(errs, "mqtt.tls.insecure_skip_verify requires mqtt.tls.enabled")
	}

	if len(c.Pins) == 0 {
		errs = append(errs, "at least one pin must be configured")
	}
	seen := make(map[int]bool, len(c.Pins))
	for _, gpio := range c.Pins {
		if gpio < 0 {
			errs = append(errs, fmt.Sprintf("pin %d: identifier must not be negative", gpio))
		}
		if seen[gpio] {
			errs = append(errs, fmt.Sprintf("pin %d: duplicate identifier", gpio))
		}
		seen[gpio] = true
	}

	if c.Sensor.Enabled {
		switch strings.ToLower(c.Sensor.Type) {
		case "dht11", "dht22":
		default:
			errs = append(errs, "sensor.type must be dht11 or dht22")
		}
	}

	if c.Telemetry.Interval < 1 {
		errs = append(errs, "telemetry.interval must be at least 1 second")
	}
	if c.Telemetry.TickInterval < 1 {
		errs = append(errs, "telemetry.tick_interval must be at least 1 millisecond")
	}

	if c.History.Enabled && c.History.Path == "" {
		errs = append(errs, "history.path is required when history is enabled")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ProbeTarget returns the network probe address, falling back to the broker.
func (c *Config) ProbeTarget() string {
	if c.Network.ProbeTarget != "" {
		return c.Network.ProbeTarget
	}
	return fmt.Sprintf("%s:%d", c.MQTT.Broker.Host, c.MQTT.Broker.Port)
}

// NetworkProbeTimeout returns the network probe timeout as a Duration.
func (c *Config) NetworkProbeTimeout() time.Duration {
	return time.Duration(c.Network.ProbeTimeout) * time.Second
}

// NetworkConnectTimeout returns the bound on one association attempt.
func (c *Config) NetworkConnectTimeout() time.Duration {
	return time.Duration(c.Network.ConnectTimeout) * time.Second
}

// ReconnectDelay returns the fixed broker reconnect delay as a Duration.
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.MQTT.Reconnect.Delay) * time.Second
}

// BrokerConnectTimeout returns the bound on one broker handshake attempt.
func (c *Config) BrokerConnectTimeout() time.Duration {
	return time.Duration(c.MQTT.Reconnect.ConnectTimeout) * time.Second
}

// TelemetryInterval returns the telemetry publish period as a Duration.
func (c *Config) TelemetryInterval() time.Duration {
	return time.Duration(c.Telemetry.Interval) * time.Second
}

// TickInterval returns the scheduler tick interval as a Duration.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Telemetry.TickInterval) * time.Millisecond
}
