// gpio-agent exposes a set of digital output pins for remote control over
// MQTT, in the manner of a microcontroller firmware image: subscribe to a
// control topic, apply pin commands, report state, and emit periodic
// telemetry. Connectivity is managed by an explicit state machine driven
// from a single scheduler loop; the agent runs unattended and recovers from
// broker and network outages on its own.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/edgehold/gpio-agent/internal/agent"
	"github.com/edgehold/gpio-agent/internal/command"
	"github.com/edgehold/gpio-agent/internal/history"
	"github.com/edgehold/gpio-agent/internal/infrastructure/config"
	"github.com/edgehold/gpio-agent/internal/infrastructure/influxdb"
	"github.com/edgehold/gpio-agent/internal/infrastructure/logging"
	"github.com/edgehold/gpio-agent/internal/infrastructure/mqtt"
	"github.com/edgehold/gpio-agent/internal/pin"
	"github.com/edgehold/gpio-agent/internal/publish"
	"github.com/edgehold/gpio-agent/internal/sensor"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// historyBusyTimeout is the SQLite lock wait for the journal, in seconds.
const historyBusyTimeout = 5

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting gpio-agent",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Pin registry. All pins boot LOW; the agent never restores state.
	registry, err := pin.NewRegistry(cfg.Pins, pin.NopDriver{})
	if err != nil {
		return fmt.Errorf("building pin registry: %w", err)
	}
	log.Info("pin registry initialised", "pins", registry.Count())

	// Broker session. The random client-ID suffix prevents takeover fights
	// when a stale session lingers on the broker.
	clientID := clientIDWithSuffix(cfg.MQTT.Broker.ClientID)
	session, err := mqtt.NewSession(cfg.MQTT, clientID)
	if err != nil {
		return fmt.Errorf("building MQTT session: %w", err)
	}
	session.SetLogger(log)
	session.SetOnDisconnect(func(err error) {
		log.Warn("MQTT session dropped", "error", err)
	})
	log.Info("MQTT session prepared",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", clientID,
		"tls", cfg.MQTT.TLS.Enabled,
	)

	// Network probe
	netif := agent.NewHostNetif(cfg.ProbeTarget(), cfg.NetworkProbeTimeout())

	// Environmental sensor
	var reader sensor.Reader = sensor.Disabled{}
	if cfg.Sensor.Enabled {
		reader = sensor.NewDHT(cfg.Sensor.Type, cfg.Sensor.Pin)
		log.Info("sensor enabled", "type", cfg.Sensor.Type, "gpio", cfg.Sensor.Pin)
	}

	topics := mqtt.Topics{Prefix: cfg.MQTT.TopicPrefix}
	publisher := publish.New(session, topics, cfg.Device.ID, netif, reader)
	publisher.SetLogger(log)

	processor := command.NewProcessor(registry, publisher)
	processor.SetLogger(log)

	// Telemetry mirror (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, err := influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		publisher.SetMirror(influxClient)
		processor.AddRecorder(&influxPinRecorder{
			client:   influxClient,
			deviceID: cfg.Device.ID,
		})
		log.Info("InfluxDB mirror connected",
			"url", cfg.InfluxDB.URL,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB mirror disabled")
	}

	// State change journal (optional)
	if cfg.History.Enabled {
		journal, err := history.Open(history.Config{
			Path:        cfg.History.Path,
			BusyTimeout: historyBusyTimeout,
		})
		if err != nil {
			return fmt.Errorf("opening history journal: %w", err)
		}
		defer func() {
			log.Info("closing history journal")
			if closeErr := journal.Close(); closeErr != nil {
				log.Error("error closing journal", "error", closeErr)
			}
		}()
		// Journal the boot baseline: every pin starts LOW regardless of
		// what previous entries say.
		for _, p := range registry.All() {
			if recordErr := journal.Record(ctx, p.GPIO, p.State, history.SourceBoot); recordErr != nil {
				log.Warn("boot journal entry failed", "gpio", p.GPIO, "error", recordErr)
			}
		}

		processor.AddRecorder(history.NewRecorder(journal, log))
		log.Info("history journal open", "path", journal.Path())
	} else {
		log.Info("history journal disabled")
	}

	manager := agent.NewManager(agent.ManagerConfig{
		Session:        session,
		Netif:          netif,
		Registry:       registry,
		Processor:      processor,
		Publisher:      publisher,
		Topics:         topics,
		QoS:            byte(cfg.MQTT.QoS), // #nosec G115 -- validated 0..2
		NetworkTimeout: cfg.NetworkConnectTimeout(),
		BrokerTimeout:  cfg.BrokerConnectTimeout(),
		ReconnectDelay: cfg.ReconnectDelay(),
		Logger:         log,
	})

	loop := agent.NewLoop(agent.LoopConfig{
		Manager:           manager,
		Telemetry:         publisher,
		TickInterval:      cfg.TickInterval(),
		TelemetryInterval: cfg.TelemetryInterval(),
		Logger:            log,
	})

	log.Info("initialisation complete, entering scheduler loop")

	if err := loop.Run(ctx); err != nil {
		return fmt.Errorf("scheduler loop: %w", err)
	}

	log.Info("gpio-agent stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GPIOAGENT_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GPIOAGENT_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// clientIDWithSuffix appends a short random fragment to the configured
// client ID so restarted instances never collide with their own stale
// broker session.
func clientIDWithSuffix(base string) string {
	return base + "-" + uuid.NewString()[:8]
}

// influxPinRecorder adapts the InfluxDB client to the command processor's
// Recorder interface, mirroring each successful pin change as a point.
type influxPinRecorder struct {
	client   *influxdb.Client
	deviceID string
}

// RecordChange implements command.Recorder.
func (r *influxPinRecorder) RecordChange(gpio int, state bool) {
	r.client.WritePinEvent(r.deviceID, gpio, state)
}
