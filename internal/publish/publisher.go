package publish

import (
	"fmt"
	"runtime"
	"time"

	"github.com/edgehold/gpio-agent/internal/infrastructure/mqtt"
	"github.com/edgehold/gpio-agent/internal/message"
	"github.com/edgehold/gpio-agent/internal/pin"
	"github.com/edgehold/gpio-agent/internal/sensor"
)

// Broker is the slice of the MQTT session the publisher needs.
type Broker interface {
	// PublishQoS publishes with the session's configured QoS, not retained.
	PublishQoS(topic string, payload []byte) error

	// IsConnected reports whether the broker session is established.
	IsConnected() bool
}

// NetInfo supplies the network details embedded in status messages.
type NetInfo interface {
	// IPAddress returns the current network address, empty when unknown.
	IPAddress() string

	// SignalStrength returns the signal metric (RSSI dBm), 0 when unknown.
	SignalStrength() int
}

// Mirror receives a copy of every telemetry report, typically backed by
// InfluxDB. Mirror writes are best-effort and must never block.
type Mirror interface {
	WriteTelemetry(deviceID string, temperature, humidity *float64, freeHeap uint64, uptime int64)
}

// Logger is the logging interface used by the Publisher.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Publisher builds and emits status and telemetry messages.
//
// Both MQTT publish paths are preconditioned on an established broker
// session: when the session is down they silently do nothing and return
// nil. Skipping is a precondition, not an error; a broker outage must not
// surface as an error storm in the scheduler loop.
type Publisher struct {
	broker   Broker
	topics   mqtt.Topics
	deviceID string
	netinfo  NetInfo
	sensor   sensor.Reader
	mirror   Mirror
	logger   Logger

	// startedAt anchors the uptime metric.
	startedAt time.Time

	// now is injectable for tests.
	now func() time.Time
}

// New creates a Publisher.
//
// Parameters:
//   - broker: Broker session (or fake in tests)
//   - topics: Topic builder carrying the configured prefix
//   - deviceID: This agent's identifier
//   - netinfo: Source of address/signal fields for status messages
//   - reader: Sensor source for telemetry; sensor.Disabled{} when absent
func New(broker Broker, topics mqtt.Topics, deviceID string, netinfo NetInfo, reader sensor.Reader) *Publisher {
	now := time.Now()
	return &Publisher{
		broker:    broker,
		topics:    topics,
		deviceID:  deviceID,
		netinfo:   netinfo,
		sensor:    reader,
		logger:    noopLogger{},
		startedAt: now,
		now:       time.Now,
	}
}

// SetLogger sets the logger for the publisher.
func (p *Publisher) SetLogger(logger Logger) {
	p.logger = logger
}

// SetMirror attaches an optional telemetry mirror.
func (p *Publisher) SetMirror(mirror Mirror) {
	p.mirror = mirror
}

// Status publishes a full pin-state snapshot to the status topic.
//
// No-op when the broker session is down; this is a precondition, not an
// error.
//
// Parameters:
//   - pins: Registry snapshot in configuration order
//
// Returns:
//   - error: Publish failure; nil when skipped due to a down session
func (p *Publisher) Status(pins []pin.Pin) error {
	if !p.broker.IsConnected() {
		p.logger.Debug("status publish skipped, session down")
		return nil
	}

	payload, err := message.EncodeStatus(pins, p.deviceID, p.netinfo.IPAddress(), p.netinfo.SignalStrength())
	if err != nil {
		return fmt.Errorf("building status: %w", err)
	}

	if err := p.broker.PublishQoS(p.topics.Status(), payload); err != nil {
		return fmt.Errorf("publishing status: %w", err)
	}

	p.logger.Debug("status published", "pins", len(pins))
	return nil
}

// Telemetry publishes the periodic sensor/diagnostic message.
//
// A sensor read failure degrades gracefully: temperature and humidity are
// omitted while free-heap and uptime are always included. The MQTT publish
// is a no-op when the broker session is down, but the report is still
// handed to the mirror so its time series survives broker outages.
//
// Returns:
//   - error: Publish failure; nil when skipped due to a down session
func (p *Publisher) Telemetry() error {
	var temperature, humidity *float64
	reading, err := p.sensor.Read()
	if err != nil {
		p.logger.Warn("sensor read failed, publishing without environment fields", "error", err)
	} else {
		temperature = &reading.Temperature
		humidity = &reading.Humidity
	}

	uptime := int64(p.now().Sub(p.startedAt).Seconds())
	freeHeap := freeHeapBytes()

	if p.mirror != nil {
		p.mirror.WriteTelemetry(p.deviceID, temperature, humidity, freeHeap, uptime)
	}

	if !p.broker.IsConnected() {
		p.logger.Debug("telemetry publish skipped, session down")
		return nil
	}

	payload, err := message.EncodeTelemetry(p.deviceID, temperature, humidity, freeHeap, uptime)
	if err != nil {
		return fmt.Errorf("building telemetry: %w", err)
	}

	if err := p.broker.PublishQoS(p.topics.Telemetry(), payload); err != nil {
		return fmt.Errorf("publishing telemetry: %w", err)
	}

	p.logger.Debug("telemetry published", "uptime_s", uptime)
	return nil
}

// freeHeapBytes reports heap bytes obtained from the OS but not currently
// in use. The closest host-process analogue of a microcontroller's
// free-heap gauge.
func freeHeapBytes() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.HeapSys - m.HeapInuse
}
