package mqtt

import "fmt"

// DefaultPrefix is the reference topic prefix, kept for wire compatibility
// with existing consumers of the ESP32 firmware this agent replaces.
const DefaultPrefix = "esp32/gpio"

// Topics provides builders for the agent's MQTT topics.
//
// Three logical paths hang off a common prefix:
//
//	topics := mqtt.Topics{Prefix: "esp32/gpio"}
//	topics.Control()   // "esp32/gpio/control"   (subscribe)
//	topics.Status()    // "esp32/gpio/status"    (publish)
//	topics.Telemetry() // "esp32/gpio/telemetry" (publish, periodic)
type Topics struct {
	Prefix string
}

// prefix returns the configured prefix, falling back to the default.
func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultPrefix
	}
	return t.Prefix
}

// Control returns the topic on which inbound pin-set and status-request
// commands are received.
func (t Topics) Control() string {
	return fmt.Sprintf("%s/control", t.prefix())
}

// Status returns the topic on which full pin-state snapshots are published.
func (t Topics) Status() string {
	return fmt.Sprintf("%s/status", t.prefix())
}

// Telemetry returns the topic on which periodic sensor/diagnostic data is
// published.
func (t Topics) Telemetry() string {
	return fmt.Sprintf("%s/telemetry", t.prefix())
}

// Availability returns the retained online/offline topic. The LWT is
// registered here so consumers can detect an ungraceful disappearance.
func (t Topics) Availability() string {
	return fmt.Sprintf("%s/availability", t.prefix())
}
