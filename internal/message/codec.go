package message

import (
	"encoding/json"
	"fmt"

	"github.com/edgehold/gpio-agent/internal/pin"
)

// commandGetStatus is the command field value that requests a status publish.
const commandGetStatus = "getStatus"

// SetPin is a decoded pin-set request.
type SetPin struct {
	Pin   int
	State bool
}

// Control is a decoded inbound control message.
//
// The wire protocol checks the pin/state pair and the command field
// independently, so a single payload can carry both a pin-set and a status
// request; both parts are then acted on. This mirrors the field-by-field
// behaviour of the firmware this agent replaces and is kept deliberately
// (see DESIGN.md). A message with neither part is a no-op and is silently
// ignored.
type Control struct {
	// Set is the pin-set part, nil when the payload has no valid
	// pin/state pair.
	Set *SetPin

	// StatusRequest is true when the payload carries command "getStatus".
	StatusRequest bool
}

// IsNoop reports whether the message matches no known pattern.
func (c Control) IsNoop() bool {
	return c.Set == nil && !c.StatusRequest
}

// DecodeControl parses an inbound control payload.
//
// Decoding rules:
//   - A payload with a "pin" field holding an integral JSON number and a
//     "state" field holding a JSON boolean yields a Set part. No coercion:
//     quoted numbers and truthy strings do not match.
//   - A payload with "command": "getStatus" yields StatusRequest.
//   - Both checks are evaluated independently; a payload can satisfy both.
//   - Any other well-formed JSON decodes to a no-op message.
//   - A payload that is not valid JSON yields ErrMalformedPayload; the
//     caller logs and discards, nothing is raised further.
//
// Parameters:
//   - payload: Raw bytes from the control topic
//
// Returns:
//   - Control: The decoded message (possibly a no-op)
//   - error: Wrapped ErrMalformedPayload for undecodable input
func DecodeControl(payload []byte) (Control, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		// Valid JSON that is not an object (array, bare literal) is
		// well-formed but matches nothing: a no-op.
		if json.Valid(payload) {
			return Control{}, nil
		}
		return Control{}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	var msg Control

	if gpio, ok := decodeIntField(fields, "pin"); ok {
		if state, ok := decodeBoolField(fields, "state"); ok {
			msg.Set = &SetPin{Pin: gpio, State: state}
		}
	}

	if cmd, ok := decodeStringField(fields, "command"); ok && cmd == commandGetStatus {
		msg.StatusRequest = true
	}

	return msg, nil
}

// decodeIntField extracts a field as a signed integer. The field must be an
// integral JSON number; floats and quoted numbers do not match.
func decodeIntField(fields map[string]json.RawMessage, key string) (int, bool) {
	raw, ok := fields[key]
	if !ok {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	v, err := n.Int64()
	if err != nil {
		return 0, false
	}
	return int(v), true
}

// decodeBoolField extracts a field as a strict JSON boolean.
func decodeBoolField(fields map[string]json.RawMessage, key string) (bool, bool) {
	raw, ok := fields[key]
	if !ok {
		return false, false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false, false
	}
	return b, true
}

// decodeStringField extracts a field as a JSON string.
func decodeStringField(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// statusPayload is the wire shape of a status message. Field set and order
// are fixed for compatibility with existing consumers.
type statusPayload struct {
	Pins      []pin.Pin `json:"pins"`
	DeviceID  string    `json:"deviceId"`
	IPAddress string    `json:"ipAddress"`
	RSSI      int       `json:"rssi"`
}

// EncodeStatus serializes a full pin-state snapshot.
//
// Parameters:
//   - pins: Registry snapshot, configuration order preserved
//   - deviceID: This agent's identifier
//   - ipAddress: Current network address
//   - rssi: Signal-strength metric
//
// Returns:
//   - []byte: JSON payload for the status topic
//   - error: Marshalling failure (not expected for these types)
func EncodeStatus(pins []pin.Pin, deviceID, ipAddress string, rssi int) ([]byte, error) {
	if pins == nil {
		pins = []pin.Pin{}
	}
	data, err := json.Marshal(statusPayload{
		Pins:      pins,
		DeviceID:  deviceID,
		IPAddress: ipAddress,
		RSSI:      rssi,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding status: %w", err)
	}
	return data, nil
}

// telemetryPayload is the wire shape of a telemetry message. Temperature and
// humidity are omitted entirely when the sensor read failed.
type telemetryPayload struct {
	DeviceID    string   `json:"deviceId"`
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
	FreeHeap    uint64   `json:"freeHeap"`
	Uptime      int64    `json:"uptime"`
}

// EncodeTelemetry serializes a periodic telemetry message.
//
// Parameters:
//   - deviceID: This agent's identifier
//   - temperature: Sensor reading in °C, nil when the read failed
//   - humidity: Sensor reading in %RH, nil when the read failed
//   - freeHeap: Free heap bytes
//   - uptime: Seconds since agent start
//
// Returns:
//   - []byte: JSON payload for the telemetry topic; freeHeap and uptime are
//     always present regardless of sensor health
//   - error: Marshalling failure (not expected for these types)
func EncodeTelemetry(deviceID string, temperature, humidity *float64, freeHeap uint64, uptime int64) ([]byte, error) {
	data, err := json.Marshal(telemetryPayload{
		DeviceID:    deviceID,
		Temperature: temperature,
		Humidity:    humidity,
		FreeHeap:    freeHeap,
		Uptime:      uptime,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding telemetry: %w", err)
	}
	return data, nil
}
