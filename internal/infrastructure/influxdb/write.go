package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteTelemetry mirrors one telemetry report to InfluxDB.
//
// The write is non-blocking; data is batched and sent asynchronously. Nil
// temperature or humidity pointers mean the sensor read failed and those
// fields are omitted from the point, matching the MQTT payload.
//
// Parameters:
//   - deviceID: Agent identifier, used as a tag
//   - temperature: Degrees Celsius, nil when unavailable
//   - humidity: Relative humidity percent, nil when unavailable
//   - freeHeap: Free heap estimate in bytes
//   - uptime: Seconds since the agent started
func (c *Client) WriteTelemetry(deviceID string, temperature, humidity *float64, freeHeap uint64, uptime int64) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{
		"free_heap": int64(freeHeap), // #nosec G115 -- heap sizes fit in int64
		"uptime":    uptime,
	}
	if temperature != nil {
		fields["temperature"] = *temperature
	}
	if humidity != nil {
		fields["humidity"] = *humidity
	}

	point := write.NewPoint(
		"telemetry",
		map[string]string{
			"device_id": deviceID,
		},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePinEvent mirrors one pin state change.
//
// Parameters:
//   - deviceID: Agent identifier
//   - gpio: Pin number
//   - state: New logical state
func (c *Client) WritePinEvent(deviceID string, gpio int, state bool) {
	if !c.IsConnected() {
		return
	}

	stateInt := 0
	if state {
		stateInt = 1
	}

	point := write.NewPoint(
		"pin_events",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"gpio":  gpio,
			"state": stateInt,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
