// Package influxdb provides an optional mirror of telemetry reports and pin
// events to an InfluxDB v2 server.
//
// The mirror is strictly best-effort. Writes are batched and asynchronous,
// connection loss is absorbed by the client, and the agent's MQTT behavior
// is identical whether the mirror is enabled, disabled, or broken. Unlike
// the MQTT telemetry publish, mirror writes happen even while the broker is
// down, so the time series stays continuous across broker outages.
package influxdb
