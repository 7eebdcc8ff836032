// Package publish builds and emits the agent's outbound messages.
//
// The Publisher owns the two outbound paths:
//
//   - Status: full pin-state snapshot, event-driven (after a pin set, on
//     request, and once when the broker session comes up)
//   - Telemetry: periodic sensor/diagnostic data on a fixed interval
//
// Both paths silently skip when the broker session is down; connectivity is
// a precondition checked defensively before every publish, never an error.
// Sensor failures degrade telemetry (environment fields omitted) without
// blocking the publish.
package publish
