// Package agent ties the device together: the connection state machine and
// the single-threaded scheduler loop that drives it.
//
// # Architecture
//
// Connectivity is modeled as an explicit five-state machine
// (disconnected, network_connecting, network_up, broker_connecting,
// broker_up) advanced one bounded step per tick. There is no background
// reconnect goroutine; the loop owns all progress, and every blocking
// operation carries a timeout. Broker connect attempts are spaced by a fixed
// reconnect delay measured on an injectable clock.
//
// Inbound control messages arrive on the MQTT client's goroutines and are
// handed to the loop through a bounded buffer. Each tick drains the messages
// present at entry, so a flood of commands cannot starve telemetry or the
// lifecycle.
//
// # Concurrency
//
// The Manager and Loop are confined to the scheduler goroutine. The only
// cross-goroutine touch point is the inbound channel enqueue, which never
// blocks.
package agent
