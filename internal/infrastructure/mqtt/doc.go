// Package mqtt provides the broker session for the GPIO agent.
//
// This package manages:
//   - A manually driven connection lifecycle (no internal auto-reconnect)
//   - Message publishing with QoS guarantees
//   - Control-topic subscription with restoration on reconnect
//   - Last Will and Testament (LWT) for offline detection
//   - Handshake failure classification for diagnostics
//
// # Architecture
//
// The agent's connection manager owns all retry timing. A Session therefore
// exposes a bounded Connect(timeout) and reports liveness via IsConnected;
// it never blocks the scheduler loop past the bound and never retries on
// its own.
//
//	Voice pipeline / other producers → Broker → Session → agent loop
//
// # Security Considerations
//
//   - TLS certificate verification is on by default
//   - insecure_skip_verify is an explicit, documented opt-out for
//     development brokers with self-signed certificates
//   - Credentials are validated against broker ACL
//
// # Usage
//
//	session, err := mqtt.NewSession(cfg.MQTT, clientID)
//	if err != nil {
//	    return err
//	}
//	if err := session.Connect(10 * time.Second); err != nil {
//	    log.Warn("broker handshake failed", "reason", mqtt.Classify(err))
//	}
//
//	topics := mqtt.Topics{Prefix: cfg.MQTT.TopicPrefix}
//	session.Subscribe(topics.Control(), 1, func(topic string, payload []byte) error {
//	    inbound <- payload
//	    return nil
//	})
package mqtt
