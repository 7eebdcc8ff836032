package mqtt

import (
	"errors"

	"github.com/eclipse/paho.mqtt.golang/packets"
)

// Domain-specific errors for MQTT operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when attempting operations on a disconnected session.
	ErrNotConnected = errors.New("mqtt: session not connected")

	// ErrConnectionFailed is returned when a broker handshake attempt fails.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed is returned when a publish operation fails.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed is returned when a subscribe operation fails.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrUnsubscribeFailed is returned when an unsubscribe operation fails.
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidQoS is returned when an invalid QoS level is specified.
	// Valid QoS levels are 0, 1, or 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic is returned when an empty or invalid topic is provided.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = errors.New("mqtt: operation timed out")

	// ErrTLSConfig is returned when the TLS configuration cannot be built.
	ErrTLSConfig = errors.New("mqtt: invalid TLS configuration")
)

// FailureReason classifies why a broker handshake failed.
//
// The classification is purely diagnostic: every reason is handled
// identically (retry after the fixed reconnect delay). It exists so that a
// misconfigured credential shows up in logs as something other than a
// generic failure.
type FailureReason string

// Handshake failure classifications.
const (
	ReasonProtocol      FailureReason = "protocol"
	ReasonIdentifier    FailureReason = "identifier"
	ReasonAvailability  FailureReason = "availability"
	ReasonCredentials   FailureReason = "credentials"
	ReasonAuthorization FailureReason = "authorization"
	ReasonTimeout       FailureReason = "timeout"
	ReasonGeneric       FailureReason = "generic"
)

// Classify maps a Connect error to a FailureReason for diagnostic logging.
//
// CONNACK refusal codes surface from paho as sentinel errors; anything
// unrecognised (DNS failure, connection refused, TLS handshake error)
// classifies as generic.
func Classify(err error) FailureReason {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return ReasonTimeout
	case errors.Is(err, packets.ErrorRefusedBadProtocolVersion):
		return ReasonProtocol
	case errors.Is(err, packets.ErrorRefusedIDRejected):
		return ReasonIdentifier
	case errors.Is(err, packets.ErrorRefusedServerUnavailable):
		return ReasonAvailability
	case errors.Is(err, packets.ErrorRefusedBadUsernameOrPassword):
		return ReasonCredentials
	case errors.Is(err, packets.ErrorRefusedNotAuthorised):
		return ReasonAuthorization
	default:
		return ReasonGeneric
	}
}
