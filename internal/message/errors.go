package message

import "errors"

// Domain-specific errors for message decoding.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrMalformedPayload is returned when an inbound payload is not valid
	// JSON. The protocol has no error-reply path; the caller logs and
	// discards.
	ErrMalformedPayload = errors.New("message: malformed payload")
)
