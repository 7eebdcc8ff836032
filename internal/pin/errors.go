package pin

import "errors"

// Domain-specific errors for the pin registry.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrPinNotFound is returned when a GPIO number is not in the
	// configured set. Callers treat this as a reportable, non-fatal
	// condition, never a crash.
	ErrPinNotFound = errors.New("pin: not found")

	// ErrDuplicatePin is returned at construction when the configured pin
	// list contains a repeated GPIO number.
	ErrDuplicatePin = errors.New("pin: duplicate identifier")

	// ErrNoPins is returned at construction when the configured pin list
	// is empty.
	ErrNoPins = errors.New("pin: no pins configured")
)
