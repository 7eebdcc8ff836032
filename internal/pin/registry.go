package pin

import "fmt"

// Registry is the static catalogue of controllable pins and their current
// boolean state.
//
// The pin list and its order are fixed at construction; configuration order
// is preserved in every snapshot so status output stays stable for
// consumers. Lookups are a linear scan: the registry is small and fixed, so
// O(n) is a deliberate simplicity choice, not a correctness concern.
//
// The registry is mutated only from the agent's single scheduler goroutine,
// so it carries no locking. A multi-threaded host must serialize access
// externally.
type Registry struct {
	pins   []Pin
	driver Driver
}

// NewRegistry builds a Registry from an ordered list of GPIO numbers, all
// pins initialised to false.
//
// Parameters:
//   - gpios: Ordered GPIO numbers from configuration
//   - driver: Hardware driver applied on every successful Set; nil selects
//     the no-op driver
//
// Returns:
//   - *Registry: Registry ready for use
//   - error: ErrNoPins or ErrDuplicatePin on invalid configuration
func NewRegistry(gpios []int, driver Driver) (*Registry, error) {
	if len(gpios) == 0 {
		return nil, ErrNoPins
	}
	if driver == nil {
		driver = NopDriver{}
	}

	seen := make(map[int]bool, len(gpios))
	pins := make([]Pin, 0, len(gpios))
	for _, gpio := range gpios {
		if seen[gpio] {
			return nil, fmt.Errorf("%w: gpio %d", ErrDuplicatePin, gpio)
		}
		seen[gpio] = true
		pins = append(pins, Pin{GPIO: gpio})
	}

	return &Registry{pins: pins, driver: driver}, nil
}

// Get returns the pin with the given GPIO number.
//
// Returns:
//   - Pin: Copy of the pin entry
//   - error: ErrPinNotFound if the GPIO number is not configured
func (r *Registry) Get(gpio int) (Pin, error) {
	for i := range r.pins {
		if r.pins[i].GPIO == gpio {
			return r.pins[i], nil
		}
	}
	return Pin{}, fmt.Errorf("%w: gpio %d", ErrPinNotFound, gpio)
}

// Set updates the state of the pin with the given GPIO number and applies it
// to the driver.
//
// A driver failure does not roll back the registry: the in-memory state is
// authoritative and the condition is surfaced for logging only.
//
// Returns:
//   - error: ErrPinNotFound if the GPIO number is not configured, or the
//     driver error after the registry state has been updated
func (r *Registry) Set(gpio int, state bool) error {
	for i := range r.pins {
		if r.pins[i].GPIO == gpio {
			r.pins[i].State = state
			if err := r.driver.Apply(gpio, state); err != nil {
				return fmt.Errorf("applying gpio %d: %w", gpio, err)
			}
			return nil
		}
	}
	return fmt.Errorf("%w: gpio %d", ErrPinNotFound, gpio)
}

// All returns a snapshot of every pin in configuration order.
//
// The slice is a copy; callers can hold it across ticks safely.
func (r *Registry) All() []Pin {
	out := make([]Pin, len(r.pins))
	copy(out, r.pins)
	return out
}

// Count returns the number of configured pins.
func (r *Registry) Count() int {
	return len(r.pins)
}
