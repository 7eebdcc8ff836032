package pin

// Pin is one controllable digital output.
//
// Identity is the integer GPIO number. Pins are created once at startup from
// configuration, mutated only through Registry.Set, and never destroyed
// during the process lifetime.
type Pin struct {
	GPIO  int  `json:"gpio"`
	State bool `json:"state"`
}

// Driver applies a logical pin state to hardware.
//
// The real implementation would drive a GPIO character device; the agent
// core only needs the abstraction, and ships a no-op driver for hosts
// without attached hardware and a recording fake for tests.
type Driver interface {
	// Apply drives the physical output for the given GPIO number.
	Apply(gpio int, state bool) error
}

// NopDriver is a Driver that does nothing. Used when the agent runs without
// attached hardware.
type NopDriver struct{}

// Apply implements Driver.
func (NopDriver) Apply(int, bool) error { return nil }
