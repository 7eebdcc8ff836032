// Package pin provides the registry of controllable GPIO output pins.
//
// The registry is the authoritative in-memory record of pin state: created
// once at startup from the configured pin list, mutated only by the command
// processor, and snapshotted for every status publish. State does not
// survive a restart; all pins come up false.
//
// # Key Types
//
//   - Pin: One GPIO number plus its current boolean state
//   - Registry: Ordered catalogue with Get/Set/All operations
//   - Driver: Hardware abstraction applied on state changes
//
// # Usage
//
//	registry, err := pin.NewRegistry(cfg.Pins, pin.NopDriver{})
//	if err != nil {
//	    return err
//	}
//	if err := registry.Set(15, true); errors.Is(err, pin.ErrPinNotFound) {
//	    log.Warn("unknown pin requested", "gpio", 15)
//	}
//
// # Thread Safety
//
// The registry is not synchronized. The agent mutates it only from the
// single scheduler goroutine; a multi-threaded host must add its own
// serialization.
package pin
