// Package sensor abstracts the environmental sensor feeding telemetry.
//
// The agent core only needs readings; physical driver details (DHT bus
// timing, checksums) live behind the Reader interface. A failed read is an
// expected condition: telemetry degrades by omitting the affected fields
// and the publish proceeds.
package sensor

import "errors"

// Sensor errors.
var (
	// ErrReadFailed is returned when the sensor produced no usable
	// reading this cycle (checksum or timeout failure). Recoverable; the
	// next cycle retries.
	ErrReadFailed = errors.New("sensor: read failed")

	// ErrDisabled is returned by the Disabled reader.
	ErrDisabled = errors.New("sensor: disabled")
)

// Reading is one successful sensor sample.
type Reading struct {
	// Temperature in degrees Celsius.
	Temperature float64

	// Humidity in percent relative humidity.
	Humidity float64
}

// Reader produces environmental readings.
//
// Implementations must not block beyond a single bus transaction; the
// scheduler loop calls Read synchronously on the telemetry period.
type Reader interface {
	// Read returns the current sample, or an error when the sensor
	// produced nothing usable this cycle.
	Read() (Reading, error)
}

// Disabled is a Reader for configurations without a sensor. Every Read
// fails with ErrDisabled, which callers treat like any other read failure.
type Disabled struct{}

// Read implements Reader.
func (Disabled) Read() (Reading, error) {
	return Reading{}, ErrDisabled
}
