package sensor

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// iioBasePath is where the Linux industrial I/O subsystem exposes sensors.
// DHT-class devices appear here when the dht11 kernel driver is bound (it
// handles both DHT11 and DHT22 timing).
const iioBasePath = "/sys/bus/iio/devices"

// Valid DHT sensor types.
const (
	TypeDHT11 = "dht11"
	TypeDHT22 = "dht22"
)

// DHT reads a DHT11/DHT22 sensor through the kernel's IIO sysfs interface.
//
// The kernel driver owns the one-wire bus timing and checksum validation;
// a bad transaction surfaces as a read error on the sysfs file, which this
// reader reports as ErrReadFailed. DHT sensors fail a sizeable fraction of
// reads in normal operation, so callers must treat failure as routine.
type DHT struct {
	sensorType string
	gpio       int

	// device caches the resolved iio device directory after the first
	// successful lookup.
	device string
}

// NewDHT creates a reader for the given sensor type and data pin.
//
// Parameters:
//   - sensorType: "dht11" or "dht22"; informational, the kernel driver
//     handles both
//   - gpio: Data pin number, used for diagnostics only
func NewDHT(sensorType string, gpio int) *DHT {
	return &DHT{sensorType: sensorType, gpio: gpio}
}

// Read implements Reader.
func (d *DHT) Read() (Reading, error) {
	device, err := d.resolveDevice()
	if err != nil {
		return Reading{}, err
	}

	// Raw IIO values are millidegrees and milli-percent.
	tempRaw, err := readIIOValue(filepath.Join(device, "in_temp_input"))
	if err != nil {
		d.device = ""
		return Reading{}, fmt.Errorf("%w: temperature: %v", ErrReadFailed, err)
	}
	humRaw, err := readIIOValue(filepath.Join(device, "in_humidityrelative_input"))
	if err != nil {
		d.device = ""
		return Reading{}, fmt.Errorf("%w: humidity: %v", ErrReadFailed, err)
	}

	return Reading{
		Temperature: tempRaw / 1000,
		Humidity:    humRaw / 1000,
	}, nil
}

// resolveDevice finds the iio device directory exposing humidity, caching
// the result. DHT sensors are the only humidity IIO devices we expect on
// the host.
func (d *DHT) resolveDevice() (string, error) {
	if d.device != "" {
		return d.device, nil
	}

	entries, err := os.ReadDir(iioBasePath)
	if err != nil {
		return "", fmt.Errorf("%w: no iio subsystem: %v", ErrReadFailed, err)
	}

	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), "iio:device") {
			continue
		}
		dir := filepath.Join(iioBasePath, entry.Name())
		if _, err := os.Stat(filepath.Join(dir, "in_humidityrelative_input")); err == nil {
			d.device = dir
			return dir, nil
		}
	}

	return "", fmt.Errorf("%w: no humidity iio device found (type %s, gpio %d)",
		ErrReadFailed, d.sensorType, d.gpio)
}

// readIIOValue reads one numeric sysfs attribute.
func readIIOValue(path string) (float64, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path constrained to iio sysfs
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return value, nil
}
