package sensor

import (
	"errors"
	"testing"
)

func TestDisabledAlwaysFails(t *testing.T) {
	var r Reader = Disabled{}

	_, err := r.Read()
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Read error = %v, want ErrDisabled", err)
	}
}

func TestDHTReadFailsWithoutHardware(t *testing.T) {
	// No DHT is attached in the test environment; the reader must fail
	// with the recoverable sentinel rather than panic or hang.
	d := NewDHT(TypeDHT22, 4)

	_, err := d.Read()
	if !errors.Is(err, ErrReadFailed) {
		t.Errorf("Read error = %v, want ErrReadFailed", err)
	}
}
