package influxdb

import (
	"context"
	"errors"
	"testing"

	"github.com/edgehold/gpio-agent/internal/infrastructure/config"
)

func TestConnectDisabled(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect error = %v, want ErrDisabled", err)
	}
}

func TestConnectUnreachable(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network test in short mode")
	}

	_, err := Connect(config.InfluxDBConfig{
		Enabled: true,
		URL:     "http://127.0.0.1:1", // nothing listens here
		Token:   "test-token",
		Org:     "test",
		Bucket:  "telemetry",
	})
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect error = %v, want ErrConnectionFailed", err)
	}
}

func TestCloseNilClient(t *testing.T) {
	var c Client
	if err := c.Close(); err != nil {
		t.Errorf("Close on zero client: %v", err)
	}
}

func TestHealthCheckNotConnected(t *testing.T) {
	var c Client
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck error = %v, want ErrNotConnected", err)
	}
}

func TestWriteTelemetryNotConnectedNoop(t *testing.T) {
	var c Client
	// Must not panic despite the nil write API.
	temp := 21.5
	c.WriteTelemetry("esp32-gpio-01", &temp, nil, 180000, 3600)
}

func TestWritePinEventNotConnectedNoop(t *testing.T) {
	var c Client
	c.WritePinEvent("esp32-gpio-01", 17, true)
}

func TestFlushNilWriteAPI(t *testing.T) {
	var c Client
	c.Flush()
}
