package mqtt

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/eclipse/paho.mqtt.golang/packets"

	"github.com/edgehold/gpio-agent/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "gpio-agent-test",
		},
		QoS:         1,
		TopicPrefix: "esp32/gpio",
		Reconnect: config.MQTTReconnectConfig{
			Delay:          5,
			ConnectTimeout: 10,
		},
	}
}

// =============================================================================
// Session Construction Tests
// =============================================================================

func TestNewSession(t *testing.T) {
	session, err := NewSession(testConfig(), "gpio-agent-test-1234")
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	if session.IsConnected() {
		t.Error("IsConnected() = true before Connect, want false")
	}

	// Manual lifecycle: paho must not retry on its own.
	if session.options.AutoReconnect {
		t.Error("AutoReconnect enabled, want disabled")
	}
	if session.options.ConnectRetry {
		t.Error("ConnectRetry enabled, want disabled")
	}
}

func TestNewSession_BrokerURL(t *testing.T) {
	tests := []struct {
		name       string
		tlsEnabled bool
		want       string
	}{
		{name: "plain tcp", tlsEnabled: false, want: "tcp://127.0.0.1:1883"},
		{name: "tls", tlsEnabled: true, want: "ssl://127.0.0.1:1883"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.TLS.Enabled = tt.tlsEnabled

			session, err := NewSession(cfg, "client-1")
			if err != nil {
				t.Fatalf("NewSession() error = %v", err)
			}

			if len(session.options.Servers) != 1 {
				t.Fatalf("got %d broker URLs, want 1", len(session.options.Servers))
			}
			if got := session.options.Servers[0].String(); got != tt.want {
				t.Errorf("broker URL = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewSession_LWT(t *testing.T) {
	session, err := NewSession(testConfig(), "client-1")
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	if !session.options.WillEnabled {
		t.Fatal("LWT not enabled")
	}
	if session.options.WillTopic != "esp32/gpio/availability" {
		t.Errorf("will topic = %q, want esp32/gpio/availability", session.options.WillTopic)
	}
	if !session.options.WillRetained {
		t.Error("will not retained, want retained")
	}
	if !strings.Contains(string(session.options.WillPayload), "unexpected_disconnect") {
		t.Errorf("will payload = %q, want unexpected_disconnect reason", session.options.WillPayload)
	}
}

func TestCloseNil(t *testing.T) {
	session := &Session{}
	if err := session.Close(); err != nil {
		t.Errorf("Close() on unconnected session error = %v, want nil", err)
	}
}

// =============================================================================
// TLS Configuration Tests
// =============================================================================

func TestBuildTLSConfig_Defaults(t *testing.T) {
	tlsConfig, err := buildTLSConfig(config.MQTTTLSConfig{Enabled: true})
	if err != nil {
		t.Fatalf("buildTLSConfig() error = %v", err)
	}

	if tlsConfig.InsecureSkipVerify {
		t.Error("InsecureSkipVerify = true by default, want certificate verification on")
	}
}

func TestBuildTLSConfig_InsecureOptOut(t *testing.T) {
	tlsConfig, err := buildTLSConfig(config.MQTTTLSConfig{
		Enabled:            true,
		InsecureSkipVerify: true,
	})
	if err != nil {
		t.Fatalf("buildTLSConfig() error = %v", err)
	}

	if !tlsConfig.InsecureSkipVerify {
		t.Error("InsecureSkipVerify = false, want explicit opt-out honoured")
	}
}

func TestBuildTLSConfig_MissingCAFile(t *testing.T) {
	_, err := buildTLSConfig(config.MQTTTLSConfig{
		Enabled: true,
		CAFile:  "/nonexistent/ca.pem",
	})
	if err == nil {
		t.Fatal("buildTLSConfig() expected error for missing CA file")
	}
	if !errors.Is(err, ErrTLSConfig) {
		t.Errorf("error = %v, want ErrTLSConfig", err)
	}
}

func TestBuildTLSConfig_InvalidCAFile(t *testing.T) {
	tmpDir := t.TempDir()
	caPath := filepath.Join(tmpDir, "ca.pem")
	if err := os.WriteFile(caPath, []byte("not a certificate"), 0600); err != nil {
		t.Fatalf("writing CA file: %v", err)
	}

	_, err := buildTLSConfig(config.MQTTTLSConfig{
		Enabled: true,
		CAFile:  caPath,
	})
	if err == nil {
		t.Fatal("buildTLSConfig() expected error for unparseable CA file")
	}
	if !errors.Is(err, ErrTLSConfig) {
		t.Errorf("error = %v, want ErrTLSConfig", err)
	}
}

// =============================================================================
// Failure Classification Tests
// =============================================================================

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureReason
	}{
		{
			name: "nil error",
			err:  nil,
			want: "",
		},
		{
			name: "timeout",
			err:  ErrTimeout,
			want: ReasonTimeout,
		},
		{
			name: "wrapped timeout",
			err:  errors.Join(errors.New("connect"), ErrTimeout),
			want: ReasonTimeout,
		},
		{
			name: "bad protocol version",
			err:  packets.ErrorRefusedBadProtocolVersion,
			want: ReasonProtocol,
		},
		{
			name: "identifier rejected",
			err:  packets.ErrorRefusedIDRejected,
			want: ReasonIdentifier,
		},
		{
			name: "server unavailable",
			err:  packets.ErrorRefusedServerUnavailable,
			want: ReasonAvailability,
		},
		{
			name: "bad credentials",
			err:  packets.ErrorRefusedBadUsernameOrPassword,
			want: ReasonCredentials,
		},
		{
			name: "not authorised",
			err:  packets.ErrorRefusedNotAuthorised,
			want: ReasonAuthorization,
		},
		{
			name: "anything else",
			err:  errors.New("dial tcp: connection refused"),
			want: ReasonGeneric,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}

// =============================================================================
// Availability Payload Tests
// =============================================================================

func TestAvailabilityPayloads(t *testing.T) {
	online := buildOnlinePayload("client-1")
	if !strings.Contains(online, `"status":"online"`) || !strings.Contains(online, "client-1") {
		t.Errorf("online payload = %q", online)
	}

	offline := buildOfflinePayload("client-1")
	if !strings.Contains(offline, `"status":"offline"`) || !strings.Contains(offline, "graceful_shutdown") {
		t.Errorf("offline payload = %q", offline)
	}
}

// =============================================================================
// Validation Tests (no broker required)
// =============================================================================

func TestPublish_Validation(t *testing.T) {
	session, err := NewSession(testConfig(), "client-1")
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	if err := session.Publish("", []byte("x"), 1, false); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v, want ErrInvalidTopic", err)
	}
	if err := session.Publish("t", []byte("x"), 3, false); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("qos 3 error = %v, want ErrInvalidQoS", err)
	}
	if err := session.Publish("t", []byte("x"), 1, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected publish error = %v, want ErrNotConnected", err)
	}
}

func TestSubscribe_Validation(t *testing.T) {
	session, err := NewSession(testConfig(), "client-1")
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	handler := func(string, []byte) error { return nil }

	if err := session.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v, want ErrInvalidTopic", err)
	}
	if err := session.Subscribe("t", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler error = %v, want ErrSubscribeFailed", err)
	}
	if err := session.Subscribe("t", 1, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected subscribe error = %v, want ErrNotConnected", err)
	}
	if session.HasSubscription("t") {
		t.Error("failed subscription still tracked")
	}
}

// =============================================================================
// Disconnect Callback Tests
// =============================================================================

func TestHandleDisconnect(t *testing.T) {
	session, err := NewSession(testConfig(), "client-1")
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	var got error
	session.SetOnDisconnect(func(err error) { got = err })

	session.connMu.Lock()
	session.connected = true
	session.connMu.Unlock()

	cause := errors.New("EOF")
	session.handleDisconnect(cause)

	if session.connected {
		t.Error("connected flag still set after disconnect")
	}
	if !errors.Is(got, cause) {
		t.Errorf("callback error = %v, want %v", got, cause)
	}

	// Give the paho router nothing to do; just ensure no goroutines hang.
	time.Sleep(10 * time.Millisecond)
}

// =============================================================================
// Connect Timeout Recovery Tests
// =============================================================================

// startStubBroker runs a minimal broker that answers every CONNECT with a
// CONNACK after the per-connection delay (connections beyond the delay list
// answer immediately). It accepts and discards everything else.
func startStubBroker(t *testing.T, delays ...time.Duration) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for i := 0; ; i++ {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			delay := time.Duration(0)
			if i < len(delays) {
				delay = delays[i]
			}
			go func(c net.Conn, d time.Duration) {
				defer c.Close()
				buf := make([]byte, 1024)
				if _, err := c.Read(buf); err != nil {
					return
				}
				time.Sleep(d)
				// CONNACK, session-present 0, return code 0.
				if _, err := c.Write([]byte{0x20, 0x02, 0x00, 0x00}); err != nil {
					return
				}
				for {
					if _, err := c.Read(buf); err != nil {
						return
					}
				}
			}(conn, delay)
		}
	}()

	return ln.Addr().String()
}

// stubBrokerConfig builds a session config pointed at the stub broker.
func stubBrokerConfig(t *testing.T, addr string) config.MQTTConfig {
	t.Helper()

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split addr %q: %v", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port %q: %v", portStr, err)
	}

	cfg := testConfig()
	cfg.Broker.Host = host
	cfg.Broker.Port = port
	return cfg
}

// TestConnect_TimeoutDoesNotWedgeSession covers the late-CONNACK race: an
// attempt whose CONNACK arrives after the deadline must not leave the
// session permanently unable to connect on subsequent attempts.
func TestConnect_TimeoutDoesNotWedgeSession(t *testing.T) {
	addr := startStubBroker(t, 500*time.Millisecond)

	session, err := NewSession(stubBrokerConfig(t, addr), "gpio-agent-test-late")
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	defer session.Close()

	if err := session.Connect(100 * time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Fatalf("Connect() error = %v, want ErrTimeout", err)
	}
	if session.IsConnected() {
		t.Fatal("IsConnected() = true immediately after timed-out attempt")
	}

	// Let the delayed CONNACK land and the abandoned attempt resolve.
	time.Sleep(700 * time.Millisecond)

	// Retries must eventually establish the session.
	deadline := time.Now().Add(5 * time.Second)
	for {
		if err := session.Connect(time.Second); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("session never recovered after timed-out attempt")
		}
		time.Sleep(100 * time.Millisecond)
	}

	if !session.IsConnected() {
		t.Error("IsConnected() = false after successful reconnect")
	}
}

// TestConnect_BoundedOnSilentBroker verifies a timed-out attempt returns
// within its bound even when the broker never answers at all.
func TestConnect_BoundedOnSilentBroker(t *testing.T) {
	addr := startStubBroker(t, time.Hour)

	session, err := NewSession(stubBrokerConfig(t, addr), "gpio-agent-test-silent")
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	defer session.Close()

	start := time.Now()
	err = session.Connect(200 * time.Millisecond)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Connect() error = %v, want ErrTimeout", err)
	}
	if elapsed > time.Second {
		t.Errorf("Connect() blocked %v, want under 1s", elapsed)
	}
}
