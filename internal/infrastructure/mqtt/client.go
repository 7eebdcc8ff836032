package mqtt

import (
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/edgehold/gpio-agent/internal/infrastructure/config"
)

// Session wraps paho.mqtt.golang with a manually driven connection lifecycle.
//
// Unlike a self-healing client, a Session never reconnects on its own: the
// connection manager owns retry timing and calls Connect with an explicit
// bound. This keeps the scheduler loop in control of every blocking
// operation.
//
// Thread Safety:
//   - All methods are safe for concurrent use, though the agent drives the
//     session from a single goroutine.
type Session struct {
	client  pahomqtt.Client
	options *pahomqtt.ClientOptions
	cfg     config.MQTTConfig

	// subscriptions tracks active subscriptions for re-subscription after
	// a session is re-established.
	subscriptions map[string]subscription
	subMu         sync.RWMutex

	// connected tracks current connection state.
	connected bool
	connMu    sync.RWMutex

	// onDisconnect is invoked when an established session is lost.
	onDisconnect func(err error)
	callbackMu   sync.RWMutex

	// logger for error/panic logging (optional, set via SetLogger).
	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// subscription holds subscription details for re-subscription.
type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// MessageHandler is the callback signature for received messages.
//
// Handlers are invoked in separate goroutines by the paho library. The
// agent's handler only enqueues the payload onto a buffered channel, so it
// never blocks the paho router.
//
// Parameters:
//   - topic: The topic the message was received on
//   - payload: The raw message payload (JSON)
//
// Returns:
//   - error: Logged but does not affect message acknowledgment
type MessageHandler func(topic string, payload []byte) error

// NewSession builds an unconnected Session from configuration.
//
// The session is configured with:
//   - A single broker URL (tcp:// or ssl:// based on TLS setting)
//   - Auto-reconnect and connect-retry disabled (manual lifecycle)
//   - Last Will and Testament on the availability topic
//
// Parameters:
//   - cfg: MQTT configuration from config.yaml
//   - clientID: Full client identifier, including any random suffix
//
// Returns:
//   - *Session: Session ready for Connect
//   - error: If the TLS configuration cannot be built
func NewSession(cfg config.MQTTConfig, clientID string) (*Session, error) {
	opts, err := buildClientOptions(cfg, clientID)
	if err != nil {
		return nil, err
	}
	configureLWT(opts, Topics{Prefix: cfg.TopicPrefix}, clientID)

	s := &Session{
		cfg:           cfg,
		options:       opts,
		subscriptions: make(map[string]subscription),
	}

	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		s.handleDisconnect(err)
	})

	s.client = pahomqtt.NewClient(opts)
	return s, nil
}

// Connect attempts a single broker handshake, bounded by the given timeout.
//
// On success the session restores any tracked subscriptions and publishes a
// retained online message to the availability topic. On failure the error is
// classifiable via Classify for diagnostic reporting; every failure kind is
// retried identically by the caller.
//
// A timed-out attempt is abandoned: the in-flight handshake is torn down in
// the background so a CONNACK arriving after the deadline cannot leave the
// underlying client connected while the session reports down. If the
// teardown loses that race and a late CONNACK wins, the next Connect call
// adopts the established connection instead of fighting it.
//
// Parameters:
//   - timeout: Hard bound on the handshake; control returns after at most
//     this long regardless of outcome
//
// Returns:
//   - error: nil on success, wrapped ErrConnectionFailed or ErrTimeout otherwise
func (s *Session) Connect(timeout time.Duration) error {
	// A previous attempt may have completed after its deadline passed.
	if s.client.IsConnected() {
		s.finalizeConnect()
		return nil
	}

	token := s.client.Connect()
	if !token.WaitTimeout(timeout) {
		// Abandon asynchronously: Disconnect blocks until the in-flight
		// attempt resolves, which can take longer than our bound.
		go s.client.Disconnect(0)
		return fmt.Errorf("%w: no CONNACK after %v", ErrTimeout, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	s.finalizeConnect()
	return nil
}

// finalizeConnect marks the session established and performs the
// post-handshake work: subscription restoration and the retained online
// announcement.
func (s *Session) finalizeConnect() {
	s.connMu.Lock()
	s.connected = true
	s.connMu.Unlock()

	s.restoreSubscriptions()
	s.publishOnline()
}

// handleDisconnect is called by paho when an established session is lost.
func (s *Session) handleDisconnect(err error) {
	s.connMu.Lock()
	s.connected = false
	s.connMu.Unlock()

	s.callbackMu.RLock()
	callback := s.onDisconnect
	s.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// restoreSubscriptions re-subscribes to all tracked topics after a reconnect.
func (s *Session) restoreSubscriptions() {
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	for _, sub := range s.subscriptions {
		// Errors during restoration are non-fatal; the next session
		// re-establishment retries them.
		s.client.Subscribe(sub.topic, sub.qos, s.wrapHandler(sub.handler))
	}
}

// publishOnline publishes the retained online message to the availability topic.
func (s *Session) publishOnline() {
	topics := Topics{Prefix: s.cfg.TopicPrefix}
	payload := buildOnlinePayload(s.options.ClientID)
	s.client.Publish(topics.Availability(), byte(s.cfg.QoS), true, payload)
}

// Close gracefully disconnects from the MQTT broker.
//
// It publishes a graceful offline message (distinct from the LWT crash
// message) before disconnecting, then waits briefly for pending operations.
//
// Returns:
//   - error: Always nil; closing an already-closed session is not an error
func (s *Session) Close() error {
	if s.client == nil {
		return nil
	}

	if s.IsConnected() {
		topics := Topics{Prefix: s.cfg.TopicPrefix}
		payload := buildOfflinePayload(s.options.ClientID)
		token := s.client.Publish(topics.Availability(), byte(s.cfg.QoS), true, payload)
		token.WaitTimeout(defaultPublishTimeout)
	}

	s.client.Disconnect(defaultDisconnectQuiesce)

	s.connMu.Lock()
	s.connected = false
	s.connMu.Unlock()

	return nil
}

// IsConnected reports whether the broker session is currently established.
//
// This is the liveness check the connection manager runs once per tick while
// in the broker-up state.
func (s *Session) IsConnected() bool {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	return s.connected && s.client.IsConnected()
}

// SetOnDisconnect sets a callback invoked when an established session drops.
// The error parameter describes why the connection was lost.
func (s *Session) SetOnDisconnect(callback func(err error)) {
	s.callbackMu.Lock()
	s.onDisconnect = callback
	s.callbackMu.Unlock()
}

// SetLogger sets a logger for error and panic logging.
// If not set, errors in handlers are silently ignored.
func (s *Session) SetLogger(logger Logger) {
	s.loggerMu.Lock()
	s.logger = logger
	s.loggerMu.Unlock()
}

// getLogger returns the current logger (may be nil).
func (s *Session) getLogger() Logger {
	s.loggerMu.RLock()
	defer s.loggerMu.RUnlock()
	return s.logger
}

// wrapHandler wraps a MessageHandler with panic recovery and optional logging.
func (s *Session) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := s.getLogger(); logger != nil {
					logger.Error("MQTT handler panic recovered",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if logger := s.getLogger(); logger != nil {
				logger.Warn("MQTT handler returned error",
					"topic", msg.Topic(),
					"error", err,
				)
			}
		}
	}
}
