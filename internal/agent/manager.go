package agent

import (
	"context"
	"errors"
	"time"

	"github.com/looplab/fsm"

	"github.com/edgehold/gpio-agent/internal/command"
	"github.com/edgehold/gpio-agent/internal/infrastructure/mqtt"
	"github.com/edgehold/gpio-agent/internal/message"
	"github.com/edgehold/gpio-agent/internal/pin"
	"github.com/edgehold/gpio-agent/internal/publish"
)

// Connection states. The manager only ever moves between adjacent states;
// a network loss from any connected state collapses straight back to
// disconnected.
const (
	StateDisconnected      = "disconnected"
	StateNetworkConnecting = "network_connecting"
	StateNetworkUp         = "network_up"
	StateBrokerConnecting  = "broker_connecting"
	StateBrokerUp          = "broker_up"
)

// State machine events.
const (
	eventNetworkBegin = "network_begin"
	eventNetworkUp    = "network_up_ok"
	eventNetworkLost  = "network_lost"
	eventBrokerBegin  = "broker_begin"
	eventBrokerUp     = "broker_up_ok"
	eventBrokerFail   = "broker_fail"
	eventBrokerLost   = "broker_lost"
)

// inboundBuffer bounds queued control messages between ticks. Messages
// arriving while the buffer is full are dropped; the device always converges
// on the most recent commands once the loop catches up.
const inboundBuffer = 64

// BrokerSession is the slice of the MQTT session the manager drives.
type BrokerSession interface {
	Connect(timeout time.Duration) error
	IsConnected() bool
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Close() error
}

// StatePublisher publishes the full pin snapshot on demand.
type StatePublisher interface {
	Status(pins []pin.Pin) error
}

// Logger is the minimal logging interface the manager needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ManagerConfig carries the manager's collaborators and timing knobs.
type ManagerConfig struct {
	Session   BrokerSession
	Netif     Netif
	Registry  *pin.Registry
	Processor *command.Processor
	Publisher StatePublisher
	Topics    mqtt.Topics
	QoS       byte

	// NetworkTimeout bounds a single association attempt.
	NetworkTimeout time.Duration

	// BrokerTimeout bounds a single broker connect attempt.
	BrokerTimeout time.Duration

	// ReconnectDelay is the minimum spacing between broker connect
	// attempts.
	ReconnectDelay time.Duration

	// Clock defaults to wall time when nil.
	Clock Clock

	Logger Logger
}

// ConnectionState is a snapshot of the manager for status reporting and
// tests.
type ConnectionState struct {
	State             string
	NetworkUp         bool
	BrokerUp          bool
	LastBrokerAttempt time.Time
}

// Manager owns the connectivity lifecycle. It is driven entirely from the
// scheduler loop's goroutine; nothing here is safe for concurrent use except
// the inbound enqueue path, which the MQTT client calls from its own
// goroutines.
type Manager struct {
	session   BrokerSession
	netif     Netif
	processor *command.Processor
	publisher StatePublisher
	registry  *pin.Registry
	topics    mqtt.Topics
	qos       byte

	networkTimeout time.Duration
	brokerTimeout  time.Duration
	reconnectDelay time.Duration

	clock  Clock
	logger Logger

	machine *fsm.FSM
	inbound chan []byte

	lastBrokerAttempt time.Time
	subscribed        bool
}

// NewManager builds a Manager in the disconnected state.
func NewManager(cfg ManagerConfig) *Manager {
	m := &Manager{
		session:        cfg.Session,
		netif:          cfg.Netif,
		processor:      cfg.Processor,
		publisher:      cfg.Publisher,
		registry:       cfg.Registry,
		topics:         cfg.Topics,
		qos:            cfg.QoS,
		networkTimeout: cfg.NetworkTimeout,
		brokerTimeout:  cfg.BrokerTimeout,
		reconnectDelay: cfg.ReconnectDelay,
		clock:          cfg.Clock,
		logger:         cfg.Logger,
		inbound:        make(chan []byte, inboundBuffer),
	}
	if m.clock == nil {
		m.clock = realClock{}
	}
	if m.logger == nil {
		m.logger = noopLogger{}
	}

	m.machine = fsm.NewFSM(
		StateDisconnected,
		fsm.Events{
			{Name: eventNetworkBegin, Src: []string{StateDisconnected}, Dst: StateNetworkConnecting},
			{Name: eventNetworkUp, Src: []string{StateNetworkConnecting}, Dst: StateNetworkUp},
			{Name: eventBrokerBegin, Src: []string{StateNetworkUp}, Dst: StateBrokerConnecting},
			{Name: eventBrokerUp, Src: []string{StateBrokerConnecting}, Dst: StateBrokerUp},
			{Name: eventBrokerFail, Src: []string{StateBrokerConnecting}, Dst: StateNetworkUp},
			{Name: eventBrokerLost, Src: []string{StateBrokerUp}, Dst: StateNetworkUp},
			{Name: eventNetworkLost, Src: []string{
				StateNetworkConnecting, StateNetworkUp, StateBrokerConnecting, StateBrokerUp,
			}, Dst: StateDisconnected},
		},
		fsm.Callbacks{
			"enter_" + StateBrokerUp: func(ctx context.Context, e *fsm.Event) {
				m.onBrokerUp()
			},
			"leave_" + StateBrokerUp: func(ctx context.Context, e *fsm.Event) {
				m.subscribed = false
			},
		},
	)
	return m
}

// State returns a snapshot of the current connection state.
func (m *Manager) State() ConnectionState {
	cur := m.machine.Current()
	return ConnectionState{
		State:             cur,
		NetworkUp:         cur == StateNetworkUp || cur == StateBrokerConnecting || cur == StateBrokerUp,
		BrokerUp:          cur == StateBrokerUp,
		LastBrokerAttempt: m.lastBrokerAttempt,
	}
}

// Connected reports whether the broker session is live.
func (m *Manager) Connected() bool {
	return m.machine.Current() == StateBrokerUp
}

// Tick advances the connection lifecycle one step and drains any inbound
// control messages. Each call is bounded; no step blocks beyond its
// configured timeout.
func (m *Manager) Tick(ctx context.Context) {
	switch m.machine.Current() {
	case StateDisconnected:
		m.fire(ctx, eventNetworkBegin)

	case StateNetworkConnecting:
		m.tickAssociate(ctx)

	case StateNetworkUp:
		m.tickBrokerConnect(ctx)

	case StateBrokerConnecting:
		// Transient between connect attempt and verdict; the attempt
		// is synchronous so this state is not normally observed here.
		m.fire(ctx, eventBrokerFail)

	case StateBrokerUp:
		m.tickBrokerUp(ctx)
	}

	m.drainInbound()
}

func (m *Manager) tickAssociate(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.networkTimeout)
	defer cancel()

	if err := m.netif.Associate(probeCtx); err != nil {
		m.logger.Debug("network association attempt failed", "error", err)
		return
	}

	m.logger.Info("network up", "ip", m.netif.IPAddress())
	m.fire(ctx, eventNetworkUp)
}

func (m *Manager) tickBrokerConnect(ctx context.Context) {
	if !m.netif.IsUp() {
		m.logger.Warn("network lost while waiting for broker")
		m.fire(ctx, eventNetworkLost)
		return
	}

	now := m.clock.Now()
	if !m.lastBrokerAttempt.IsZero() && now.Sub(m.lastBrokerAttempt) < m.reconnectDelay {
		return
	}
	m.lastBrokerAttempt = now

	m.fire(ctx, eventBrokerBegin)
	if err := m.session.Connect(m.brokerTimeout); err != nil {
		reason := mqtt.Classify(err)
		if errors.Is(err, mqtt.ErrTimeout) {
			m.logger.Warn("broker connect timed out", "timeout", m.brokerTimeout)
		} else {
			m.logger.Warn("broker connect failed", "reason", string(reason), "error", err)
		}
		m.fire(ctx, eventBrokerFail)
		return
	}

	m.logger.Info("broker connected")
	m.fire(ctx, eventBrokerUp)
}

func (m *Manager) tickBrokerUp(ctx context.Context) {
	if !m.session.IsConnected() {
		m.logger.Warn("broker connection lost")
		m.fire(ctx, eventBrokerLost)
		return
	}
	if !m.netif.IsUp() {
		m.logger.Warn("network lost")
		m.fire(ctx, eventNetworkLost)
	}
}

// onBrokerUp subscribes to the control topic and announces the current pin
// state. Runs inside the broker_up entry callback, still on the loop
// goroutine.
func (m *Manager) onBrokerUp() {
	if !m.subscribed {
		if err := m.session.Subscribe(m.topics.Control(), m.qos, m.enqueue); err != nil {
			m.logger.Error("control subscription failed", "topic", m.topics.Control(), "error", err)
		} else {
			m.subscribed = true
			m.logger.Info("subscribed to control topic", "topic", m.topics.Control())
		}
	}

	if err := m.publisher.Status(m.registry.All()); err != nil {
		m.logger.Warn("initial status publish failed", "error", err)
	}
}

// enqueue hands an inbound control payload to the loop. Runs on the MQTT
// client's goroutine, so it copies the payload and never blocks; overflow is
// dropped with a warning.
func (m *Manager) enqueue(topic string, payload []byte) error {
	buf := make([]byte, len(payload))
	copy(buf, payload)

	select {
	case m.inbound <- buf:
	default:
		m.logger.Warn("inbound buffer full, dropping control message", "topic", topic)
	}
	return nil
}

// drainInbound processes the messages queued at entry. New arrivals during
// the drain wait for the next tick, keeping each tick bounded.
func (m *Manager) drainInbound() {
	for n := len(m.inbound); n > 0; n-- {
		payload := <-m.inbound
		m.dispatch(payload)
	}
}

func (m *Manager) dispatch(payload []byte) {
	msg, err := message.DecodeControl(payload)
	if err != nil {
		m.logger.Warn("discarding malformed control payload", "error", err)
		return
	}
	m.processor.Handle(msg)
}

// Close tears down the broker session if one is live.
func (m *Manager) Close() error {
	if m.machine.Current() == StateBrokerUp || m.machine.Current() == StateBrokerConnecting {
		return m.session.Close()
	}
	return nil
}

func (m *Manager) fire(ctx context.Context, event string) {
	if err := m.machine.Event(ctx, event); err != nil {
		m.logger.Error("state transition rejected", "event", event, "state", m.machine.Current(), "error", err)
	}
}

var _ StatePublisher = (*publish.Publisher)(nil)
