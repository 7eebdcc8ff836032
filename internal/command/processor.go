package command

import (
	"errors"

	"github.com/edgehold/gpio-agent/internal/message"
	"github.com/edgehold/gpio-agent/internal/pin"
)

// StatusPublisher is the slice of the publisher the processor needs.
type StatusPublisher interface {
	// Status publishes the given pin snapshot to the status topic.
	Status(pins []pin.Pin) error
}

// Recorder receives successful pin state changes for journaling. Optional;
// recording failures must be absorbed by the implementation.
type Recorder interface {
	RecordChange(gpio int, state bool)
}

// Logger is the logging interface used by the Processor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Processor validates and dispatches decoded control messages against the
// pin registry.
//
// Each inbound message is handled exactly once, synchronously, within the
// tick that received it. There are no retries and no error replies: the
// protocol has no error-response path, so every failure is a log line.
type Processor struct {
	registry  *pin.Registry
	publisher StatusPublisher
	recorders []Recorder
	logger    Logger
}

// NewProcessor creates a Processor bound to a registry and publisher.
func NewProcessor(registry *pin.Registry, publisher StatusPublisher) *Processor {
	return &Processor{
		registry:  registry,
		publisher: publisher,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the processor.
func (p *Processor) SetLogger(logger Logger) {
	p.logger = logger
}

// AddRecorder attaches a state change recorder. Multiple recorders may be
// attached; each receives every successful change.
func (p *Processor) AddRecorder(recorder Recorder) {
	p.recorders = append(p.recorders, recorder)
}

// Handle dispatches one decoded control message.
//
// The pin-set part is handled first: a successful mutation triggers a status
// publish, while an unknown pin identifier is reported and otherwise
// ignored. The status-request part is then evaluated independently; a
// message satisfying both patterns performs both actions.
func (p *Processor) Handle(msg message.Control) {
	if msg.IsNoop() {
		p.logger.Debug("control message matched no pattern, ignored")
		return
	}

	if msg.Set != nil {
		p.handleSet(*msg.Set)
	}

	if msg.StatusRequest {
		p.publishStatus()
	}
}

// handleSet applies one pin-set request.
func (p *Processor) handleSet(set message.SetPin) {
	err := p.registry.Set(set.Pin, set.State)
	switch {
	case err == nil:
		p.logger.Info("pin set", "gpio", set.Pin, "state", set.State)
		p.record(set.Pin, set.State)
		p.publishStatus()
	case errors.Is(err, pin.ErrPinNotFound):
		// Reportable, non-fatal; no status publish for unknown pins.
		p.logger.Warn("control message referenced unknown pin", "gpio", set.Pin)
	default:
		// Driver failure: the registry state was still updated, so the
		// snapshot we publish reflects the commanded state.
		p.logger.Warn("pin driver apply failed", "gpio", set.Pin, "error", err)
		p.record(set.Pin, set.State)
		p.publishStatus()
	}
}

// record forwards a state change to every attached recorder.
func (p *Processor) record(gpio int, state bool) {
	for _, recorder := range p.recorders {
		recorder.RecordChange(gpio, state)
	}
}

// publishStatus publishes the current registry snapshot.
func (p *Processor) publishStatus() {
	if err := p.publisher.Status(p.registry.All()); err != nil {
		p.logger.Warn("status publish failed", "error", err)
	}
}
