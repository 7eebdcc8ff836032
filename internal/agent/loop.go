package agent

import (
	"context"
	"time"
)

// TelemetryPublisher publishes the periodic telemetry report.
type TelemetryPublisher interface {
	Telemetry() error
}

// LoopConfig carries the scheduler's collaborators and timing.
type LoopConfig struct {
	Manager   *Manager
	Telemetry TelemetryPublisher

	// TickInterval is the pacing of lifecycle ticks.
	TickInterval time.Duration

	// TelemetryInterval is the spacing between telemetry reports.
	TelemetryInterval time.Duration

	// Clock defaults to wall time when nil.
	Clock Clock

	Logger Logger
}

// Loop is the agent's single execution thread. Every action the agent takes,
// connection management, command dispatch, telemetry, happens inside Step,
// called from one goroutine. This keeps the registry and the state machine
// free of locks.
type Loop struct {
	manager   *Manager
	telemetry TelemetryPublisher

	tickInterval      time.Duration
	telemetryInterval time.Duration

	clock  Clock
	logger Logger

	lastTelemetry time.Time
}

// NewLoop builds the scheduler loop.
func NewLoop(cfg LoopConfig) *Loop {
	l := &Loop{
		manager:           cfg.Manager,
		telemetry:         cfg.Telemetry,
		tickInterval:      cfg.TickInterval,
		telemetryInterval: cfg.TelemetryInterval,
		clock:             cfg.Clock,
		logger:            cfg.Logger,
	}
	if l.clock == nil {
		l.clock = realClock{}
	}
	if l.logger == nil {
		l.logger = noopLogger{}
	}
	return l
}

// Run drives the loop until ctx is cancelled, then closes the broker
// session.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("scheduler loop starting",
		"tick_interval", l.tickInterval,
		"telemetry_interval", l.telemetryInterval)

	ticker := time.NewTicker(l.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("scheduler loop stopping")
			return l.manager.Close()
		case <-ticker.C:
			l.Step(ctx)
		}
	}
}

// Step performs one scheduler iteration: advance the connection lifecycle,
// drain inbound commands, and fire telemetry when the period has elapsed.
// Exposed so tests can drive the loop with an injected clock.
func (l *Loop) Step(ctx context.Context) {
	l.manager.Tick(ctx)
	l.maybeTelemetry()
}

// maybeTelemetry fires a telemetry report when the interval has elapsed.
// The attempt time is recorded whether or not the publish succeeds, so a
// down broker does not cause a burst of reports on recovery.
func (l *Loop) maybeTelemetry() {
	now := l.clock.Now()
	if !l.lastTelemetry.IsZero() && now.Sub(l.lastTelemetry) < l.telemetryInterval {
		return
	}
	l.lastTelemetry = now

	if err := l.telemetry.Telemetry(); err != nil {
		l.logger.Warn("telemetry publish failed", "error", err)
	}
}
