package agent

import "time"

// Clock abstracts wall time so reconnect spacing and telemetry periods are
// testable with an injected clock.
type Clock interface {
	Now() time.Time
}

// realClock is the production Clock.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
