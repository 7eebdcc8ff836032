package history

import (
	"context"
	"time"
)

// recordTimeout bounds a single journal insert from the command path.
const recordTimeout = 2 * time.Second

// Logger is the minimal logging interface the recorder needs.
type Logger interface {
	Warn(msg string, args ...any)
}

// Recorder adapts the Journal to the command path: context-free, bounded,
// and failure-tolerant. A journal write that fails is logged and dropped;
// pin control never depends on the disk.
type Recorder struct {
	journal *Journal
	logger  Logger
}

// NewRecorder wraps a Journal for use from the command processor.
func NewRecorder(journal *Journal, logger Logger) *Recorder {
	return &Recorder{journal: journal, logger: logger}
}

// RecordChange journals one pin state change from a control command.
func (r *Recorder) RecordChange(gpio int, state bool) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if err := r.journal.Record(ctx, gpio, state, SourceCommand); err != nil {
		if r.logger != nil {
			r.logger.Warn("journal write failed", "gpio", gpio, "error", err)
		}
	}
}
