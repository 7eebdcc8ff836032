// Package history provides an append-only SQLite journal of pin state
// changes.
//
// The journal exists for diagnosis, answering "when did pin 17 last turn
// on, and who asked". It is deliberately not a persistence layer: the agent
// never reads it at startup, and pins always boot LOW regardless of what
// the journal holds. Deleting the file loses nothing but history.
//
// Writes happen on the scheduler goroutine via the Recorder adapter, which
// bounds each insert with a short timeout so a slow disk cannot stall
// command processing.
package history
