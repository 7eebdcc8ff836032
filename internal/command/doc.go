// Package command dispatches decoded control messages against the pin
// registry.
//
// The processor is deliberately thin: validation lives in the registry
// (unknown pin identifiers) and in the codec (field types), leaving the
// processor to sequence side effects: mutate, then publish. Unknown pins
// and publish failures are diagnostic log events, never errors surfaced to
// the message sender.
package command
