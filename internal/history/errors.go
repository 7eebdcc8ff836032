package history

import "errors"

// Sentinel errors for journal operations. Wrap with fmt.Errorf("%w: ...")
// and match with errors.Is.
var (
	// ErrNoPath indicates the journal was opened without a file path.
	ErrNoPath = errors.New("journal path is required")

	// ErrInvalidGPIO indicates a negative pin number was recorded.
	ErrInvalidGPIO = errors.New("invalid gpio number")
)
