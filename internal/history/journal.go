package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Journal configuration constants.
const (
	// dirPermissions is the permission mode for the journal directory.
	dirPermissions = 0750

	// filePermissions is the permission mode for the journal file.
	filePermissions = 0600

	// msPerSecond converts seconds to milliseconds.
	msPerSecond = 1000

	// connectionTimeout bounds the connectivity check at open.
	connectionTimeout = 5 * time.Second

	defaultRecentLimit = 50
	maxRecentLimit     = 200
)

// schema creates the journal table on first open. The journal is append
// only; the agent never reads it to restore state.
const schema = `
CREATE TABLE IF NOT EXISTS pin_events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	gpio       INTEGER NOT NULL,
	state      INTEGER NOT NULL,
	source     TEXT NOT NULL,
	created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_pin_events_gpio_time ON pin_events(gpio, created_at);
`

// Event sources recorded in the journal.
const (
	SourceCommand = "command"
	SourceBoot    = "boot"
)

// Config contains journal configuration options.
type Config struct {
	// Path is the filesystem path to the SQLite journal file.
	// The directory is created if it does not exist.
	Path string

	// BusyTimeout is the maximum time to wait for a database lock (seconds).
	BusyTimeout int
}

// Entry is one recorded pin state change.
type Entry struct {
	ID        int64
	GPIO      int
	State     bool
	Source    string
	CreatedAt time.Time
}

// Journal records pin state changes to a local SQLite file for post-hoc
// diagnosis. It is write-mostly; reads exist for inspection tooling and
// tests.
type Journal struct {
	db   *sql.DB
	path string
}

// Open creates the journal file and schema if needed and returns a ready
// Journal.
//
// Parameters:
//   - cfg: Journal configuration
//
// Returns:
//   - *Journal: Open journal ready for writes
//   - error: If the file cannot be opened or the schema cannot be applied
func Open(cfg Config) (*Journal, error) {
	if cfg.Path == "" {
		return nil, ErrNoPath
	}

	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_synchronous=NORMAL",
		cfg.Path,
		cfg.BusyTimeout*msPerSecond,
	)

	sqlDB, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}

	// SQLite only supports one writer.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("verifying journal connection: %w", err)
	}

	if _, err := sqlDB.ExecContext(ctx, schema); err != nil {
		sqlDB.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("applying journal schema: %w", err)
	}

	// Owner read/write only. Ignore error, the file might appear after the
	// first write on some filesystems.
	_ = os.Chmod(cfg.Path, filePermissions)

	return &Journal{db: sqlDB, path: cfg.Path}, nil
}

// Record inserts a pin state change.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - gpio: Pin number the change applies to
//   - state: New logical state
//   - source: Origin of the change (command, boot)
//
// Returns:
//   - error: nil on success, otherwise the underlying database error
func (j *Journal) Record(ctx context.Context, gpio int, state bool, source string) error {
	if gpio < 0 {
		return fmt.Errorf("%w: gpio %d", ErrInvalidGPIO, gpio)
	}
	if source == "" {
		source = SourceCommand
	}

	stateInt := 0
	if state {
		stateInt = 1
	}

	_, err := j.db.ExecContext(ctx,
		"INSERT INTO pin_events (gpio, state, source) VALUES (?, ?, ?)",
		gpio, stateInt, source,
	)
	if err != nil {
		return fmt.Errorf("inserting pin event: %w", err)
	}
	return nil
}

// Recent returns recent entries for a pin, newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - gpio: Pin number to query
//   - limit: Maximum entries to return (default 50, max 200)
//
// Returns:
//   - []Entry: Entries ordered by created_at DESC
//   - error: nil on success, otherwise the underlying query error
func (j *Journal) Recent(ctx context.Context, gpio int, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, gpio, state, source, created_at
		 FROM pin_events
		 WHERE gpio = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		gpio, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying pin events: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var entry Entry
		var stateInt int
		var createdAt string

		if err := rows.Scan(&entry.ID, &entry.GPIO, &stateInt, &entry.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning pin event: %w", err)
		}
		entry.State = stateInt != 0

		timestamp, err := parseTimestamp(createdAt)
		if err != nil {
			return nil, err
		}
		entry.CreatedAt = timestamp

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pin events: %w", err)
	}
	return entries, nil
}

// Prune deletes entries older than the given duration.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - olderThan: Retention window; entries older than now-olderThan are
//     deleted
//
// Returns:
//   - int64: Number of rows deleted
//   - error: nil on success, otherwise the underlying database error
func (j *Journal) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format("2006-01-02T15:04:05Z")
	result, err := j.db.ExecContext(ctx,
		"DELETE FROM pin_events WHERE created_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting pin events: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return rowsAffected, nil
}

// Path returns the filesystem path to the journal file.
func (j *Journal) Path() string {
	return j.path
}

// Close closes the journal file.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	if err := j.db.Close(); err != nil {
		return fmt.Errorf("closing journal: %w", err)
	}
	return nil
}

// parseTimestamp parses a timestamp stored by SQLite.
func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("created_at is empty")
	}

	timestamp, err := time.Parse(time.RFC3339, value)
	if err == nil {
		return timestamp, nil
	}

	fallback, fallbackErr := time.Parse("2006-01-02 15:04:05", value)
	if fallbackErr == nil {
		return fallback, nil
	}

	return time.Time{}, fmt.Errorf("parsing created_at: %w", err)
}
