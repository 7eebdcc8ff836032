package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

// openTestJournal creates a journal backed by a file in a test temp dir.
func openTestJournal(t *testing.T) *Journal {
	t.Helper()

	journal, err := Open(Config{
		Path:        filepath.Join(t.TempDir(), "events.db"),
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		journal.Close()
	})
	return journal
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	if !errors.Is(err, ErrNoPath) {
		t.Errorf("Open error = %v, want ErrNoPath", err)
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "events.db")
	journal, err := Open(Config{Path: path, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer journal.Close()

	if journal.Path() != path {
		t.Errorf("Path() = %q, want %q", journal.Path(), path)
	}
}

func TestRecordAndRecent(t *testing.T) {
	journal := openTestJournal(t)
	ctx := context.Background()

	if err := journal.Record(ctx, 17, true, SourceCommand); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := journal.Record(ctx, 17, false, SourceCommand); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := journal.Record(ctx, 5, true, SourceBoot); err != nil {
		t.Fatalf("Record: %v", err)
	}

	entries, err := journal.Recent(ctx, 17, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Recent returned %d entries, want 2", len(entries))
	}

	// Newest first: the false write came last.
	if entries[0].State {
		t.Error("newest entry state = true, want false")
	}
	if !entries[1].State {
		t.Error("oldest entry state = false, want true")
	}
	for _, entry := range entries {
		if entry.GPIO != 17 {
			t.Errorf("entry gpio = %d, want 17", entry.GPIO)
		}
		if entry.Source != SourceCommand {
			t.Errorf("entry source = %q, want %q", entry.Source, SourceCommand)
		}
		if entry.CreatedAt.IsZero() {
			t.Error("entry has zero timestamp")
		}
	}
}

func TestRecordRejectsNegativeGPIO(t *testing.T) {
	journal := openTestJournal(t)

	err := journal.Record(context.Background(), -1, true, SourceCommand)
	if !errors.Is(err, ErrInvalidGPIO) {
		t.Errorf("Record error = %v, want ErrInvalidGPIO", err)
	}
}

func TestRecordDefaultsSource(t *testing.T) {
	journal := openTestJournal(t)
	ctx := context.Background()

	if err := journal.Record(ctx, 18, true, ""); err != nil {
		t.Fatalf("Record: %v", err)
	}

	entries, err := journal.Recent(ctx, 18, 1)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 1 || entries[0].Source != SourceCommand {
		t.Errorf("entries = %+v, want one entry with source %q", entries, SourceCommand)
	}
}

func TestRecentLimitClamped(t *testing.T) {
	journal := openTestJournal(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := journal.Record(ctx, 15, i%2 == 0, SourceCommand); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	entries, err := journal.Recent(ctx, 15, -1)
	if err != nil {
		t.Fatalf("Recent with negative limit: %v", err)
	}
	if len(entries) != 5 {
		t.Errorf("Recent returned %d entries, want 5", len(entries))
	}
}

func TestRecentUnknownPinEmpty(t *testing.T) {
	journal := openTestJournal(t)

	entries, err := journal.Recent(context.Background(), 99, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Recent returned %d entries for unused pin, want 0", len(entries))
	}
}

func TestPrune(t *testing.T) {
	journal := openTestJournal(t)
	ctx := context.Background()

	// Backdate one entry past the retention window.
	old := time.Now().UTC().Add(-48 * time.Hour).Format("2006-01-02T15:04:05Z")
	if _, err := journal.db.ExecContext(ctx,
		"INSERT INTO pin_events (gpio, state, source, created_at) VALUES (?, ?, ?, ?)",
		17, 1, SourceCommand, old,
	); err != nil {
		t.Fatalf("backdated insert: %v", err)
	}
	if err := journal.Record(ctx, 17, false, SourceCommand); err != nil {
		t.Fatalf("Record: %v", err)
	}

	deleted, err := journal.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Prune deleted %d rows, want 1", deleted)
	}

	entries, err := journal.Recent(ctx, 17, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("entries after prune = %d, want 1", len(entries))
	}
}

func TestPruneRejectsNonPositiveWindow(t *testing.T) {
	journal := openTestJournal(t)

	if _, err := journal.Prune(context.Background(), 0); err == nil {
		t.Error("Prune(0) succeeded, want error")
	}
}

func TestCloseNilSafe(t *testing.T) {
	var journal Journal
	if err := journal.Close(); err != nil {
		t.Errorf("Close on zero journal: %v", err)
	}
}

// ============================================================
// Recorder
// ============================================================

type warnCapture struct {
	warnings int
}

func (w *warnCapture) Warn(string, ...any) { w.warnings++ }

func TestRecorderWritesThrough(t *testing.T) {
	journal := openTestJournal(t)
	recorder := NewRecorder(journal, nil)

	recorder.RecordChange(17, true)

	entries, err := journal.Recent(context.Background(), 17, 1)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 1 || !entries[0].State {
		t.Errorf("entries = %+v, want one true entry", entries)
	}
}

func TestRecorderAbsorbsFailures(t *testing.T) {
	journal := openTestJournal(t)
	logger := &warnCapture{}
	recorder := NewRecorder(journal, logger)

	// A closed journal makes every write fail; the recorder must only log.
	journal.Close()
	recorder.RecordChange(17, true)

	if logger.warnings != 1 {
		t.Errorf("warnings = %d, want 1", logger.warnings)
	}
}
