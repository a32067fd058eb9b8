package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"videoinsight/internal/task"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond

	defaultListLimit = 50
)

// Run is one row of history.
type Run struct {
	TaskID           string
	Type             task.Type
	Source           string
	Title            string
	Status           task.Status
	Progress         int
	Message          string
	TranscriptLength int
	Error            string
	OutputPath       string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	FinishedAt       *time.Time
}

// Duration is the time between creation and the terminal event, or zero
// while the run is still in flight.
func (r Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.CreatedAt)
}

// Store persists runs in SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open creates or connects to the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure history directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path, now: time.Now}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

// Begin records a submitted task. Calling it again for the same id refreshes
// the descriptive columns only.
func (s *Store) Begin(ctx context.Context, t task.Task) error {
	ts := s.timestamp()
	return s.exec(ctx, `INSERT INTO runs (task_id, task_type, source, title, status, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(task_id) DO UPDATE SET
            task_type = excluded.task_type,
            source = excluded.source,
            title = CASE WHEN excluded.title = '' THEN runs.title ELSE excluded.title END`,
		t.ID, string(t.Type), t.Source, t.Title, string(task.StatusPending), ts, ts)
}

// RecordProgress folds a progress event into the row. Progress never moves
// backwards and a terminal status is never overwritten.
func (s *Store) RecordProgress(ctx context.Context, taskID string, status task.Status, progress int, message string) error {
	ts := s.timestamp()
	var finished any
	if status.Terminal() {
		finished = ts
	}
	errText := ""
	if status == task.StatusFailed {
		errText = message
	}
	return s.exec(ctx, `INSERT INTO runs (task_id, status, progress, message, error, created_at, updated_at, finished_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(task_id) DO UPDATE SET
            status = CASE WHEN runs.status IN ('completed', 'failed') THEN runs.status ELSE excluded.status END,
            progress = MAX(runs.progress, excluded.progress),
            message = CASE WHEN runs.status IN ('completed', 'failed') THEN runs.message ELSE excluded.message END,
            error = CASE WHEN excluded.error = '' THEN runs.error ELSE excluded.error END,
            updated_at = excluded.updated_at,
            finished_at = COALESCE(runs.finished_at, excluded.finished_at)`,
		taskID, string(status), progress, message, errText, ts, ts, finished)
}

// RecordTranscript stores descriptive columns carried by transcript_ready.
func (s *Store) RecordTranscript(ctx context.Context, taskID string, typ task.Type, source, title string, length int) error {
	ts := s.timestamp()
	return s.exec(ctx, `INSERT INTO runs (task_id, task_type, source, title, status, transcript_length, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(task_id) DO UPDATE SET
            task_type = CASE WHEN excluded.task_type = '' THEN runs.task_type ELSE excluded.task_type END,
            source = CASE WHEN excluded.source = '' THEN runs.source ELSE excluded.source END,
            title = CASE WHEN excluded.title = '' THEN runs.title ELSE excluded.title END,
            transcript_length = excluded.transcript_length,
            updated_at = excluded.updated_at`,
		taskID, string(typ), source, title, string(task.StatusProcessing), length, ts, ts)
}

// SetOutput records where the exported notes were written.
func (s *Store) SetOutput(ctx context.Context, taskID, path string) error {
	return s.exec(ctx, `UPDATE runs SET output_path = ?, updated_at = ? WHERE task_id = ?`, path, s.timestamp(), taskID)
}

// RecordError stores a follow-up failure without touching status.
func (s *Store) RecordError(ctx context.Context, taskID, message string) error {
	return s.exec(ctx, `UPDATE runs SET error = ?, updated_at = ? WHERE task_id = ?`, message, s.timestamp(), taskID)
}

const selectColumns = `SELECT task_id, task_type, source, title, status, progress, message,
    transcript_length, error, output_path, created_at, updated_at, finished_at FROM runs`

// Get returns a run or nil when absent.
func (s *Store) Get(ctx context.Context, taskID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE task_id = ?", taskID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// List returns the most recently updated runs first.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, selectColumns+" ORDER BY updated_at DESC, task_id LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run              Run
		typ, status      string
		created, updated string
		finished         sql.NullString
	)
	if err := row.Scan(&run.TaskID, &typ, &run.Source, &run.Title, &status, &run.Progress, &run.Message,
		&run.TranscriptLength, &run.Error, &run.OutputPath, &created, &updated, &finished); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Type = task.Type(typ)
	run.Status = task.Status(status)
	run.CreatedAt = parseTime(created)
	run.UpdatedAt = parseTime(updated)
	if finished.Valid {
		ts := parseTime(finished.String)
		run.FinishedAt = &ts
	}
	return run, nil
}

func parseTime(value string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}
	}
	return ts
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
