// Package persistence provides the SQLite-backed store for pipelines,
// tasks, and queue snapshots.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aristath/contentpipe/internal/queue"
	_ "modernc.org/sqlite"
)

// PipelineRecord is the persisted pipeline-level state.
type PipelineRecord struct {
	ID          string
	Topic       string
	Status      string
	Iterations  int
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// EventRecord is one entry in a pipeline's run history.
type EventRecord struct {
	TaskID    string
	EventType string
	Detail    string
	Timestamp time.Time
}

// Store defines the persistence interface for pipelines, tasks, and
// queue snapshots.
type Store interface {
	// Pipeline operations
	SavePipeline(ctx context.Context, rec *PipelineRecord) error
	GetPipeline(ctx context.Context, pipelineID string) (*PipelineRecord, error)
	ListPipelines(ctx context.Context) ([]*PipelineRecord, error)

	// Task operations
	SaveTask(ctx context.Context, pipelineID string, position int, task *queue.Task) error
	GetTask(ctx context.Context, taskID string) (*queue.Task, error)
	ListTasks(ctx context.Context, pipelineID string) ([]*queue.Task, error)

	// Queue snapshots
	SaveSnapshot(ctx context.Context, pipelineID string, snap *queue.Snapshot) error
	LoadSnapshot(ctx context.Context, pipelineID string) (*queue.Snapshot, error)

	// Run history
	RecordEvent(ctx context.Context, pipelineID string, ev *EventRecord) error
	GetHistory(ctx context.Context, pipelineID string) ([]EventRecord, error)

	// Lifecycle
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed store at the given path.
// Creates parent directories if needed. Enables WAL mode, foreign keys, and busy timeout.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	// Note: modernc.org/sqlite doesn't support _foreign_keys in connection string
	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return newStore(ctx, db)
}

// NewMemoryStore creates an in-memory SQLite store for testing.
// Uses a shared cache so multiple connections see the same database.
func NewMemoryStore(ctx context.Context) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", "file::memory:?mode=memory&cache=shared")
	if err != nil {
		return nil, fmt.Errorf("failed to open memory database: %w", err)
	}

	return newStore(ctx, db)
}

func newStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	// Enable foreign keys via PRAGMA (required for modernc.org/sqlite)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// One connection for primary queries, one for subqueries
	db.SetMaxOpenConns(2)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Timestamps are stored as RFC 3339 strings so values survive the driver's
// TEXT affinity unambiguously.
const timeFormat = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse stored timestamp %q: %w", s, err)
	}
	return t, nil
}

// nullableTime converts an optional timestamp for storage.
func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

// scanNullableTime converts a stored optional timestamp back.
func scanNullableTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
