package persistence

import (
	"context"
)

// initSchema creates all required tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS pipelines (
		id TEXT PRIMARY KEY,
		topic TEXT NOT NULL,
		status TEXT NOT NULL,
		iterations INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		completed_at TEXT
	);

	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		pipeline_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		agent TEXT NOT NULL,
		priority INTEGER NOT NULL,
		status TEXT NOT NULL,
		input TEXT,
		result TEXT,
		error TEXT,
		created_at TEXT NOT NULL,
		completed_at TEXT,
		FOREIGN KEY (pipeline_id) REFERENCES pipelines(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_pipeline_id ON tasks(pipeline_id);

	CREATE TABLE IF NOT EXISTS task_dependencies (
		task_id TEXT NOT NULL,
		depends_on_id TEXT NOT NULL,
		PRIMARY KEY (task_id, depends_on_id),
		FOREIGN KEY (task_id) REFERENCES tasks(id) ON DELETE CASCADE,
		FOREIGN KEY (depends_on_id) REFERENCES tasks(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_task_dependencies_task_id ON task_dependencies(task_id);

	CREATE TABLE IF NOT EXISTS pipeline_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		pipeline_id TEXT NOT NULL,
		task_id TEXT,
		event_type TEXT NOT NULL,
		detail TEXT,
		timestamp TEXT NOT NULL,
		FOREIGN KEY (pipeline_id) REFERENCES pipelines(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_pipeline_events_pipeline_timestamp
		ON pipeline_events(pipeline_id, timestamp);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}
