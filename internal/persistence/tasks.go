package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/aristath/contentpipe/internal/queue"
)

// SaveTask saves or updates a task and its dependencies under a pipeline.
// Uses ON CONFLICT to make saves idempotent. Position fixes the task's slot
// in the queue's insertion order so restores stay deterministic.
func (s *SQLiteStore) SaveTask(ctx context.Context, pipelineID string, position int, task *queue.Task) error {
	// Begin transaction with serializable isolation (BEGIN IMMEDIATE)
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := upsertTask(ctx, tx, pipelineID, position, task); err != nil {
		return err
	}
	if err := replaceDependencies(ctx, tx, task); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// upsertTask inserts or updates a single task row inside tx.
func upsertTask(ctx context.Context, tx *sql.Tx, pipelineID string, position int, task *queue.Task) error {
	input, err := marshalPayload(task.Input)
	if err != nil {
		return fmt.Errorf("failed to encode task input: %w", err)
	}
	result, err := marshalPayload(task.Result)
	if err != nil {
		return fmt.Errorf("failed to encode task result: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (id, pipeline_id, position, type, title, agent, priority, status, input, result, error, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			pipeline_id = excluded.pipeline_id,
			position = excluded.position,
			type = excluded.type,
			title = excluded.title,
			agent = excluded.agent,
			priority = excluded.priority,
			status = excluded.status,
			input = excluded.input,
			result = excluded.result,
			error = excluded.error,
			completed_at = excluded.completed_at
	`, task.ID, pipelineID, position, string(task.Type), task.Title, task.Agent,
		task.Priority, string(task.Status), input, result, task.Error,
		formatTime(task.CreatedAt), nullableTime(task.CompletedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert task: %w", err)
	}
	return nil
}

// replaceDependencies rewrites the dependency edges for a task inside tx.
func replaceDependencies(ctx context.Context, tx *sql.Tx, task *queue.Task) error {
	// Delete existing dependencies for this task
	_, err := tx.ExecContext(ctx, `DELETE FROM task_dependencies WHERE task_id = ?`, task.ID)
	if err != nil {
		return fmt.Errorf("failed to delete old dependencies: %w", err)
	}

	// Insert new dependencies
	for _, depID := range task.Dependencies {
		// Check if dependency exists (enforces foreign key)
		var exists int
		err = tx.QueryRowContext(ctx, `SELECT 1 FROM tasks WHERE id = ?`, depID).Scan(&exists)
		if err == sql.ErrNoRows {
			return fmt.Errorf("foreign key constraint failed: dependency task %s does not exist", depID)
		}
		if err != nil {
			return fmt.Errorf("failed to check dependency existence: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO task_dependencies (task_id, depends_on_id)
			VALUES (?, ?)
		`, task.ID, depID)
		if err != nil {
			return fmt.Errorf("failed to insert dependency %s -> %s: %w", task.ID, depID, err)
		}
	}
	return nil
}

// GetTask retrieves a task by ID, including its dependencies.
func (s *SQLiteStore) GetTask(ctx context.Context, taskID string) (*queue.Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, title, agent, priority, status, input, result, error, created_at, completed_at
		FROM tasks
		WHERE id = ?
	`, taskID)

	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task not found: %s", taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query task: %w", err)
	}

	if err := s.loadDependencies(ctx, task); err != nil {
		return nil, err
	}

	return task, nil
}

// ListTasks returns all tasks belonging to a pipeline in queue order.
func (s *SQLiteStore) ListTasks(ctx context.Context, pipelineID string) ([]*queue.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, title, agent, priority, status, input, result, error, created_at, completed_at
		FROM tasks
		WHERE pipeline_id = ?
		ORDER BY position
	`, pipelineID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*queue.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	// Dependencies load after the task scan so only one of the pooled
	// connections is held at a time.
	for _, task := range tasks {
		if err := s.loadDependencies(ctx, task); err != nil {
			return nil, err
		}
	}

	return tasks, nil
}

// loadDependencies fills in the dependency IDs for a task.
func (s *SQLiteStore) loadDependencies(ctx context.Context, task *queue.Task) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT depends_on_id
		FROM task_dependencies
		WHERE task_id = ?
	`, task.ID)
	if err != nil {
		return fmt.Errorf("failed to query dependencies for task %s: %w", task.ID, err)
	}
	defer rows.Close()

	task.Dependencies = []string{}
	for rows.Next() {
		var depID string
		if err := rows.Scan(&depID); err != nil {
			return fmt.Errorf("failed to scan dependency: %w", err)
		}
		task.Dependencies = append(task.Dependencies, depID)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating dependencies: %w", err)
	}

	return nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask reconstructs a queue.Task from a task row.
func scanTask(row rowScanner) (*queue.Task, error) {
	task := &queue.Task{}
	var (
		taskType    string
		status      string
		input       sql.NullString
		result      sql.NullString
		errorStr    sql.NullString
		createdAt   string
		completedAt sql.NullString
	)

	err := row.Scan(&task.ID, &taskType, &task.Title, &task.Agent, &task.Priority,
		&status, &input, &result, &errorStr, &createdAt, &completedAt)
	if err != nil {
		return nil, err
	}

	task.Type = queue.TaskType(taskType)
	task.Status = queue.Status(status)
	task.Error = errorStr.String

	if task.Input, err = unmarshalPayload(input); err != nil {
		return nil, fmt.Errorf("failed to decode task input: %w", err)
	}
	if task.Result, err = unmarshalPayload(result); err != nil {
		return nil, fmt.Errorf("failed to decode task result: %w", err)
	}

	if task.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if task.CompletedAt, err = scanNullableTime(completedAt); err != nil {
		return nil, err
	}

	return task, nil
}

// marshalPayload encodes a task payload map as JSON text, nil maps as NULL.
func marshalPayload(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// unmarshalPayload decodes a JSON text column back into a payload map.
func unmarshalPayload(ns sql.NullString) (map[string]any, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(ns.String), &m); err != nil {
		return nil, err
	}
	return m, nil
}
