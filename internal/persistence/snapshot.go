package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aristath/contentpipe/internal/queue"
)

// SaveSnapshot persists the full queue state for a pipeline in a single
// transaction. Existing rows for the pipeline are replaced. Tasks are
// written before any dependency edges so the existence checks hold for
// arbitrary DAGs, and each task's slot in snap.Order becomes its stored
// position.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, pipelineID string, snap *queue.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Clear previous rows; dependency edges cascade.
	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE pipeline_id = ?`, pipelineID); err != nil {
		return fmt.Errorf("failed to clear previous snapshot: %w", err)
	}

	for position, taskID := range snap.Order {
		task, ok := snap.Tasks[taskID]
		if !ok {
			return fmt.Errorf("snapshot order references unknown task %q", taskID)
		}
		if err := upsertTask(ctx, tx, pipelineID, position, task); err != nil {
			return err
		}
	}

	for _, taskID := range snap.Order {
		if err := replaceDependencies(ctx, tx, snap.Tasks[taskID]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// LoadSnapshot rebuilds the queue state for a pipeline from storage. The
// stored positions become the snapshot's order list, so a restored queue
// schedules exactly like the saved one.
func (s *SQLiteStore) LoadSnapshot(ctx context.Context, pipelineID string) (*queue.Snapshot, error) {
	tasks, err := s.ListTasks(ctx, pipelineID)
	if err != nil {
		return nil, err
	}

	snap := &queue.Snapshot{
		Tasks: make(map[string]*queue.Task, len(tasks)),
		Order: make([]string, 0, len(tasks)),
	}
	for _, task := range tasks {
		snap.Tasks[task.ID] = task
		snap.Order = append(snap.Order, task.ID)
	}

	return snap, nil
}
