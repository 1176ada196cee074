package persistence

import (
	"context"
	"database/sql"
	"fmt"
)

// SavePipeline saves or updates a pipeline record.
// Uses ON CONFLICT to make saves idempotent.
func (s *SQLiteStore) SavePipeline(ctx context.Context, rec *PipelineRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pipelines (id, topic, status, iterations, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			topic = excluded.topic,
			status = excluded.status,
			iterations = excluded.iterations,
			completed_at = excluded.completed_at
	`, rec.ID, rec.Topic, rec.Status, rec.Iterations,
		formatTime(rec.CreatedAt), nullableTime(rec.CompletedAt))

	if err != nil {
		return fmt.Errorf("failed to save pipeline: %w", err)
	}
	return nil
}

// GetPipeline retrieves a pipeline record by ID.
func (s *SQLiteStore) GetPipeline(ctx context.Context, pipelineID string) (*PipelineRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, topic, status, iterations, created_at, completed_at
		FROM pipelines
		WHERE id = ?
	`, pipelineID)

	rec, err := scanPipeline(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("pipeline not found: %s", pipelineID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query pipeline: %w", err)
	}

	return rec, nil
}

// ListPipelines returns all pipeline records, newest first.
func (s *SQLiteStore) ListPipelines(ctx context.Context) ([]*PipelineRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, topic, status, iterations, created_at, completed_at
		FROM pipelines
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pipelines: %w", err)
	}
	defer rows.Close()

	var recs []*PipelineRecord
	for rows.Next() {
		rec, err := scanPipeline(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pipeline: %w", err)
		}
		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pipelines: %w", err)
	}

	return recs, nil
}

// scanPipeline reconstructs a PipelineRecord from a pipeline row.
func scanPipeline(row rowScanner) (*PipelineRecord, error) {
	rec := &PipelineRecord{}
	var (
		createdAt   string
		completedAt sql.NullString
	)

	err := row.Scan(&rec.ID, &rec.Topic, &rec.Status, &rec.Iterations, &createdAt, &completedAt)
	if err != nil {
		return nil, err
	}

	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if rec.CompletedAt, err = scanNullableTime(completedAt); err != nil {
		return nil, err
	}

	return rec, nil
}
