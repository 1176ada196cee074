package persistence

import (
	"context"
	"fmt"
	"time"
)

// RecordEvent appends one entry to a pipeline's run history.
// Events are append-only (no upsert needed).
func (s *SQLiteStore) RecordEvent(ctx context.Context, pipelineID string, ev *EventRecord) error {
	// Create 5-second timeout context
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pipeline_events (pipeline_id, task_id, event_type, detail, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, pipelineID, ev.TaskID, ev.EventType, ev.Detail, formatTime(ts))
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}

	return nil
}

// GetHistory retrieves a pipeline's run history in chronological order.
// Returns empty slice (not nil) if no history exists.
func (s *SQLiteStore) GetHistory(ctx context.Context, pipelineID string) ([]EventRecord, error) {
	// Create 5-second timeout context
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// Double sort: timestamp ASC, id ASC ensures correct order even with same-instant timestamps
	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, event_type, detail, timestamp
		FROM pipeline_events
		WHERE pipeline_id = ?
		ORDER BY timestamp ASC, id ASC
	`, pipelineID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	// Return empty slice (not nil) if no history
	history := []EventRecord{}
	for rows.Next() {
		var (
			ev EventRecord
			ts string
		)
		if err := rows.Scan(&ev.TaskID, &ev.EventType, &ev.Detail, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if ev.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		history = append(history, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}

	return history, nil
}
