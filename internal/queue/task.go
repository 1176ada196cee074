package queue

import (
	"time"
)

// Status is the lifecycle state of a task.
// Transitions are monotonic: pending -> in_progress -> completed or failed.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// TaskType identifies the pipeline stage a task belongs to.
type TaskType string

const (
	TypeResearch TaskType = "research"
	TypeAnalysis TaskType = "analysis"
	TypeWriting  TaskType = "writing"
	TypeSEO      TaskType = "seo"
	TypeQuality  TaskType = "quality"
)

// Priority levels. Higher values dequeue first among eligible tasks.
const (
	PriorityLow    = 1
	PriorityMedium = 2
	PriorityHigh   = 3
)

// Task is the atomic unit of work tracked by the queue.
type Task struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Type         TaskType       `json:"type"`
	Agent        string         `json:"agent,omitempty"`
	Status       Status         `json:"status"`
	Dependencies []string       `json:"dependencies"`
	Priority     int            `json:"priority"`
	Input        map[string]any `json:"input,omitempty"`
	Result       map[string]any `json:"result,omitempty"`
	Error        string         `json:"error,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

// cloneTask returns a deep copy so callers cannot mutate queue state.
func cloneTask(task *Task) *Task {
	if task == nil {
		return nil
	}

	cp := *task
	if task.Dependencies != nil {
		cp.Dependencies = append([]string(nil), task.Dependencies...)
	}
	cp.Input = cloneMap(task.Input)
	cp.Result = cloneMap(task.Result)
	if task.CompletedAt != nil {
		t := *task.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

// cloneMap shallow-copies a payload map. Values are treated as immutable
// once handed to the queue; only the top-level map is owned here.
func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
