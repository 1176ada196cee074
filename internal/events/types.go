package events

import (
	"time"

	"github.com/aristath/contentpipe/internal/queue"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	TaskID() string
}

// Topic constants
const (
	TopicTask     = "task"
	TopicPipeline = "pipeline"
)

// Event type constants
const (
	EventTypeTaskStarted      = "task.started"
	EventTypeTaskCompleted    = "task.completed"
	EventTypeTaskFailed       = "task.failed"
	EventTypePipelineCreated  = "pipeline.created"
	EventTypePipelineProgress = "pipeline.progress"
	EventTypePipelineFinished = "pipeline.finished"
)

// TaskStartedEvent is published when a task transitions to in_progress.
type TaskStartedEvent struct {
	ID        string
	Type      queue.TaskType
	Title     string
	Agent     string
	Timestamp time.Time
}

func (e TaskStartedEvent) EventType() string { return EventTypeTaskStarted }
func (e TaskStartedEvent) TaskID() string    { return e.ID }

// TaskCompletedEvent is published when a task completes successfully.
type TaskCompletedEvent struct {
	ID        string
	Type      queue.TaskType
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskCompletedEvent) EventType() string { return EventTypeTaskCompleted }
func (e TaskCompletedEvent) TaskID() string    { return e.ID }

// TaskFailedEvent is published when a task fails, either from its executor
// or by propagation from a failed dependency.
type TaskFailedEvent struct {
	ID         string
	Type       queue.TaskType
	Error      string
	Propagated bool
	Timestamp  time.Time
}

func (e TaskFailedEvent) EventType() string { return EventTypeTaskFailed }
func (e TaskFailedEvent) TaskID() string    { return e.ID }

// PipelineCreatedEvent is published when a pipeline's stage graph is built.
type PipelineCreatedEvent struct {
	PipelineID string
	Topic      string
	Tasks      int
	Timestamp  time.Time
}

func (e PipelineCreatedEvent) EventType() string { return EventTypePipelineCreated }
func (e PipelineCreatedEvent) TaskID() string    { return "" }

// PipelineProgressEvent is published after each scheduling pass.
type PipelineProgressEvent struct {
	PipelineID string
	Iteration  int
	Total      int
	Completed  int
	InProgress int
	Failed     int
	Pending    int
	Timestamp  time.Time
}

func (e PipelineProgressEvent) EventType() string { return EventTypePipelineProgress }
func (e PipelineProgressEvent) TaskID() string    { return "" }

// PipelineFinishedEvent is published when the run loop reaches a terminal state.
type PipelineFinishedEvent struct {
	PipelineID string
	Status     string
	Iterations int
	Timestamp  time.Time
}

func (e PipelineFinishedEvent) EventType() string { return EventTypePipelineFinished }
func (e PipelineFinishedEvent) TaskID() string    { return "" }
