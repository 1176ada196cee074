// Package pipeline builds content stage graphs and drives them to a
// terminal state.
package pipeline

import (
	"errors"
	"time"

	"github.com/aristath/contentpipe/internal/queue"
)

// Status is the lifecycle state of a pipeline run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Sentinel errors returned by pipeline operations.
var (
	ErrEmptyTopic       = errors.New("pipeline topic is empty")
	ErrNoStages         = errors.New("pipeline has no stages")
	ErrDuplicateStage   = errors.New("duplicate stage type")
	ErrUnknownStageDep  = errors.New("stage depends on undeclared stage")
	ErrPipelineFinished = errors.New("pipeline already finished")
)

// Pipeline tracks one content run from creation to terminal state. The
// queue it owns is the single system of record for task state; Pipeline
// itself only carries run-level bookkeeping.
type Pipeline struct {
	ID          string
	Topic       string
	Stages      []string // task IDs in stage creation order
	Status      Status
	Iterations  int
	CreatedAt   time.Time
	CompletedAt *time.Time

	queue  *queue.TaskQueue
	byType map[queue.TaskType]string // stage type -> task ID
}

// Task returns a clone of the pipeline's task for a stage type.
func (p *Pipeline) Task(stageType queue.TaskType) (*queue.Task, bool) {
	id, ok := p.byType[stageType]
	if !ok {
		return nil, false
	}
	return p.queue.Get(id)
}

// Tasks returns clones of all pipeline tasks in creation order.
func (p *Pipeline) Tasks() []*queue.Task {
	return p.queue.Tasks()
}

// Counts tallies the pipeline's tasks by status.
func (p *Pipeline) Counts() queue.Counts {
	return p.queue.Counts()
}

// Snapshot captures the pipeline's full queue state.
func (p *Pipeline) Snapshot() *queue.Snapshot {
	return p.queue.Snapshot()
}

// finish stamps the terminal status and completion time.
func (p *Pipeline) finish(status Status) {
	now := time.Now()
	p.Status = status
	p.CompletedAt = &now
}
