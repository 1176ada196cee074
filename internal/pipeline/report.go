package pipeline

import (
	"time"

	"github.com/aristath/contentpipe/internal/persistence"
	"github.com/aristath/contentpipe/internal/queue"
)

// TaskReport is the per-stage slice of a pipeline report.
type TaskReport struct {
	ID     string         `json:"id"`
	Title  string         `json:"title"`
	Agent  string         `json:"agent,omitempty"`
	Status queue.Status   `json:"status"`
	Result map[string]any `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// Report is the consumer-facing summary of a pipeline run. Tasks are keyed
// by stage type so consumers address results without knowing task IDs.
type Report struct {
	PipelineID  string                        `json:"pipeline_id"`
	Topic       string                        `json:"topic"`
	Status      Status                        `json:"status"`
	Iterations  int                           `json:"iterations"`
	Tasks       map[queue.TaskType]TaskReport `json:"tasks"`
	CreatedAt   time.Time                     `json:"created_at"`
	CompletedAt *time.Time                    `json:"completed_at,omitempty"`
}

// Duration returns the wall time from creation to completion, zero while
// the pipeline is still running.
func (r *Report) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.CreatedAt)
}

// Report summarizes the pipeline's current state.
func (e *Engine) Report(p *Pipeline) *Report {
	return buildReport(p.ID, p.Topic, p.Status, p.Iterations, p.CreatedAt, p.CompletedAt, p.Tasks())
}

// ReportFromRecord rebuilds a report from persisted state, for consumers
// reading finished runs out of the store.
func ReportFromRecord(rec *persistence.PipelineRecord, tasks []*queue.Task) *Report {
	return buildReport(rec.ID, rec.Topic, Status(rec.Status), rec.Iterations, rec.CreatedAt, rec.CompletedAt, tasks)
}

func buildReport(id, topic string, status Status, iterations int, createdAt time.Time, completedAt *time.Time, tasks []*queue.Task) *Report {
	r := &Report{
		PipelineID:  id,
		Topic:       topic,
		Status:      status,
		Iterations:  iterations,
		Tasks:       make(map[queue.TaskType]TaskReport, len(tasks)),
		CreatedAt:   createdAt,
		CompletedAt: completedAt,
	}
	for _, task := range tasks {
		r.Tasks[task.Type] = TaskReport{
			ID:     task.ID,
			Title:  task.Title,
			Agent:  task.Agent,
			Status: task.Status,
			Result: task.Result,
			Error:  task.Error,
		}
	}
	return r
}
