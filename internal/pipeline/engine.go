package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/contentpipe/internal/agent"
	"github.com/aristath/contentpipe/internal/events"
	"github.com/aristath/contentpipe/internal/logging"
	"github.com/aristath/contentpipe/internal/persistence"
	"github.com/aristath/contentpipe/internal/queue"
)

// DefaultMaxIterations bounds the scheduling loop. A graph that has not
// drained after this many passes is treated as stuck and the run fails.
const DefaultMaxIterations = 20

// Config configures the pipeline engine.
type Config struct {
	Registry      agent.Registry    // executors per stage type
	Stages        []StageSpec       // stage graph; DefaultStages() when nil
	Store         persistence.Store // optional; nil disables persistence
	Bus           *events.Bus       // optional; nil disables events
	Logger        *logging.Logger   // optional
	MaxIterations int               // scheduling pass bound (default 20)
	Concurrency   int               // max concurrent tasks per batch (default 1)
}

// Engine builds stage graphs and drives them to a terminal state.
type Engine struct {
	config Config
	logger *logging.Logger
}

// NewEngine creates a pipeline engine, applying config defaults.
func NewEngine(cfg Config) *Engine {
	if cfg.Stages == nil {
		cfg.Stages = DefaultStages()
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NopLogger()
	}

	return &Engine{config: cfg, logger: cfg.Logger}
}

// CreatePipeline builds the stage graph for a topic: one task per stage,
// dependency edges wired by stage type, every input seeded with the topic
// and the task's own id. The graph is validated for cycles before anything
// runs, so a malformed stage list never enters the scheduling loop.
func (e *Engine) CreatePipeline(ctx context.Context, topic string) (*Pipeline, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, ErrEmptyTopic
	}
	if err := validateStages(e.config.Stages); err != nil {
		return nil, err
	}

	p := &Pipeline{
		ID:        newID("pipe"),
		Topic:     topic,
		Stages:    make([]string, 0, len(e.config.Stages)),
		Status:    StatusRunning,
		CreatedAt: time.Now(),
		queue:     queue.New(),
		byType:    make(map[queue.TaskType]string, len(e.config.Stages)),
	}

	// IDs first so dependency edges can reference stages declared later.
	for _, stage := range e.config.Stages {
		p.byType[stage.Type] = newID(string(stage.Type))
	}

	for _, stage := range e.config.Stages {
		taskID := p.byType[stage.Type]

		input := make(map[string]any, len(stage.Seed)+2)
		for k, v := range stage.Seed {
			input[k] = v
		}
		// Every stage can recover its run context without upstream results.
		input["topic"] = topic
		input["task_id"] = taskID

		deps := make([]string, 0, len(stage.DependsOn))
		for _, depType := range stage.DependsOn {
			deps = append(deps, p.byType[depType])
		}

		task := &queue.Task{
			ID:           taskID,
			Title:        stage.title(topic),
			Type:         stage.Type,
			Agent:        stage.Agent,
			Dependencies: deps,
			Priority:     stage.Priority,
			Input:        input,
			CreatedAt:    time.Now(),
		}
		if err := p.queue.Add(task); err != nil {
			return nil, fmt.Errorf("failed to build stage graph: %w", err)
		}
		p.Stages = append(p.Stages, taskID)
	}

	if _, err := p.queue.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate stage graph: %w", err)
	}

	if err := e.persistPipeline(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to persist pipeline: %w", err)
	}
	if e.config.Store != nil {
		if err := e.config.Store.SaveSnapshot(ctx, p.ID, p.queue.Snapshot()); err != nil {
			return nil, fmt.Errorf("failed to persist initial snapshot: %w", err)
		}
	}

	e.recordHistory(ctx, p.ID, "", events.EventTypePipelineCreated, topic)
	e.publish(events.TopicPipeline, events.PipelineCreatedEvent{
		PipelineID: p.ID,
		Topic:      topic,
		Tasks:      p.queue.Len(),
		Timestamp:  time.Now(),
	})
	e.logger.WithPipeline(p.ID).Info("pipeline created", "topic", topic, "tasks", p.queue.Len())

	return p, nil
}

// Run drives the pipeline to a terminal state. Each pass dispatches the
// ready batch, waits for it, persists the queue, and re-evaluates
// readiness. Executor failures never abort the loop; they are absorbed
// into task state and surface in the final pipeline status.
func (e *Engine) Run(ctx context.Context, p *Pipeline) error {
	if p.Status != StatusRunning {
		return fmt.Errorf("%w: pipeline %s is %s", ErrPipelineFinished, p.ID, p.Status)
	}

	log := e.logger.WithPipeline(p.ID)

	for {
		if err := ctx.Err(); err != nil {
			e.finishRun(context.WithoutCancel(ctx), p, StatusFailed)
			return err
		}

		ready := p.queue.Ready()
		counts := p.queue.Counts()
		if len(ready) == 0 && counts.InProgress == 0 && counts.Pending == 0 {
			break
		}

		if p.Iterations >= e.config.MaxIterations {
			log.Error("iteration bound reached before queue drained",
				"iterations", p.Iterations, "pending", counts.Pending)
			e.finishRun(ctx, p, StatusFailed)
			return fmt.Errorf("pipeline %s exceeded %d scheduling passes", p.ID, e.config.MaxIterations)
		}
		p.Iterations++

		if len(ready) == 0 {
			// Nothing dispatchable this pass; the bound above ends a stall.
			continue
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.config.Concurrency)

		for _, task := range ready {
			t := task
			g.Go(func() error {
				return e.executeTask(gctx, p, t)
			})
		}

		// Task errors are absorbed into queue state, never returned here.
		if err := g.Wait(); err != nil && ctx.Err() != nil {
			e.finishRun(context.WithoutCancel(ctx), p, StatusFailed)
			return ctx.Err()
		}

		e.persistSnapshot(ctx, p)
		e.publishProgress(p)
	}

	counts := p.queue.Counts()
	status := StatusFailed
	if counts.Failed == 0 && counts.Pending == 0 && counts.InProgress == 0 {
		status = StatusCompleted
	}
	e.finishRun(ctx, p, status)
	log.Info("pipeline finished", "status", string(status), "iterations", p.Iterations)

	return nil
}

// executeTask runs one task through its executor. Always returns nil so a
// single failure never aborts the errgroup; failures land in the queue.
func (e *Engine) executeTask(ctx context.Context, p *Pipeline, task *queue.Task) error {
	log := e.logger.WithPipeline(p.ID).WithTask(task.ID)

	if err := ctx.Err(); err != nil {
		e.failTask(ctx, p, task, fmt.Sprintf("context cancelled before execution: %v", err))
		return nil
	}

	if err := p.queue.MarkInProgress(task.ID); err != nil {
		log.Error("failed to mark task in progress", "error", err.Error())
		return nil
	}

	start := time.Now()
	e.recordHistory(ctx, p.ID, task.ID, events.EventTypeTaskStarted, task.Title)
	e.publish(events.TopicTask, events.TaskStartedEvent{
		ID:        task.ID,
		Type:      task.Type,
		Title:     task.Title,
		Agent:     task.Agent,
		Timestamp: start,
	})
	log.Info("task started", "type", string(task.Type), "agent", task.Agent)

	executor, ok := e.config.Registry.For(task.Type)
	if !ok {
		e.failTask(ctx, p, task, fmt.Sprintf("no executor registered for task type %q", task.Type))
		return nil
	}

	result, err := executor.Execute(ctx, e.buildInput(p, task))
	if err != nil {
		e.failTask(ctx, p, task, err.Error())
		return nil
	}

	if err := p.queue.MarkCompleted(task.ID, result); err != nil {
		log.Error("failed to mark task completed", "error", err.Error())
		return nil
	}
	e.recordHistory(ctx, p.ID, task.ID, events.EventTypeTaskCompleted, "")
	e.publish(events.TopicTask, events.TaskCompletedEvent{
		ID:        task.ID,
		Type:      task.Type,
		Duration:  time.Since(start),
		Timestamp: time.Now(),
	})
	log.Info("task completed", "type", string(task.Type), "duration", time.Since(start).String())

	return nil
}

// buildInput assembles a task's dispatch input: the seeded input plus the
// stage's declared bindings over completed dependency results. A stage
// without bindings gets each dependency's whole result under "<type>_data";
// a stage with bindings treats unbound dependencies as pure ordering edges.
func (e *Engine) buildInput(p *Pipeline, task *queue.Task) map[string]any {
	input := make(map[string]any, len(task.Input)+len(task.Dependencies))
	for k, v := range task.Input {
		input[k] = v
	}

	completed := make([]*queue.Task, 0, len(task.Dependencies))
	byType := make(map[queue.TaskType]*queue.Task, len(task.Dependencies))
	for _, depID := range task.Dependencies {
		dep, ok := p.queue.Get(depID)
		if !ok || dep.Status != queue.StatusCompleted {
			continue
		}
		completed = append(completed, dep)
		if _, exists := byType[dep.Type]; !exists {
			byType[dep.Type] = dep
		}
	}

	bindings := bindingsFor(e.config.Stages, task.Type)
	if len(bindings) == 0 {
		for _, dep := range completed {
			input[string(dep.Type)+"_data"] = dep.Result
		}
		return input
	}

	for _, b := range bindings {
		dep, ok := byType[b.From]
		if !ok {
			continue
		}
		if b.Field == "" {
			input[b.Key] = dep.Result
			continue
		}
		if v, ok := dep.Result[b.Field]; ok {
			input[b.Key] = v
		}
	}

	return input
}

// failTask marks a task failed and announces it along with every dependent
// the queue failed by propagation.
func (e *Engine) failTask(ctx context.Context, p *Pipeline, task *queue.Task, reason string) {
	log := e.logger.WithPipeline(p.ID).WithTask(task.ID)

	propagated, err := p.queue.MarkFailed(task.ID, reason)
	if err != nil {
		log.Error("failed to mark task failed", "error", err.Error())
		return
	}

	now := time.Now()
	e.recordHistory(ctx, p.ID, task.ID, events.EventTypeTaskFailed, reason)
	e.publish(events.TopicTask, events.TaskFailedEvent{
		ID:        task.ID,
		Type:      task.Type,
		Error:     reason,
		Timestamp: now,
	})
	log.Warn("task failed", "type", string(task.Type), "error", reason)

	for _, depID := range propagated {
		dep, ok := p.queue.Get(depID)
		if !ok {
			continue
		}
		e.recordHistory(ctx, p.ID, depID, events.EventTypeTaskFailed, dep.Error)
		e.publish(events.TopicTask, events.TaskFailedEvent{
			ID:         depID,
			Type:       dep.Type,
			Error:      dep.Error,
			Propagated: true,
			Timestamp:  now,
		})
	}
}

// finishRun stamps the terminal state, persists it, and announces it.
func (e *Engine) finishRun(ctx context.Context, p *Pipeline, status Status) {
	p.finish(status)
	e.persistSnapshot(ctx, p)
	if err := e.persistPipeline(ctx, p); err != nil {
		e.logger.WithPipeline(p.ID).Warn("failed to persist pipeline record", "error", err.Error())
	}
	e.recordHistory(ctx, p.ID, "", events.EventTypePipelineFinished, string(status))
	e.publish(events.TopicPipeline, events.PipelineFinishedEvent{
		PipelineID: p.ID,
		Status:     string(status),
		Iterations: p.Iterations,
		Timestamp:  time.Now(),
	})
}

// persistPipeline saves the run-level record when a store is configured.
func (e *Engine) persistPipeline(ctx context.Context, p *Pipeline) error {
	if e.config.Store == nil {
		return nil
	}
	return e.config.Store.SavePipeline(ctx, &persistence.PipelineRecord{
		ID:          p.ID,
		Topic:       p.Topic,
		Status:      string(p.Status),
		Iterations:  p.Iterations,
		CreatedAt:   p.CreatedAt,
		CompletedAt: p.CompletedAt,
	})
}

// persistSnapshot saves the queue state mid-run. Failures are logged, not
// returned: a persistence hiccup must not abort a run in flight.
func (e *Engine) persistSnapshot(ctx context.Context, p *Pipeline) {
	if e.config.Store == nil {
		return
	}
	if err := e.config.Store.SaveSnapshot(ctx, p.ID, p.queue.Snapshot()); err != nil {
		e.logger.WithPipeline(p.ID).Warn("failed to persist queue snapshot", "error", err.Error())
	}
}

// recordHistory appends to the persisted run timeline.
func (e *Engine) recordHistory(ctx context.Context, pipelineID, taskID, eventType, detail string) {
	if e.config.Store == nil {
		return
	}
	ev := &persistence.EventRecord{
		TaskID:    taskID,
		EventType: eventType,
		Detail:    detail,
		Timestamp: time.Now(),
	}
	if err := e.config.Store.RecordEvent(ctx, pipelineID, ev); err != nil {
		e.logger.WithPipeline(pipelineID).Warn("failed to record history event", "error", err.Error())
	}
}

// publish sends an event when a bus is configured.
func (e *Engine) publish(topic string, ev events.Event) {
	if e.config.Bus == nil {
		return
	}
	e.config.Bus.Publish(topic, ev)
}

// publishProgress emits the per-pass tally.
func (e *Engine) publishProgress(p *Pipeline) {
	if e.config.Bus == nil {
		return
	}
	c := p.queue.Counts()
	e.config.Bus.Publish(events.TopicPipeline, events.PipelineProgressEvent{
		PipelineID: p.ID,
		Iteration:  p.Iterations,
		Total:      c.Total(),
		Completed:  c.Completed,
		InProgress: c.InProgress,
		Failed:     c.Failed,
		Pending:    c.Pending,
		Timestamp:  time.Now(),
	})
}

// newID returns a prefixed short id like "research-1a2b3c4d".
func newID(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString()[:8])
}
