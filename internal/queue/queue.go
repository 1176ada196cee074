package queue

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gammazero/toposort"
)

// Sentinel errors returned by queue operations. Callers match with errors.Is.
var (
	ErrDuplicateTask     = errors.New("task already exists")
	ErrTaskNotFound      = errors.New("task not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrCyclicDependency  = errors.New("cyclic dependency")
	ErrUnknownDependency = errors.New("unknown dependency")
)

// TaskQueue is the dependency-aware store of all tasks in a pipeline run.
// It is the single critical section for concurrent dispatch: every status
// transition and readiness computation holds the queue lock.
type TaskQueue struct {
	mu         sync.RWMutex
	tasks      map[string]*Task    // All tasks indexed by ID
	dependents map[string][]string // Maps taskID -> IDs of tasks that depend on it
	order      []string            // Insertion order, the final scheduling tie-break
}

// New creates an empty TaskQueue.
func New() *TaskQueue {
	return &TaskQueue{
		tasks:      make(map[string]*Task),
		dependents: make(map[string][]string),
	}
}

// Add inserts a task with status pending. Returns ErrDuplicateTask if the
// ID is already present. A zero CreatedAt is stamped with the current time.
func (q *TaskQueue) Add(task *Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.tasks[task.ID]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateTask, task.ID)
	}

	t := cloneTask(task)
	t.Status = StatusPending
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	q.tasks[t.ID] = t
	q.order = append(q.order, t.ID)

	// Reverse index for dependents lookups and failure propagation
	for _, depID := range t.Dependencies {
		q.dependents[depID] = append(q.dependents[depID], t.ID)
	}

	return nil
}

// Ready returns clones of all eligible tasks: status pending with every
// dependency completed. Ordered by priority descending, then created_at
// ascending, then insertion order, so equal-priority siblings dispatch
// deterministically in creation order.
func (q *TaskQueue) Ready() []*Task {
	q.mu.RLock()
	defer q.mu.RUnlock()

	ready := []*Task{}
	for _, id := range q.order {
		task := q.tasks[id]
		if task.Status != StatusPending {
			continue
		}
		if !q.depsCompleted(task) {
			continue
		}
		ready = append(ready, cloneTask(task))
	}

	// Stable sort over insertion-ordered input keeps creation order for ties.
	sort.SliceStable(ready, func(i, j int) bool {
		if ready[i].Priority != ready[j].Priority {
			return ready[i].Priority > ready[j].Priority
		}
		return ready[i].CreatedAt.Before(ready[j].CreatedAt)
	})

	return ready
}

// depsCompleted reports whether every dependency of the task is completed.
// Caller must hold at least the read lock.
func (q *TaskQueue) depsCompleted(task *Task) bool {
	for _, depID := range task.Dependencies {
		dep, exists := q.tasks[depID]
		if !exists || dep.Status != StatusCompleted {
			return false
		}
	}
	return true
}

// MarkInProgress transitions a pending task to in_progress.
func (q *TaskQueue) MarkInProgress(taskID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, exists := q.tasks[taskID]
	if !exists {
		return fmt.Errorf("%w: %q", ErrTaskNotFound, taskID)
	}
	if task.Status != StatusPending {
		return fmt.Errorf("%w: task %q is %s, want %s", ErrInvalidTransition, taskID, task.Status, StatusPending)
	}

	task.Status = StatusInProgress
	return nil
}

// MarkCompleted transitions an in_progress task to completed and records
// its result and completion time.
func (q *TaskQueue) MarkCompleted(taskID string, result map[string]any) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, exists := q.tasks[taskID]
	if !exists {
		return fmt.Errorf("%w: %q", ErrTaskNotFound, taskID)
	}
	if task.Status != StatusInProgress {
		return fmt.Errorf("%w: task %q is %s, want %s", ErrInvalidTransition, taskID, task.Status, StatusInProgress)
	}

	now := time.Now()
	task.Status = StatusCompleted
	task.Result = cloneMap(result)
	task.CompletedAt = &now
	return nil
}

// MarkFailed transitions a pending or in_progress task to failed and records
// the error. Every direct and transitive dependent still pending is also
// failed with an error naming the originating task, so the queue never
// stalls on unreachable work. Returns the IDs failed by propagation.
func (q *TaskQueue) MarkFailed(taskID string, errMsg string) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, exists := q.tasks[taskID]
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrTaskNotFound, taskID)
	}
	if task.Status.Terminal() {
		return nil, fmt.Errorf("%w: task %q is already %s", ErrInvalidTransition, taskID, task.Status)
	}

	now := time.Now()
	task.Status = StatusFailed
	task.Error = errMsg
	task.CompletedAt = &now

	return q.propagateFailure(taskID, now), nil
}

// propagateFailure fails all still-pending dependents reachable from the
// originating task. Caller must hold the write lock.
func (q *TaskQueue) propagateFailure(originID string, now time.Time) []string {
	var failed []string

	frontier := append([]string(nil), q.dependents[originID]...)
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]

		dep, exists := q.tasks[id]
		if !exists || dep.Status != StatusPending {
			continue
		}

		ts := now
		dep.Status = StatusFailed
		dep.Error = fmt.Sprintf("dependency %s failed", originID)
		dep.CompletedAt = &ts

		failed = append(failed, id)
		frontier = append(frontier, q.dependents[id]...)
	}

	return failed
}

// Dependents returns clones of the tasks whose dependencies include taskID.
func (q *TaskQueue) Dependents(taskID string) []*Task {
	q.mu.RLock()
	defer q.mu.RUnlock()

	deps := []*Task{}
	for _, id := range q.dependents[taskID] {
		if task, exists := q.tasks[id]; exists {
			deps = append(deps, cloneTask(task))
		}
	}
	return deps
}

// Get returns a clone of the task by ID.
func (q *TaskQueue) Get(taskID string) (*Task, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	task, exists := q.tasks[taskID]
	if !exists {
		return nil, false
	}
	return cloneTask(task), true
}

// Tasks returns clones of all tasks in insertion order.
func (q *TaskQueue) Tasks() []*Task {
	q.mu.RLock()
	defer q.mu.RUnlock()

	tasks := make([]*Task, 0, len(q.order))
	for _, id := range q.order {
		tasks = append(tasks, cloneTask(q.tasks[id]))
	}
	return tasks
}

// Len returns the number of tasks in the queue.
func (q *TaskQueue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.tasks)
}

// Counts is a per-status tally of the queue.
type Counts struct {
	Pending    int
	InProgress int
	Completed  int
	Failed     int
}

// Total returns the number of tasks across all statuses.
func (c Counts) Total() int {
	return c.Pending + c.InProgress + c.Completed + c.Failed
}

// Counts tallies tasks by status.
func (q *TaskQueue) Counts() Counts {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var c Counts
	for _, task := range q.tasks {
		switch task.Status {
		case StatusPending:
			c.Pending++
		case StatusInProgress:
			c.InProgress++
		case StatusCompleted:
			c.Completed++
		case StatusFailed:
			c.Failed++
		}
	}
	return c
}

// Validate runs a topological sort over the dependency graph using
// gammazero/toposort. Returns the ordered task IDs, or an error wrapping
// ErrUnknownDependency for references to absent tasks and
// ErrCyclicDependency when the graph contains a cycle.
func (q *TaskQueue) Validate() ([]string, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	// Verify every referenced dependency exists before sorting
	for _, id := range q.order {
		for _, depID := range q.tasks[id].Dependencies {
			if _, exists := q.tasks[depID]; !exists {
				return nil, fmt.Errorf("%w: task %q depends on %q", ErrUnknownDependency, id, depID)
			}
		}
	}

	var edges []toposort.Edge
	for _, id := range q.order {
		task := q.tasks[id]
		if len(task.Dependencies) == 0 {
			// Root task: edge from nil ensures it appears in the sort output
			edges = append(edges, toposort.Edge{nil, id})
		} else {
			for _, depID := range task.Dependencies {
				edges = append(edges, toposort.Edge{depID, id})
			}
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCyclicDependency, err)
	}

	order := make([]string, 0, len(sorted))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}

	// A disconnected cyclic component produces no edges into the sorted set
	if len(order) != len(q.tasks) {
		found := make(map[string]bool, len(order))
		for _, id := range order {
			found[id] = true
		}
		missing := []string{}
		for _, id := range q.order {
			if !found[id] {
				missing = append(missing, id)
			}
		}
		return nil, fmt.Errorf("%w: sort lost tasks %s", ErrCyclicDependency, strings.Join(missing, ", "))
	}

	return order, nil
}
