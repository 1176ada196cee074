package queue

import (
	"fmt"
	"sort"
)

// Snapshot is the serializable form of the full queue state: every task
// keyed by ID plus the insertion-order list. The order list is what keeps
// equal-priority scheduling deterministic across a save/restore cycle.
type Snapshot struct {
	Tasks map[string]*Task `json:"tasks"`
	Order []string         `json:"order"`
}

// Snapshot captures the current queue state. The returned value is fully
// detached: mutating it does not affect the queue.
func (q *TaskQueue) Snapshot() *Snapshot {
	q.mu.RLock()
	defer q.mu.RUnlock()

	snap := &Snapshot{
		Tasks: make(map[string]*Task, len(q.tasks)),
		Order: append([]string(nil), q.order...),
	}
	for id, task := range q.tasks {
		snap.Tasks[id] = cloneTask(task)
	}
	return snap
}

// Load replaces the queue state with the snapshot's. The snapshot's order
// list must cover exactly the snapshot's tasks; a snapshot without an order
// list is accepted and ordered by (created_at, id). Statuses are restored
// verbatim, so a loaded queue resumes exactly where the saved one stopped.
func (q *TaskQueue) Load(snap *Snapshot) error {
	order := snap.Order
	if len(order) == 0 && len(snap.Tasks) > 0 {
		order = deriveOrder(snap.Tasks)
	}

	if len(order) != len(snap.Tasks) {
		return fmt.Errorf("snapshot order lists %d tasks, snapshot holds %d", len(order), len(snap.Tasks))
	}
	for _, id := range order {
		if _, exists := snap.Tasks[id]; !exists {
			return fmt.Errorf("snapshot order references unknown task %q", id)
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.tasks = make(map[string]*Task, len(snap.Tasks))
	q.dependents = make(map[string][]string)
	q.order = append([]string(nil), order...)

	for _, id := range order {
		task := cloneTask(snap.Tasks[id])
		q.tasks[id] = task
		for _, depID := range task.Dependencies {
			q.dependents[depID] = append(q.dependents[depID], id)
		}
	}

	return nil
}

// deriveOrder reconstructs a stable insertion order for snapshots that
// carry only the task map.
func deriveOrder(tasks map[string]*Task) []string {
	order := make([]string, 0, len(tasks))
	for id := range tasks {
		order = append(order, id)
	}
	sort.Slice(order, func(i, j int) bool {
		a, b := tasks[order[i]], tasks[order[j]]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return order[i] < order[j]
	})
	return order
}
