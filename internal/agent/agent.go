// Package agent implements the specialist executors that carry out pipeline
// stages. Each executor is deterministic: it derives its result payload from
// the task input alone, so pipelines are reproducible and testable without
// any external service.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/aristath/contentpipe/internal/logging"
	"github.com/aristath/contentpipe/internal/queue"
)

// Canonical agent identifiers, one per pipeline role.
const (
	ResearcherID = "agent:researcher:main"
	AnalystID    = "agent:analyst:main"
	WriterID     = "agent:writer:main"
	SEOID        = "agent:seo:main"
	QualityID    = "agent:quality:main"
)

// Executor runs one task and produces its result payload.
type Executor interface {
	// Execute derives a result from the task input. A returned error marks
	// the task failed; the result map is passed through to dependents and
	// the pipeline report verbatim.
	Execute(ctx context.Context, input map[string]any) (map[string]any, error)
}

// ExecutorFunc adapts a plain function to the Executor interface.
type ExecutorFunc func(ctx context.Context, input map[string]any) (map[string]any, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, input map[string]any) (map[string]any, error) {
	return f(ctx, input)
}

// Memory is the per-agent durable workspace executors record into.
// *workspace.Memory satisfies it; tests substitute stubs.
type Memory interface {
	AppendContext(note string) error
	SaveResult(taskID string, result map[string]any) error
}

// Config defines the construction parameters for a role executor.
type Config struct {
	AgentID string
	Memory  Memory          // optional; nil disables durable recording
	Logger  *logging.Logger // optional; nil discards log output
}

// New creates the executor for a task type.
// This factory function switches on taskType and returns the appropriate role.
func New(taskType queue.TaskType, cfg Config) (Executor, error) {
	switch taskType {
	case queue.TypeResearch:
		return NewResearcher(cfg), nil
	case queue.TypeAnalysis:
		return NewAnalyst(cfg), nil
	case queue.TypeWriting:
		return NewWriter(cfg), nil
	case queue.TypeSEO:
		return NewSEO(cfg), nil
	case queue.TypeQuality:
		return NewQuality(cfg), nil
	default:
		return nil, fmt.Errorf("unknown task type: %s", taskType)
	}
}

// Registry maps task types to their executors.
type Registry map[queue.TaskType]Executor

// For returns the executor registered for a task type.
func (r Registry) For(taskType queue.TaskType) (Executor, bool) {
	e, ok := r[taskType]
	return e, ok
}

// MemoryProvider hands out per-agent memories when building a registry.
// A nil provider leaves executors without durable recording.
type MemoryProvider interface {
	MemoryFor(agentID string) (Memory, error)
}

// DefaultRegistry builds one executor per pipeline role. Memories are
// resolved through the provider when one is given.
func DefaultRegistry(memories MemoryProvider, logger *logging.Logger) (Registry, error) {
	roles := []struct {
		taskType queue.TaskType
		agentID  string
	}{
		{queue.TypeResearch, ResearcherID},
		{queue.TypeAnalysis, AnalystID},
		{queue.TypeWriting, WriterID},
		{queue.TypeSEO, SEOID},
		{queue.TypeQuality, QualityID},
	}

	reg := make(Registry, len(roles))
	for _, role := range roles {
		cfg := Config{AgentID: role.agentID, Logger: logger}
		if memories != nil {
			mem, err := memories.MemoryFor(role.agentID)
			if err != nil {
				return nil, fmt.Errorf("opening memory for %s: %w", role.agentID, err)
			}
			cfg.Memory = mem
		}

		executor, err := New(role.taskType, cfg)
		if err != nil {
			return nil, err
		}
		reg[role.taskType] = executor
	}

	return reg, nil
}

// recorder is the shared memory/logging core embedded by every role executor.
type recorder struct {
	agentID string
	mem     Memory
	log     *logging.Logger
}

func newRecorder(cfg Config) recorder {
	log := cfg.Logger
	if log == nil {
		log = logging.NopLogger()
	}
	return recorder{agentID: cfg.AgentID, mem: cfg.Memory, log: log.WithAgent(cfg.AgentID)}
}

// record persists a context note and the task result to the agent's memory.
// Memory failures are logged, never fatal to task execution.
func (r recorder) record(taskID, note string, result map[string]any) {
	if r.mem == nil {
		return
	}
	if err := r.mem.AppendContext(note); err != nil {
		r.log.Warn("failed to append context note", "task_id", taskID, "error", err)
	}
	if err := r.mem.SaveResult(taskID, result); err != nil {
		r.log.Warn("failed to save task result", "task_id", taskID, "error", err)
	}
}

// stringValue extracts a string field from a task input map.
func stringValue(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// intValue extracts a numeric field, tolerating the float64 values that
// JSON round-trips produce.
func intValue(m map[string]any, key string, def int) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// floatValue extracts a numeric field as float64.
func floatValue(m map[string]any, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// mapValue extracts a nested map field.
func mapValue(m map[string]any, key string) map[string]any {
	if v, ok := m[key].(map[string]any); ok {
		return v
	}
	return nil
}

// sliceValue extracts a nested slice field.
func sliceValue(m map[string]any, key string) []any {
	if v, ok := m[key].([]any); ok {
		return v
	}
	return nil
}

// slugify converts a topic to a URL-safe lowercase slug.
func slugify(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}

// wordCount counts whitespace-separated words.
func wordCount(s string) int {
	return len(strings.Fields(s))
}
