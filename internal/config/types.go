package config

// StageConfig declares one stage of the content pipeline. Stages reference
// each other by type, so the dependency graph -- including fan-out and
// fan-in shapes -- is described entirely in configuration.
type StageConfig struct {
	Type      string         `json:"type"`                 // Task type; also the key other stages use in DependsOn
	Agent     string         `json:"agent"`                // Key into the Agents map
	Title     string         `json:"title,omitempty"`      // Task title template; %s receives the topic
	Priority  string         `json:"priority,omitempty"`   // "high", "medium", or "low" (default "medium")
	DependsOn []string       `json:"depends_on,omitempty"` // Stage types this stage waits for
	Params    map[string]any `json:"params,omitempty"`     // Static fields seeded into the task input
	Inputs    []InputConfig  `json:"inputs,omitempty"`     // Upstream result fields copied into the input
}

// InputConfig routes one piece of an upstream stage's result into a task
// input before dispatch.
type InputConfig struct {
	Key   string `json:"key"`             // Input key to set
	From  string `json:"from"`            // Stage type whose result supplies the value
	Field string `json:"field,omitempty"` // Result field to copy; empty copies the whole result
}

// AgentConfig defines an agent role referenced by stages.
type AgentConfig struct {
	ID    string `json:"id"`              // Durable agent identity; keys the workspace memory directory
	Style string `json:"style,omitempty"` // Writing style seeded into stages this agent runs
}

// Config is the top-level configuration.
type Config struct {
	Workspace        string                 `json:"workspace"`         // Root directory for agent memories, logs, and reports
	Database         string                 `json:"database"`          // SQLite path; empty disables persistence
	MaxIterations    int                    `json:"max_iterations"`    // Scheduling pass bound per run
	Concurrency      int                    `json:"concurrency"`       // Parallel task dispatch limit per batch
	QualityThreshold int                    `json:"quality_threshold"` // Minimum quality score for approval
	Stages           []StageConfig          `json:"stages"`
	Agents           map[string]AgentConfig `json:"agents"`
}
