package pipeline

import (
	"fmt"
	"strings"

	"github.com/aristath/contentpipe/internal/agent"
	"github.com/aristath/contentpipe/internal/config"
	"github.com/aristath/contentpipe/internal/queue"
)

// InputBinding copies one piece of a dependency's result into a task's
// input before dispatch. An empty Field copies the whole result.
type InputBinding struct {
	Key   string         // input key to set
	From  queue.TaskType // stage whose result supplies the value
	Field string         // result field to copy, or "" for the full result
}

// StageSpec declares one stage of a content pipeline: which agent runs it,
// where it sits in the dependency graph, and how its input is assembled
// from upstream results. The stage list is configuration, so reshaping the
// graph (fan-out research, parallel review) is a config change rather than
// an engine change.
type StageSpec struct {
	Type      queue.TaskType
	Agent     string
	Title     string // fmt template receiving the topic
	Priority  int
	DependsOn []queue.TaskType
	Seed      map[string]any // static input fields
	Inputs    []InputBinding
}

// title renders the stage's task title for a topic.
func (s StageSpec) title(topic string) string {
	if s.Title == "" {
		return fmt.Sprintf("%s: %s", s.Type, topic)
	}
	return fmt.Sprintf(s.Title, topic)
}

// DefaultStages returns the canonical five-stage chain:
// research -> analysis -> writing -> seo -> quality.
func DefaultStages() []StageSpec {
	return []StageSpec{
		{
			Type:     queue.TypeResearch,
			Agent:    agent.ResearcherID,
			Title:    "Research: %s",
			Priority: queue.PriorityHigh,
			Seed:     map[string]any{"max_sources": 5},
		},
		{
			Type:      queue.TypeAnalysis,
			Agent:     agent.AnalystID,
			Title:     "Analyze: %s",
			Priority:  queue.PriorityHigh,
			DependsOn: []queue.TaskType{queue.TypeResearch},
			Inputs: []InputBinding{
				{Key: "research_data", From: queue.TypeResearch},
			},
		},
		{
			Type:      queue.TypeWriting,
			Agent:     agent.WriterID,
			Title:     "Write: %s",
			Priority:  queue.PriorityMedium,
			DependsOn: []queue.TaskType{queue.TypeAnalysis},
			Seed:      map[string]any{"style_guide": "professional"},
			Inputs: []InputBinding{
				{Key: "outline", From: queue.TypeAnalysis, Field: "outline"},
			},
		},
		{
			Type:      queue.TypeSEO,
			Agent:     agent.SEOID,
			Title:     "SEO Optimize: %s",
			Priority:  queue.PriorityMedium,
			DependsOn: []queue.TaskType{queue.TypeWriting},
			Inputs: []InputBinding{
				{Key: "content", From: queue.TypeWriting, Field: "content"},
			},
		},
		{
			Type:      queue.TypeQuality,
			Agent:     agent.QualityID,
			Title:     "Quality Check: %s",
			Priority:  queue.PriorityHigh,
			DependsOn: []queue.TaskType{queue.TypeSEO},
			Inputs: []InputBinding{
				{Key: "content", From: queue.TypeSEO, Field: "optimized_content"},
				{Key: "seo_data", From: queue.TypeSEO},
			},
		},
	}
}

// StagesFromConfig resolves configured stages into stage specs. Stage
// agents reference entries in agents by role key and resolve to that
// agent's durable identity; an agent's style, when set, is seeded into its
// stages as "style_guide" unless the stage params already carry one.
func StagesFromConfig(stages []config.StageConfig, agents map[string]config.AgentConfig) ([]StageSpec, error) {
	specs := make([]StageSpec, 0, len(stages))
	for _, sc := range stages {
		agentCfg, ok := agents[sc.Agent]
		if !ok {
			return nil, fmt.Errorf("stage %s: unknown agent %q", sc.Type, sc.Agent)
		}
		priority, err := parsePriority(sc.Priority)
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", sc.Type, err)
		}

		spec := StageSpec{
			Type:     queue.TaskType(sc.Type),
			Agent:    agentCfg.ID,
			Title:    sc.Title,
			Priority: priority,
		}
		for _, dep := range sc.DependsOn {
			spec.DependsOn = append(spec.DependsOn, queue.TaskType(dep))
		}

		seed := make(map[string]any, len(sc.Params)+1)
		for k, v := range sc.Params {
			seed[k] = v
		}
		if agentCfg.Style != "" {
			if _, exists := seed["style_guide"]; !exists {
				seed["style_guide"] = agentCfg.Style
			}
		}
		if len(seed) > 0 {
			spec.Seed = seed
		}

		for _, in := range sc.Inputs {
			spec.Inputs = append(spec.Inputs, InputBinding{
				Key:   in.Key,
				From:  queue.TaskType(in.From),
				Field: in.Field,
			})
		}

		specs = append(specs, spec)
	}
	return specs, nil
}

// parsePriority maps a configured priority name to its queue level.
// An empty name defaults to medium.
func parsePriority(name string) (int, error) {
	switch strings.ToLower(name) {
	case "":
		return queue.PriorityMedium, nil
	case "high":
		return queue.PriorityHigh, nil
	case "medium":
		return queue.PriorityMedium, nil
	case "low":
		return queue.PriorityLow, nil
	default:
		return 0, fmt.Errorf("unknown priority %q", name)
	}
}

// validateStages checks that stage types are unique and that every declared
// dependency names a declared stage. Cycle detection happens after the graph
// is built, via the queue's topological validation.
func validateStages(stages []StageSpec) error {
	if len(stages) == 0 {
		return ErrNoStages
	}

	declared := make(map[queue.TaskType]bool, len(stages))
	for _, stage := range stages {
		if declared[stage.Type] {
			return fmt.Errorf("%w: %s", ErrDuplicateStage, stage.Type)
		}
		declared[stage.Type] = true
	}
	for _, stage := range stages {
		for _, dep := range stage.DependsOn {
			if !declared[dep] {
				return fmt.Errorf("%w: %s depends on %s", ErrUnknownStageDep, stage.Type, dep)
			}
		}
	}
	return nil
}

// bindingsFor returns the input bindings declared for a stage type.
func bindingsFor(stages []StageSpec, stageType queue.TaskType) []InputBinding {
	for _, stage := range stages {
		if stage.Type == stageType {
			return stage.Inputs
		}
	}
	return nil
}
