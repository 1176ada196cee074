package pipeline

import (
	"context"
	"fmt"

	"github.com/aristath/contentpipe/internal/agent"
	"github.com/aristath/contentpipe/internal/queue"
)

// ValidationError reports a pipeline whose output failed the acceptance
// policy. Score carries the quality score when one was produced.
type ValidationError struct {
	PipelineID string
	Reason     string
	Score      int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("pipeline %s rejected: %s", e.PipelineID, e.Reason)
}

// Verdict is the approved outcome of a pipeline evaluation, carrying the
// final content artifact.
type Verdict struct {
	PipelineID string `json:"pipeline_id"`
	Topic      string `json:"topic"`
	Approved   bool   `json:"approved"`
	Score      int    `json:"score"`
	Content    string `json:"content"`
}

// Coordinator interprets pipeline reports into a binary accept/reject
// decision. It is the only policy layer on top of scheduling mechanics.
type Coordinator struct {
	engine    *Engine
	threshold int
}

// NewCoordinator creates a coordinator. A threshold <= 0 selects the
// default quality gate.
func NewCoordinator(engine *Engine, threshold int) *Coordinator {
	if threshold <= 0 {
		threshold = agent.DefaultQualityThreshold
	}
	return &Coordinator{engine: engine, threshold: threshold}
}

// Evaluate applies the acceptance policy to a finished report: the quality
// stage must have produced a result, its score must clear the threshold,
// and the quality agent must have approved.
func (c *Coordinator) Evaluate(report *Report) (*Verdict, error) {
	qt, ok := report.Tasks[queue.TypeQuality]
	if !ok {
		return nil, &ValidationError{PipelineID: report.PipelineID, Reason: "quality result missing"}
	}
	if qt.Result == nil {
		reason := "quality result missing"
		if qt.Error != "" {
			reason = fmt.Sprintf("quality stage failed: %s", qt.Error)
		}
		return nil, &ValidationError{PipelineID: report.PipelineID, Reason: reason}
	}

	score := scoreOf(qt.Result, "quality_score")
	if score < c.threshold {
		return nil, &ValidationError{
			PipelineID: report.PipelineID,
			Reason:     fmt.Sprintf("quality score %d below threshold %d", score, c.threshold),
			Score:      score,
		}
	}
	if approved, _ := qt.Result["approved"].(bool); !approved {
		return nil, &ValidationError{
			PipelineID: report.PipelineID,
			Reason:     "quality agent withheld approval",
			Score:      score,
		}
	}

	return &Verdict{
		PipelineID: report.PipelineID,
		Topic:      report.Topic,
		Approved:   true,
		Score:      score,
		Content:    finalContent(report),
	}, nil
}

// Execute runs the full sequence for one topic: create, run, report,
// evaluate. Once the run loop has started, the report is returned even
// when the verdict is a rejection or the run errored.
func (c *Coordinator) Execute(ctx context.Context, topic string) (*Report, *Verdict, error) {
	p, err := c.engine.CreatePipeline(ctx, topic)
	if err != nil {
		return nil, nil, err
	}

	if err := c.engine.Run(ctx, p); err != nil {
		return c.engine.Report(p), nil, err
	}

	report := c.engine.Report(p)
	verdict, err := c.Evaluate(report)
	if err != nil {
		return report, nil, err
	}
	return report, verdict, nil
}

// finalContent extracts the publishable artifact: the SEO-optimized
// content when present, the writer's draft otherwise.
func finalContent(report *Report) string {
	if seo, ok := report.Tasks[queue.TypeSEO]; ok && seo.Result != nil {
		if s, ok := seo.Result["optimized_content"].(string); ok && s != "" {
			return s
		}
	}
	if w, ok := report.Tasks[queue.TypeWriting]; ok && w.Result != nil {
		if s, ok := w.Result["content"].(string); ok {
			return s
		}
	}
	return ""
}

// scoreOf reads an integer score that may have passed through JSON.
func scoreOf(result map[string]any, key string) int {
	switch v := result[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
