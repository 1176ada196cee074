package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aristath/contentpipe/internal/config"
	"github.com/aristath/contentpipe/internal/events"
	"github.com/aristath/contentpipe/internal/persistence"
	"github.com/aristath/contentpipe/internal/pipeline"
	"github.com/aristath/contentpipe/internal/queue"
	"github.com/aristath/contentpipe/internal/workspace"
)

// executeCommand runs the root command with args and returns captured output.
func executeCommand(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

// writeTestConfig saves a default config rooted in a temp directory and
// returns the config path and the parsed config.
func writeTestConfig(t *testing.T) (string, *config.Config) {
	t.Helper()

	tmpDir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Workspace = filepath.Join(tmpDir, "workspace")
	cfg.Database = filepath.Join(tmpDir, "workspace", "contentpipe.db")

	cfgPath := filepath.Join(tmpDir, "config.json")
	if err := config.Save(cfg, cfgPath); err != nil {
		t.Fatalf("saving test config: %v", err)
	}
	return cfgPath, cfg
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "contentpipe" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "contentpipe")
	}

	expectedCmds := []string{"run", "report", "pipelines"}
	cmdMap := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		cmdMap[cmd.Name()] = true
	}
	for _, expected := range expectedCmds {
		if !cmdMap[expected] {
			t.Errorf("expected subcommand %q not found", expected)
		}
	}
}

func TestRunCommandEndToEnd(t *testing.T) {
	cfgPath, cfg := writeTestConfig(t)

	output, err := executeCommand("run", "--config", cfgPath, "Artificial", "Intelligence", "in", "Healthcare")
	if err != nil {
		t.Fatalf("run failed: %v\noutput: %s", err, output)
	}

	// Rendered summary reached the terminal
	if !strings.Contains(output, "PIPELINE EXECUTION COMPLETE") {
		t.Errorf("output missing banner:\n%s", output)
	}
	if !strings.Contains(output, "APPROVED") {
		t.Errorf("output missing verdict:\n%s", output)
	}
	if !strings.Contains(output, "Quality Score:") {
		t.Errorf("output missing quality metric:\n%s", output)
	}

	// Report landed in the workspace
	data, err := os.ReadFile(filepath.Join(cfg.Workspace, "pipeline_report.json"))
	if err != nil {
		t.Fatalf("reading saved report: %v", err)
	}
	var report pipeline.Report
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("parsing saved report: %v", err)
	}
	if report.Status != pipeline.StatusCompleted {
		t.Errorf("saved report status = %s, want completed", report.Status)
	}
	if len(report.Tasks) != 5 {
		t.Errorf("saved report has %d tasks, want 5", len(report.Tasks))
	}

	// Agent memories recorded under sanitized directories
	sessionPath := filepath.Join(cfg.Workspace, "agent_researcher_main", "session.json")
	if _, err := os.Stat(sessionPath); err != nil {
		t.Errorf("researcher session not written: %v", err)
	}

	// The stored run is visible to the read-side commands
	listOut, err := executeCommand("pipelines", "--config", cfgPath)
	if err != nil {
		t.Fatalf("pipelines failed: %v", err)
	}
	if !strings.Contains(listOut, report.PipelineID) {
		t.Errorf("pipelines output missing %s:\n%s", report.PipelineID, listOut)
	}

	reportOut, err := executeCommand("report", "--config", cfgPath, "--history", report.PipelineID)
	defer func() { reportHistory = false }()
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if !strings.Contains(reportOut, "QUALITY") {
		t.Errorf("report output missing quality row:\n%s", reportOut)
	}
	if !strings.Contains(reportOut, "Event History:") {
		t.Errorf("report output missing history:\n%s", reportOut)
	}
}

func TestRunCommandJSONOutput(t *testing.T) {
	cfgPath, _ := writeTestConfig(t)
	defer func() { runJSON = false }()

	output, err := executeCommand("run", "--config", cfgPath, "--json", "Go generics")
	if err != nil {
		t.Fatalf("run failed: %v\noutput: %s", err, output)
	}

	// Stdout carries only the report JSON
	var report pipeline.Report
	if err := json.Unmarshal([]byte(output), &report); err != nil {
		t.Fatalf("output is not a JSON report: %v\n%s", err, output)
	}
	if report.Topic != "Go generics" {
		t.Errorf("report topic = %q", report.Topic)
	}
	if report.Iterations != 5 {
		t.Errorf("report iterations = %d, want 5", report.Iterations)
	}
}

func TestReportCommandUnknownPipeline(t *testing.T) {
	cfgPath, _ := writeTestConfig(t)

	_, err := executeCommand("report", "--config", cfgPath, "pipe-missing")
	if err == nil {
		t.Fatal("expected error for unknown pipeline, got nil")
	}
	if !strings.Contains(err.Error(), "pipe-missing") {
		t.Errorf("error %q does not name the pipeline", err)
	}
}

func TestBuildRegistry(t *testing.T) {
	cfg := config.DefaultConfig()
	manager := workspace.NewManager(t.TempDir())

	registry, err := buildRegistry(cfg, manager, nil)
	if err != nil {
		t.Fatalf("buildRegistry failed: %v", err)
	}

	for _, typ := range []queue.TaskType{
		queue.TypeResearch, queue.TypeAnalysis, queue.TypeWriting, queue.TypeSEO, queue.TypeQuality,
	} {
		if _, ok := registry.For(typ); !ok {
			t.Errorf("registry missing executor for %s", typ)
		}
	}
}

func TestBuildRegistryUnknownAgent(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Stages[0].Agent = "ghostwriter"
	manager := workspace.NewManager(t.TempDir())

	_, err := buildRegistry(cfg, manager, nil)
	if err == nil {
		t.Fatal("expected error for unknown agent, got nil")
	}
	if !strings.Contains(err.Error(), "ghostwriter") {
		t.Errorf("error %q does not name the missing agent", err)
	}
}

func TestReportOrder(t *testing.T) {
	tasks := map[queue.TaskType]pipeline.TaskReport{
		queue.TypeQuality:        {},
		queue.TypeResearch:       {},
		queue.TaskType("review"): {},
		queue.TypeWriting:        {},
		queue.TaskType("edit"):   {},
	}

	got := reportOrder(tasks)
	want := []queue.TaskType{
		queue.TypeResearch, queue.TypeWriting, queue.TypeQuality,
		queue.TaskType("edit"), queue.TaskType("review"),
	}
	if len(got) != len(want) {
		t.Fatalf("order length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestTaskMetrics(t *testing.T) {
	tests := []struct {
		name string
		typ  queue.TaskType
		tr   pipeline.TaskReport
		want []string
	}{
		{
			name: "research sources",
			typ:  queue.TypeResearch,
			tr:   pipeline.TaskReport{Result: map[string]any{"sources_found": 5}},
			want: []string{"Sources found: 5"},
		},
		{
			name: "writing word count from JSON",
			typ:  queue.TypeWriting,
			tr:   pipeline.TaskReport{Result: map[string]any{"word_count": float64(640)}},
			want: []string{"Word count: 640"},
		},
		{
			name: "seo score",
			typ:  queue.TypeSEO,
			tr:   pipeline.TaskReport{Result: map[string]any{"seo_score": 84}},
			want: []string{"SEO Score: 84/100"},
		},
		{
			name: "quality score and approval",
			typ:  queue.TypeQuality,
			tr:   pipeline.TaskReport{Result: map[string]any{"quality_score": 81, "approved": true}},
			want: []string{"Quality Score: 81/100", "Approved: true"},
		},
		{
			name: "failed task shows the error",
			typ:  queue.TypeSEO,
			tr:   pipeline.TaskReport{Error: "dependency writing-1 failed"},
			want: []string{"Error: dependency writing-1 failed"},
		},
		{
			name: "analysis has no headline metric",
			typ:  queue.TypeAnalysis,
			tr:   pipeline.TaskReport{Result: map[string]any{"outline": map[string]any{}}},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := taskMetrics(tt.typ, tt.tr)
			if len(got) != len(tt.want) {
				t.Fatalf("metrics = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("metric[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

type unknownEvent struct{}

func (unknownEvent) EventType() string { return "mystery" }
func (unknownEvent) TaskID() string    { return "" }

func TestRenderEvent(t *testing.T) {
	started := renderEvent(events.TaskStartedEvent{ID: "research-1", Title: "Research: X"})
	if !strings.Contains(started, "Research: X") || !strings.Contains(started, "research-1") {
		t.Errorf("started line = %q", started)
	}

	completed := renderEvent(events.TaskCompletedEvent{ID: "research-1", Duration: 12 * time.Millisecond})
	if !strings.Contains(completed, "research-1") || !strings.Contains(completed, "12ms") {
		t.Errorf("completed line = %q", completed)
	}

	failed := renderEvent(events.TaskFailedEvent{ID: "seo-1", Error: "dependency writing-1 failed", Propagated: true})
	if !strings.Contains(failed, "seo-1") || !strings.Contains(failed, "propagated") {
		t.Errorf("failed line = %q", failed)
	}

	progress := renderEvent(events.PipelineProgressEvent{Iteration: 2, Completed: 2, Total: 5})
	if !strings.Contains(progress, "2/5") {
		t.Errorf("progress line = %q", progress)
	}

	if got := renderEvent(unknownEvent{}); got != "" {
		t.Errorf("unknown event rendered %q, want empty", got)
	}
}

func TestContentPreviewTruncates(t *testing.T) {
	long := strings.Repeat("a", previewLength+100)
	report := &pipeline.Report{Tasks: map[queue.TaskType]pipeline.TaskReport{}}
	verdict := &pipeline.Verdict{Content: long}

	preview := contentPreview(report, verdict)
	if len(preview) != previewLength+3 {
		t.Errorf("preview length = %d, want %d", len(preview), previewLength+3)
	}
	if !strings.HasSuffix(preview, "...") {
		t.Error("preview not marked as truncated")
	}
}

func TestContentPreviewFallsBackToDraft(t *testing.T) {
	report := &pipeline.Report{Tasks: map[queue.TaskType]pipeline.TaskReport{
		queue.TypeWriting: {Result: map[string]any{"content": "the draft"}},
	}}

	if got := contentPreview(report, nil); got != "the draft" {
		t.Errorf("preview = %q, want the draft", got)
	}
}

func TestRenderPipelineList(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	recs := []*persistence.PipelineRecord{
		{ID: "pipe-1a2b3c4d", Topic: "Go generics", Status: "completed", Iterations: 5, CreatedAt: now},
		{ID: "pipe-9z8y7x6w", Topic: "Rust traits", Status: "failed", Iterations: 3, CreatedAt: now},
	}

	out := renderPipelineList(recs)
	for _, want := range []string{"pipe-1a2b3c4d", "Go generics", "completed", "pipe-9z8y7x6w", "failed", "2026-03-14 09:30:00"} {
		if !strings.Contains(out, want) {
			t.Errorf("list output missing %q:\n%s", want, out)
		}
	}
}

func TestSaveReport(t *testing.T) {
	tmpDir := t.TempDir()
	report := &pipeline.Report{
		PipelineID: "pipe-1",
		Topic:      "T",
		Status:     pipeline.StatusCompleted,
		Iterations: 5,
		Tasks:      map[queue.TaskType]pipeline.TaskReport{},
	}

	path, err := saveReport(filepath.Join(tmpDir, "workspace"), report)
	if err != nil {
		t.Fatalf("saveReport failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading report: %v", err)
	}
	var loaded pipeline.Report
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("parsing report: %v", err)
	}
	if loaded.PipelineID != "pipe-1" || loaded.Status != pipeline.StatusCompleted {
		t.Errorf("round trip mismatch: %+v", loaded)
	}
}
