package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/contentpipe/internal/events"
	"github.com/aristath/contentpipe/internal/persistence"
	"github.com/aristath/contentpipe/internal/pipeline"
	"github.com/aristath/contentpipe/internal/queue"
)

// Status styles
var (
	styleRunning   = lipgloss.NewStyle().Foreground(lipgloss.Color("yellow")).Bold(true)
	styleCompleted = lipgloss.NewStyle().Foreground(lipgloss.Color("green")).Bold(true)
	styleFailed    = lipgloss.NewStyle().Foreground(lipgloss.Color("red")).Bold(true)
	stylePending   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	styleHeader = lipgloss.NewStyle().Bold(true)
	styleDim    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

const (
	bannerWidth   = 60
	previewLength = 500
	timeLayout    = "2006-01-02 15:04:05"
)

// streamProgress renders bus events as progress lines until the bus closes.
// The returned channel closes once the stream is drained. With quiet set
// the events are consumed without output, keeping stdout machine-readable.
func streamProgress(w io.Writer, bus *events.Bus, quiet bool) <-chan struct{} {
	ch := bus.SubscribeAll(64)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for ev := range ch {
			if quiet {
				continue
			}
			if line := renderEvent(ev); line != "" {
				fmt.Fprintln(w, line)
			}
		}
	}()

	return done
}

// renderEvent formats one bus event as a progress line. Unknown events
// render as nothing.
func renderEvent(ev events.Event) string {
	switch e := ev.(type) {
	case events.PipelineCreatedEvent:
		return fmt.Sprintf("%s %s %s",
			styleHeader.Render("Pipeline"), e.PipelineID,
			styleDim.Render(fmt.Sprintf("(%d tasks)", e.Tasks)))
	case events.TaskStartedEvent:
		return fmt.Sprintf("  %s %s %s",
			styleRunning.Render("►"), e.Title, styleDim.Render("["+e.ID+"]"))
	case events.TaskCompletedEvent:
		return fmt.Sprintf("  %s %s %s",
			styleCompleted.Render("✓"), e.ID,
			styleDim.Render(e.Duration.Round(time.Millisecond).String()))
	case events.TaskFailedEvent:
		suffix := ""
		if e.Propagated {
			suffix = " " + styleDim.Render("(propagated)")
		}
		return fmt.Sprintf("  %s %s: %s%s", styleFailed.Render("✗"), e.ID, e.Error, suffix)
	case events.PipelineProgressEvent:
		return styleDim.Render(fmt.Sprintf("  pass %d: %d/%d completed, %d failed",
			e.Iteration, e.Completed, e.Total, e.Failed))
	case events.PipelineFinishedEvent:
		return fmt.Sprintf("%s %s",
			styleHeader.Render("Pipeline finished:"), renderStatus(e.Status))
	}
	return ""
}

// renderReport formats the full post-run report: the banner, per-stage
// results with their key metrics, the verdict when one was reached, and a
// content preview.
func renderReport(report *pipeline.Report, verdict *pipeline.Verdict) string {
	var b strings.Builder
	rule := strings.Repeat("=", bannerWidth)
	thinRule := strings.Repeat("-", bannerWidth)

	b.WriteString("\n" + rule + "\n")
	b.WriteString(styleHeader.Render("PIPELINE EXECUTION COMPLETE") + "\n")
	b.WriteString(rule + "\n\n")

	fmt.Fprintf(&b, "Pipeline ID: %s\n", report.PipelineID)
	fmt.Fprintf(&b, "Topic:       %s\n", report.Topic)
	fmt.Fprintf(&b, "Status:      %s\n", renderStatus(string(report.Status)))
	fmt.Fprintf(&b, "Iterations:  %d\n", report.Iterations)
	if d := report.Duration(); d > 0 {
		fmt.Fprintf(&b, "Duration:    %s\n", d.Round(time.Millisecond))
	}

	b.WriteString("\nTask Results:\n")
	b.WriteString(thinRule + "\n")
	for _, typ := range reportOrder(report.Tasks) {
		tr := report.Tasks[typ]
		fmt.Fprintf(&b, "%s %s\n",
			styleHeader.Render(fmt.Sprintf("%-10s", strings.ToUpper(string(typ)))),
			renderStatus(string(tr.Status)))
		for _, metric := range taskMetrics(typ, tr) {
			fmt.Fprintf(&b, "  - %s\n", metric)
		}
	}
	b.WriteString(thinRule + "\n")

	if verdict != nil {
		fmt.Fprintf(&b, "\n%s quality score %d/100\n",
			styleCompleted.Render("APPROVED:"), verdict.Score)
	}

	if preview := contentPreview(report, verdict); preview != "" {
		b.WriteString("\n" + rule + "\n")
		b.WriteString(styleHeader.Render("CONTENT PREVIEW") + "\n")
		b.WriteString(rule + "\n")
		b.WriteString(preview + "\n")
	}

	return b.String()
}

// reportOrder lists the canonical chain first, then any extra stage types
// alphabetically.
func reportOrder(tasks map[queue.TaskType]pipeline.TaskReport) []queue.TaskType {
	canonical := []queue.TaskType{
		queue.TypeResearch, queue.TypeAnalysis, queue.TypeWriting, queue.TypeSEO, queue.TypeQuality,
	}

	order := make([]queue.TaskType, 0, len(tasks))
	seen := make(map[queue.TaskType]bool, len(tasks))
	for _, typ := range canonical {
		if _, ok := tasks[typ]; ok {
			order = append(order, typ)
			seen[typ] = true
		}
	}

	extras := make([]queue.TaskType, 0)
	for typ := range tasks {
		if !seen[typ] {
			extras = append(extras, typ)
		}
	}
	sort.Slice(extras, func(i, j int) bool { return extras[i] < extras[j] })

	return append(order, extras...)
}

// taskMetrics extracts the headline numbers for a stage, mirroring what
// each agent reports.
func taskMetrics(typ queue.TaskType, tr pipeline.TaskReport) []string {
	if tr.Error != "" {
		return []string{fmt.Sprintf("Error: %s", tr.Error)}
	}
	if tr.Result == nil {
		return nil
	}

	var metrics []string
	switch typ {
	case queue.TypeResearch:
		if n, ok := intResult(tr.Result, "sources_found"); ok {
			metrics = append(metrics, fmt.Sprintf("Sources found: %d", n))
		}
	case queue.TypeWriting:
		if n, ok := intResult(tr.Result, "word_count"); ok {
			metrics = append(metrics, fmt.Sprintf("Word count: %d", n))
		}
	case queue.TypeSEO:
		if n, ok := intResult(tr.Result, "seo_score"); ok {
			metrics = append(metrics, fmt.Sprintf("SEO Score: %d/100", n))
		}
	case queue.TypeQuality:
		if n, ok := intResult(tr.Result, "quality_score"); ok {
			metrics = append(metrics, fmt.Sprintf("Quality Score: %d/100", n))
		}
		if approved, ok := tr.Result["approved"].(bool); ok {
			metrics = append(metrics, fmt.Sprintf("Approved: %t", approved))
		}
	}
	return metrics
}

// contentPreview returns the leading slice of the final artifact: the
// verdict content when approved, the writer's draft otherwise.
func contentPreview(report *pipeline.Report, verdict *pipeline.Verdict) string {
	content := ""
	if verdict != nil {
		content = verdict.Content
	}
	if content == "" {
		if w, ok := report.Tasks[queue.TypeWriting]; ok && w.Result != nil {
			content, _ = w.Result["content"].(string)
		}
	}
	if len(content) > previewLength {
		content = content[:previewLength] + "..."
	}
	return content
}

// renderStatus colors a pipeline or task status.
func renderStatus(status string) string {
	switch status {
	case string(queue.StatusInProgress), string(pipeline.StatusRunning):
		return styleRunning.Render(status)
	case string(queue.StatusCompleted):
		return styleCompleted.Render(status)
	case string(queue.StatusFailed):
		return styleFailed.Render(status)
	default:
		return stylePending.Render(status)
	}
}

// renderPipelineList formats stored pipeline records as a table.
func renderPipelineList(recs []*persistence.PipelineRecord) string {
	var b strings.Builder

	b.WriteString(styleHeader.Render(fmt.Sprintf("%-14s %-10s %-5s %-20s %s",
		"ID", "STATUS", "ITER", "CREATED", "TOPIC")) + "\n")
	for _, rec := range recs {
		// Pad before styling so ANSI escapes don't break the columns.
		status := renderStatus(fmt.Sprintf("%-10s", rec.Status))
		fmt.Fprintf(&b, "%-14s %s %-5d %-20s %s\n",
			rec.ID, status, rec.Iterations, rec.CreatedAt.Format(timeLayout), rec.Topic)
	}

	return b.String()
}

// renderHistory formats a pipeline's recorded event timeline.
func renderHistory(history []persistence.EventRecord) string {
	var b strings.Builder

	b.WriteString("\nEvent History:\n")
	b.WriteString(strings.Repeat("-", bannerWidth) + "\n")
	for _, ev := range history {
		line := fmt.Sprintf("%s  %-18s", ev.Timestamp.Format("15:04:05.000"), ev.EventType)
		if ev.TaskID != "" {
			line += " " + ev.TaskID
		}
		if ev.Detail != "" {
			line += "  " + styleDim.Render(ev.Detail)
		}
		b.WriteString(line + "\n")
	}

	return b.String()
}

// intResult reads an integer result field that may have passed through JSON.
func intResult(result map[string]any, key string) (int, bool) {
	switch v := result[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}
