package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aristath/contentpipe/internal/agent"
	"github.com/aristath/contentpipe/internal/config"
	"github.com/aristath/contentpipe/internal/events"
	"github.com/aristath/contentpipe/internal/logging"
	"github.com/aristath/contentpipe/internal/persistence"
	"github.com/aristath/contentpipe/internal/pipeline"
	"github.com/aristath/contentpipe/internal/queue"
	"github.com/aristath/contentpipe/internal/workspace"
)

var runCmd = &cobra.Command{
	Use:   "run <topic>",
	Short: "Run the content pipeline for a topic",
	Long: `Run drives a full content pipeline for the given topic, honoring the
stage graph from configuration. Multi-word topics need no quoting; the
arguments are joined into one topic.

Progress is streamed while the pipeline runs. The final report is rendered
once the run reaches a terminal state and is also written to
<workspace>/pipeline_report.json. The command exits non-zero when the
pipeline fails or the quality gate rejects the content.

Examples:
  # Run with the default five-stage pipeline
  contentpipe run Artificial Intelligence in Healthcare

  # Dispatch independent stages in parallel
  contentpipe run --concurrency 3 "Edge computing trends"

  # Machine-readable output
  contentpipe run --json "Go generics" > report.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

var (
	runConcurrency int
	runJSON        bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 0, "parallel task dispatch limit (default from config)")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the report as JSON instead of the rendered summary")
}

func runRun(cmd *cobra.Command, args []string) error {
	topic := strings.Join(args, " ")

	// Signal-aware context so Ctrl+C lands the run in a persisted failed
	// state instead of an abandoned one.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runConcurrency > 0 {
		cfg.Concurrency = runConcurrency
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	stages, err := pipeline.StagesFromConfig(cfg.Stages, cfg.Agents)
	if err != nil {
		return fmt.Errorf("resolving stages: %w", err)
	}

	manager := workspace.NewManager(cfg.Workspace)
	registry, err := buildRegistry(cfg, manager, logger)
	if err != nil {
		return fmt.Errorf("building agents: %w", err)
	}

	var store persistence.Store
	if cfg.Database != "" {
		sqlStore, err := persistence.NewSQLiteStore(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer sqlStore.Close()
		store = sqlStore
	}

	out := cmd.OutOrStdout()
	bus := events.NewBus()
	progressDone := streamProgress(out, bus, runJSON)

	engine := pipeline.NewEngine(pipeline.Config{
		Registry:      registry,
		Stages:        stages,
		Store:         store,
		Bus:           bus,
		Logger:        logger,
		MaxIterations: cfg.MaxIterations,
		Concurrency:   cfg.Concurrency,
	})
	coord := pipeline.NewCoordinator(engine, cfg.QualityThreshold)

	report, verdict, execErr := coord.Execute(ctx, topic)

	// Drain the progress stream before rendering the report.
	bus.Close()
	<-progressDone

	if report == nil {
		return execErr
	}

	reportPath, saveErr := saveReport(cfg.Workspace, report)
	if saveErr != nil {
		logger.Warn("failed to save report", "error", saveErr.Error())
	}

	if runJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		fmt.Fprint(out, renderReport(report, verdict))
		if reportPath != "" {
			fmt.Fprintf(out, "\nFull report saved to: %s\n", reportPath)
		}
	}

	return execErr
}

// buildRegistry creates one executor per configured stage, wired to the
// owning agent's workspace memory.
func buildRegistry(cfg *config.Config, manager *workspace.Manager, logger *logging.Logger) (agent.Registry, error) {
	reg := make(agent.Registry, len(cfg.Stages))
	for _, stage := range cfg.Stages {
		agentCfg, ok := cfg.Agents[stage.Agent]
		if !ok {
			return nil, fmt.Errorf("stage %s: unknown agent %q", stage.Type, stage.Agent)
		}

		mem, err := manager.MemoryFor(agentCfg.ID)
		if err != nil {
			return nil, fmt.Errorf("opening memory for %s: %w", agentCfg.ID, err)
		}

		executor, err := agent.New(queue.TaskType(stage.Type), agent.Config{
			AgentID: agentCfg.ID,
			Memory:  mem,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		reg[queue.TaskType(stage.Type)] = executor
	}
	return reg, nil
}

// saveReport writes the report JSON into the workspace, the durable copy
// consumers pick up after the process exits.
func saveReport(workspaceDir string, report *pipeline.Report) (string, error) {
	if err := os.MkdirAll(workspaceDir, 0755); err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", err
	}

	path := filepath.Join(workspaceDir, "pipeline_report.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}
