package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aristath/contentpipe/internal/persistence"
	"github.com/aristath/contentpipe/internal/pipeline"
)

var reportCmd = &cobra.Command{
	Use:   "report <pipeline-id>",
	Short: "Show the report for a stored pipeline",
	Long: `Report rebuilds a pipeline's report from the store and renders it.

Examples:
  # Render a stored run
  contentpipe report pipe-1a2b3c4d

  # Include the recorded event timeline
  contentpipe report pipe-1a2b3c4d --history

  # Machine-readable output
  contentpipe report pipe-1a2b3c4d --json`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

var (
	reportJSON    bool
	reportHistory bool
)

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "print the report as JSON")
	reportCmd.Flags().BoolVar(&reportHistory, "history", false, "include the recorded event timeline")
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	rec, err := store.GetPipeline(ctx, args[0])
	if err != nil {
		return err
	}
	tasks, err := store.ListTasks(ctx, rec.ID)
	if err != nil {
		return err
	}
	report := pipeline.ReportFromRecord(rec, tasks)

	out := cmd.OutOrStdout()
	if reportJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Fprint(out, renderReport(report, nil))

	if reportHistory {
		history, err := store.GetHistory(ctx, rec.ID)
		if err != nil {
			return err
		}
		fmt.Fprint(out, renderHistory(history))
	}

	return nil
}

// openStore opens the configured SQLite store for the read-side commands.
func openStore(ctx context.Context) (persistence.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("no database configured; set \"database\" in the config file")
	}

	store, err := persistence.NewSQLiteStore(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return store, nil
}
