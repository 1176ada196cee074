package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pipelinesCmd = &cobra.Command{
	Use:   "pipelines",
	Short: "List stored pipelines",
	Long:  `Pipelines lists every run recorded in the store, newest first.`,
	RunE:  runPipelines,
}

func init() {
	rootCmd.AddCommand(pipelinesCmd)
}

func runPipelines(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	recs, err := store.ListPipelines(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(recs) == 0 {
		fmt.Fprintln(out, "No pipelines recorded.")
		return nil
	}

	fmt.Fprint(out, renderPipelineList(recs))
	return nil
}
