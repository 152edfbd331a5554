package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/prospect-cli/internal/model"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect checkpointed research progress",
	Long:  "Commands for listing subjects with checkpoints and viewing per-step status.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List subjects with research checkpoints",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("runs"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		subjects, err := st.Subjects(ctx)
		if err != nil {
			return eris.Wrap(err, "list subjects")
		}
		if len(subjects) == 0 {
			fmt.Fprintln(os.Stderr, "No subjects found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SUBJECT ID\tCOMPLETED\tFAILED\tSKIPPED\tPENDING")
		for _, id := range subjects {
			status, err := st.GetCompletionStatus(ctx, id)
			if err != nil {
				return eris.Wrapf(err, "completion status for %s", id)
			}
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n",
				id, status.Completed, status.Failed, status.Skipped, status.Pending)
		}
		return w.Flush()
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <subject-id>",
	Short: "Show per-step checkpoint status for a subject",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("runs"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		records, err := st.GetAllCheckpoints(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "get checkpoints")
		}
		if len(records) == 0 {
			fmt.Fprintln(os.Stderr, "No checkpoints for that subject.")
			return nil
		}

		formatCheckpoints(os.Stdout, records)
		return nil
	},
}

func formatCheckpoints(w io.Writer, records []model.CheckpointRecord) {
	sort.Slice(records, func(i, j int) bool { return records[i].StepName < records[j].StepName })

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tSTATUS\tTOKENS\tDURATION\tUPDATED\tERROR")
	for _, rec := range records {
		dur := "-"
		if rec.DurationMs > 0 {
			dur = fmt.Sprintf("%dms", rec.DurationMs)
		}
		errMsg := rec.Error
		if len(errMsg) > 60 {
			errMsg = errMsg[:57] + "..."
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
			rec.StepName, rec.Status, rec.TokensUsed, dur,
			rec.UpdatedAt.Format("2006-01-02 15:04:05"), errMsg)
	}
	tw.Flush()
}

func init() {
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}
