package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset <subject-id>",
	Short: "Clear all checkpoints for a subject",
	Long:  "Deletes every checkpoint record for the subject so the next research run starts from scratch.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("reset"); err != nil {
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

		if err := st.ClearCheckpoints(ctx, args[0]); err != nil {
			return eris.Wrap(err, "clear checkpoints")
		}

		fmt.Printf("Checkpoints cleared for subject %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
}
