package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/model"
)

var (
	researchName     string
	researchCity     string
	researchState    string
	researchAddress  string
	researchEmployer string
	researchTitle    string
	researchEmail    string
	researchSFID     string
	researchJSON     bool
	researchOut      string
)

var researchCmd = &cobra.Command{
	Use:   "research",
	Short: "Research a single prospect",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("research"); err != nil {
			return err
		}

		env, err := initResearchEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		subject := model.Subject{
			Name:         researchName,
			City:         researchCity,
			State:        researchState,
			Address:      researchAddress,
			Employer:     researchEmployer,
			Title:        researchTitle,
			Email:        researchEmail,
			SalesforceID: researchSFID,
		}

		result, err := env.Researcher.Research(ctx, subject)
		if err != nil {
			return eris.Wrap(err, "research")
		}

		zap.L().Info("research complete",
			zap.String("subject", subject.Name),
			zap.Bool("success", result.Success),
			zap.Int("completed_steps", len(result.CompletedSteps)),
			zap.Int("failed_steps", len(result.FailedSteps)),
			zap.Int("total_tokens", result.TotalTokens),
			zap.Duration("duration", result.Duration),
		)

		deliverResult(ctx, env, result)

		return writeResult(result)
	},
}

// writeResult prints the report (or the full result as JSON) to stdout,
// or to --out when given.
func writeResult(result *model.ResearchResult) error {
	out := os.Stdout
	if researchOut != "" {
		f, err := os.Create(researchOut)
		if err != nil {
			return eris.Wrap(err, "create output file")
		}
		defer f.Close()
		out = f
	}

	if researchJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	_, err := fmt.Fprintln(out, result.Report)
	return err
}

func init() {
	researchCmd.Flags().StringVar(&researchName, "name", "", "full name of the prospect (required)")
	researchCmd.Flags().StringVar(&researchCity, "city", "", "home city")
	researchCmd.Flags().StringVar(&researchState, "state", "", "two-letter state code")
	researchCmd.Flags().StringVar(&researchAddress, "address", "", "street address for property lookup")
	researchCmd.Flags().StringVar(&researchEmployer, "employer", "", "current employer")
	researchCmd.Flags().StringVar(&researchTitle, "title", "", "job title")
	researchCmd.Flags().StringVar(&researchEmail, "email", "", "contact email")
	researchCmd.Flags().StringVar(&researchSFID, "sf-id", "", "Salesforce contact ID")
	researchCmd.Flags().BoolVar(&researchJSON, "json", false, "emit the full result as JSON instead of the report")
	researchCmd.Flags().StringVar(&researchOut, "out", "", "write output to a file instead of stdout")
	_ = researchCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(researchCmd)
}
