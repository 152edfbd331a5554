package main

import (
	"context"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/prospect-cli/internal/ingest"
	"github.com/sells-group/prospect-cli/internal/model"
)

var (
	batchFile  string
	batchLimit int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Research prospects from a CSV or XLSX file",
	Long:  "Loads subjects from a local or ftp:// CSV/XLSX file and researches them concurrently.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("batch"); err != nil {
			return err
		}

		env, err := initResearchEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		subjects, err := ingest.LoadSubjects(ctx, batchFile)
		if err != nil {
			return eris.Wrap(err, "load subjects")
		}

		return processBatch(ctx, env, subjects, batchLimit, cfg.Batch.MaxConcurrentSubjects)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchFile, "file", "", "subject list: local path or ftp:// URL, .csv or .xlsx (required)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of subjects to process (0 = all)")
	_ = batchCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(batchCmd)
}

// processBatch researches subjects concurrently. Individual failures are
// logged and counted but never abort the batch.
func processBatch(ctx context.Context, env *researchEnv, subjects []model.Subject, limit, concurrency int) error {
	if len(subjects) == 0 {
		zap.L().Info("no subjects to process")
		return nil
	}

	if limit > 0 && len(subjects) > limit {
		subjects = subjects[:limit]
	}

	zap.L().Info("processing batch",
		zap.Int("subjects", len(subjects)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64

	for _, subject := range subjects {
		g.Go(func() error {
			log := zap.L().With(zap.String("subject", subject.Name))

			result, err := env.Researcher.Research(gctx, subject)
			if err != nil {
				failed.Add(1)
				log.Error("research failed", zap.Error(err))
				return nil // don't abort the batch on one subject
			}

			if result.Success {
				succeeded.Add(1)
			} else {
				failed.Add(1)
				log.Warn("research incomplete",
					zap.Strings("failed_steps", result.FailedSteps))
			}

			deliverResult(gctx, env, result)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "batch")
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return nil
}
