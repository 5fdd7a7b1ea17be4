package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/timmy/hireflow/internal/app"
	"github.com/timmy/hireflow/internal/domain"
	"github.com/timmy/hireflow/internal/logger"
	"github.com/timmy/hireflow/internal/service"
	"github.com/timmy/hireflow/internal/source/localdir"
)

var (
	batchDir  string
	batchRole string

	reanalyzeIDs    []string
	reanalyzeStatus string
	reanalyzeLimit  int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Register and analyze every resume in a directory",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if batchDir == "" {
			return fmt.Errorf("--dir is required")
		}
		return withPipeline(cmd, func(ctx context.Context, p *app.App) error {
			src := localdir.NewAdapter(batchDir, batchRole)
			summary, err := p.Batch.ProcessSource(ctx, src, os.ReadFile, service.BatchOptions{
				JobRole:    batchRole,
				Profile:    profile,
				OnProgress: progress(ctx),
			})
			if err != nil {
				return err
			}
			return printJSON(summary)
		})
	},
}

var reanalyzeCmd = &cobra.Command{
	Use:   "reanalyze",
	Short: "Re-run analysis for existing applications",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if len(reanalyzeIDs) == 0 && reanalyzeStatus == "" {
			return fmt.Errorf("either --ids or --status is required")
		}
		return withPipeline(cmd, func(ctx context.Context, p *app.App) error {
			opts := service.BatchOptions{Profile: profile, OnProgress: progress(ctx)}
			var (
				summary *service.BatchSummary
				err     error
			)
			if len(reanalyzeIDs) > 0 {
				summary, err = p.Batch.Reanalyze(ctx, reanalyzeIDs, opts)
			} else {
				summary, err = p.Batch.ReanalyzeStatus(ctx, domain.ApplicationStatus(reanalyzeStatus), reanalyzeLimit, opts)
			}
			if err != nil {
				return err
			}
			return printJSON(summary)
		})
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchDir, "dir", "", "directory of resume files (optionally with manifest.jsonl)")
	batchCmd.Flags().StringVar(&batchRole, "role", "", "job role applied to files without one")

	reanalyzeCmd.Flags().StringSliceVar(&reanalyzeIDs, "ids", nil, "application IDs to re-analyze")
	reanalyzeCmd.Flags().StringVar(&reanalyzeStatus, "status", "", "re-analyze every application in this status")
	reanalyzeCmd.Flags().IntVar(&reanalyzeLimit, "limit", 0, "maximum applications selected by --status (0 = all)")
}

func progress(ctx context.Context) func(done, total int) {
	return func(done, total int) {
		logger.With(logger.Fields{"total": total}).WithCount(done).Info(ctx, "Progress %d/%d", done, total)
	}
}
