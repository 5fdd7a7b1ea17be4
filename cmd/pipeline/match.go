package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/timmy/hireflow/internal/app"
)

var (
	matchRequirement string
	matchIDs         []string
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Score analyzed candidates against a job requirement",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if matchRequirement == "" {
			return fmt.Errorf("--requirement is required")
		}
		return withPipeline(cmd, func(ctx context.Context, p *app.App) error {
			res, err := p.Matching.Match(ctx, matchRequirement, matchIDs)
			if err != nil {
				return err
			}
			return printJSON(res)
		})
	},
}

func init() {
	matchCmd.Flags().StringVar(&matchRequirement, "requirement", "", "job requirement ID")
	matchCmd.Flags().StringSliceVar(&matchIDs, "ids", nil, "application IDs (default: analyzed applications for the requirement's role)")
}
