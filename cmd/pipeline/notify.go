package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/timmy/hireflow/internal/app"
	"github.com/timmy/hireflow/internal/domain"
)

var (
	statusActor string
	statusNote  string
)

var statusCmd = &cobra.Command{
	Use:   "status <application-id> <status>",
	Short: "Change an application's status and send the candidate alert",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd, func(ctx context.Context, p *app.App) error {
			res, err := p.Status.ChangeStatus(ctx, args[0], domain.ApplicationStatus(args[1]), statusActor, statusNote)
			if err != nil {
				return err
			}
			return printJSON(res)
		})
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry-notification <notification-id>",
	Short: "Resend a failed email notification",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd, func(ctx context.Context, p *app.App) error {
			rec, err := p.Notifications.Retry(ctx, args[0])
			if rec != nil {
				if perr := printJSON(rec); perr != nil {
					return perr
				}
			}
			if err != nil {
				return fmt.Errorf("retry %s: %w", args[0], err)
			}
			return nil
		})
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusActor, "actor", "cli", "who made the change")
	statusCmd.Flags().StringVar(&statusNote, "note", "", "note stored in the status history")
}
