package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"drafter/internal/api"
)

func newRetryCommand(ctx *commandContext) *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "retry <job-id>",
		Short: "Move a failed or timed out job back to pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(engine *api.Engine) error {
				job, err := engine.Retry(cmd.Context(), args[0], reset)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %s requeued (retry %d)\n", job.JobID, job.RetryCount)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&reset, "reset", false, "Reset the retry counter instead of incrementing it")
	return cmd
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a pending or in-progress job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(engine *api.Engine) error {
				job, err := engine.Cancel(cmd.Context(), args[0], reason)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %s cancelled\n", job.JobID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "cancelled via cli", "Reason recorded on the job")
	return cmd
}
