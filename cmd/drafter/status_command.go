package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"drafter/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show queue health summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(engine *api.Engine) error {
				health, err := engine.Health(cmd.Context())
				if err != nil {
					return fmt.Errorf("queue health: %w", err)
				}
				if asJSON {
					return writeJSON(cmd, health)
				}

				rows := [][]string{
					{"pending", strconv.Itoa(health.Pending)},
					{"inprogress", strconv.Itoa(health.InProgress)},
					{"success", strconv.Itoa(health.Succeeded)},
					{"failed", strconv.Itoa(health.Failed)},
					{"timeout", strconv.Itoa(health.TimedOut)},
					{"cancelled", strconv.Itoa(health.Cancelled)},
					{"total", strconv.Itoa(health.Total)},
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"STATE", "JOBS"}, rows, 1))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}
