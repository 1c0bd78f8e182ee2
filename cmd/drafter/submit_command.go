package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"drafter/internal/api"
	"drafter/internal/dispatch"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var formats []string
	var quality string
	var priority string
	var category string

	cmd := &cobra.Command{
		Use:   "submit <reference>",
		Short: "Queue a source file reference for translation",
		Long: `Queue a source file reference for translation.

The reference is encrypted before it is stored; the printed job id is the
opaque token collaborators use for all further operations. The running
daemon picks the job up and submits it to the conversion provider.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(engine *api.Engine) error {
				job, err := engine.StartTranslation(cmd.Context(), dispatch.Request{
					Reference:     args[0],
					OutputFormats: formats,
					Quality:       quality,
					Priority:      priority,
					Category:      category,
				})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Queued job %s\n", job.JobID)
				fmt.Fprintf(out, "Formats: %v  Quality: %s  Priority: %s\n", job.OutputFormats, job.Quality, job.Priority)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&formats, "format", nil, "Output formats (default svf,thumbnail)")
	cmd.Flags().StringVar(&quality, "quality", "", "Quality tier: low, medium, high")
	cmd.Flags().StringVar(&priority, "priority", "", "Priority: low, normal, high")
	cmd.Flags().StringVar(&category, "category", "", "Input format category, e.g. rvt, ifc, obj")
	return cmd
}
