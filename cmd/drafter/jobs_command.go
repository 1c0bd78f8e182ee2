package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"drafter/internal/api"
	"drafter/internal/queue"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var statusFilters []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "jobs [job-id]",
		Short: "List translation jobs or show one in detail",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(engine *api.Engine) error {
				if len(args) == 1 {
					report, err := engine.GetStatus(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					if asJSON {
						return writeJSON(cmd, report)
					}
					printReport(cmd, report)
					return nil
				}

				statuses, err := parseStatusFilters(statusFilters)
				if err != nil {
					return err
				}
				jobs, err := engine.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, jobs)
				}

				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, []string{
						truncate(job.JobID, 28),
						string(job.Status),
						fmt.Sprintf("%.0f%%", job.Progress),
						job.Stage,
						strconv.Itoa(job.RetryCount),
						formatAge(job.CreatedAt),
						truncate(job.ProgressMessage, 40),
					})
				}
				headers := []string{"JOB ID", "STATUS", "PROGRESS", "STAGE", "RETRIES", "AGE", "MESSAGE"}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, 2, 4))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&statusFilters, "status", nil, "Filter by status (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func printReport(cmd *cobra.Command, report *api.StatusReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job:      %s\n", report.JobID)
	fmt.Fprintf(out, "Status:   %s\n", report.Status)
	fmt.Fprintf(out, "Progress: %.0f%%\n", report.Progress)
	if report.Stage != "" {
		fmt.Fprintf(out, "Stage:    %s\n", report.Stage)
	}
	if report.Message != "" {
		fmt.Fprintf(out, "Message:  %s\n", report.Message)
	}
	if report.ErrorKind != "" {
		fmt.Fprintf(out, "Error:    %s\n", report.ErrorKind)
	}
	fmt.Fprintf(out, "Retries:  %d\n", report.RetryCount)
	fmt.Fprintf(out, "Created:  %s\n", report.CreatedAt.Format(time.RFC3339))
	if report.StartedAt != nil {
		fmt.Fprintf(out, "Started:  %s\n", report.StartedAt.Format(time.RFC3339))
	}
	if report.CompletedAt != nil {
		fmt.Fprintf(out, "Finished: %s\n", report.CompletedAt.Format(time.RFC3339))
	}
	if report.ETA != nil {
		fmt.Fprintf(out, "ETA:      %s\n", report.ETA.Round(time.Second))
	}
}

func parseStatusFilters(raw []string) ([]queue.Status, error) {
	statuses := make([]queue.Status, 0, len(raw))
	for _, value := range raw {
		parsed, ok := queue.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", value)
		}
		statuses = append(statuses, parsed)
	}
	return statuses, nil
}

func truncate(value string, max int) string {
	value = strings.TrimSpace(value)
	if len(value) <= max {
		return value
	}
	if max <= 3 {
		return value[:max]
	}
	return value[:max-3] + "..."
}

func formatAge(created time.Time) string {
	age := time.Since(created)
	switch {
	case age < time.Minute:
		return fmt.Sprintf("%ds", int(age.Seconds()))
	case age < time.Hour:
		return fmt.Sprintf("%dm", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh", int(age.Hours()))
	default:
		return fmt.Sprintf("%dd", int(age.Hours()/24))
	}
}
