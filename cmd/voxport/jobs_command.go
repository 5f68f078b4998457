package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"voxport/internal/api"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List export jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := ctx.dialClient()
			if err != nil {
				return err
			}
			list, err := apiClient.Jobs(cmd.Context(), statusFilter, limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, api.JobListResponse{Jobs: list})
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No export jobs found")
				return nil
			}

			rows := make([][]string, 0, len(list))
			for _, job := range list {
				rows = append(rows, []string{
					job.JobID,
					job.Language,
					strconv.FormatFloat(job.Percentage, 'f', -1, 64),
					job.Status,
					fmt.Sprintf("%d%%", job.ProgressPct),
					fmt.Sprintf("%d/%d", job.SampleCount, job.TotalCount),
					job.CreatedAt,
				})
			}
			headers := []string{"JOB", "LANGUAGE", "PCT", "STATUS", "PROGRESS", "SAMPLES", "CREATED"}
			aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignRight, alignLeft}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Only list jobs with this status")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of jobs to list")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")
	return cmd
}
