package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"voxport/internal/api"
	"voxport/internal/client"
	"voxport/internal/jobs"
)

func addFilterFlags(cmd *cobra.Command, filters *client.Filters) {
	cmd.Flags().StringVar(&filters.Gender, "gender", "", "Filter by speaker gender")
	cmd.Flags().StringVar(&filters.AgeGroup, "age-group", "", "Filter by speaker age group")
	cmd.Flags().StringVar(&filters.Education, "education", "", "Filter by education level")
	cmd.Flags().StringVar(&filters.Domain, "domain", "", "Filter by recording domain")
	cmd.Flags().StringVar(&filters.Category, "category", "", "Filter by recording category")
	cmd.Flags().StringVar(&filters.Split, "split", "", "Filter by dataset split")
}

func parsePercentage(raw string) (float64, error) {
	pct, err := strconv.ParseFloat(raw, 64)
	if err != nil || pct <= 0 || pct > 100 {
		return 0, fmt.Errorf("percentage %q must be a number in (0,100]", raw)
	}
	return pct, nil
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var filters client.Filters
	var jsonOutput bool
	var watch bool

	cmd := &cobra.Command{
		Use:   "export <language> <percentage>",
		Short: "Queue a dataset export job",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pct, err := parsePercentage(args[1])
			if err != nil {
				return err
			}
			apiClient, err := ctx.dialClient()
			if err != nil {
				return err
			}

			submitted, err := apiClient.Submit(cmd.Context(), args[0], pct, filters)
			if err != nil {
				return err
			}
			if jsonOutput && !watch {
				return writeJSON(cmd, submitted)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued export job %s\n", submitted.JobID)
			if !watch {
				return nil
			}
			return watchJob(cmd, apiClient, submitted.JobID, jsonOutput)
		},
	}

	addFilterFlags(cmd, &filters)
	cmd.Flags().StringVar(&filters.Format, "format", "", "Metadata format: csv or xlsx (default csv)")
	cmd.Flags().StringVar(&filters.UserID, "user", "", "Requesting user id recorded on the job")
	cmd.Flags().BoolVar(&watch, "watch", false, "Stream job status until it finishes")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")
	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var watch bool

	cmd := &cobra.Command{
		Use:   "status [job-id]",
		Short: "Show daemon health or one job's status",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := ctx.dialClient()
			if err != nil {
				return err
			}

			if len(args) == 0 {
				status, err := apiClient.Status(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, status)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Daemon running (pid %d)\n", status.PID)
				fmt.Fprintf(out, "Jobs: %d queued, %d processing, %d ready, %d failed\n",
					status.Queued, status.Processing, status.Ready, status.Failed)
				return nil
			}

			if watch {
				return watchJob(cmd, apiClient, args[0], jsonOutput)
			}
			job, err := apiClient.Job(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, job)
			}
			printJob(cmd, job)
			return nil
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "Stream job status until it finishes")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")
	return cmd
}

func watchJob(cmd *cobra.Command, apiClient *client.Client, id string, jsonOutput bool) error {
	out := cmd.OutOrStdout()
	last, err := apiClient.Watch(cmd.Context(), id, func(status api.JobStatus) {
		if jsonOutput {
			_ = writeJSON(cmd, status)
			return
		}
		fmt.Fprintf(out, "%-12s %3d%%  %d/%d samples\n",
			status.Status, status.ProgressPct, status.SampleCount, status.TotalCount)
	})
	if err != nil {
		return err
	}
	if jsonOutput {
		return nil
	}
	switch last.Status {
	case string(jobs.StatusReady):
		fmt.Fprintf(out, "Export ready: %s\n", last.DownloadURL)
	case string(jobs.StatusFailed):
		return fmt.Errorf("export failed: %s", last.ErrorMessage)
	}
	return nil
}

func printJob(cmd *cobra.Command, job api.JobStatus) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job        : %s\n", job.JobID)
	fmt.Fprintf(out, "Language   : %s (%s%%)\n", job.Language, strconv.FormatFloat(job.Percentage, 'f', -1, 64))
	fmt.Fprintf(out, "Status     : %s\n", job.Status)
	fmt.Fprintf(out, "Progress   : %d%% (%d/%d samples)\n", job.ProgressPct, job.SampleCount, job.TotalCount)
	if job.DownloadURL != "" {
		fmt.Fprintf(out, "Download   : %s\n", job.DownloadURL)
	}
	if job.ErrorMessage != "" {
		fmt.Fprintf(out, "Error      : %s\n", job.ErrorMessage)
	}
}
