package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"voxport/internal/client"
)

func newPreviewCommand(ctx *commandContext) *cobra.Command {
	var filters client.Filters
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "preview <language>",
		Short: "List playback samples for a language",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := ctx.dialClient()
			if err != nil {
				return err
			}
			preview, err := apiClient.Preview(cmd.Context(), args[0], limit, filters)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, preview)
			}
			if len(preview.Samples) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No samples found for %s\n", preview.Language)
				return nil
			}

			rows := make([][]string, 0, len(preview.Samples))
			for _, sample := range preview.Samples {
				rows = append(rows, []string{
					sample.ID,
					sample.SpeakerID,
					sample.Category,
					sample.Gender,
					fmt.Sprintf("%.1fs", sample.Duration),
					truncate(sample.Transcript, 48),
				})
			}
			headers := []string{"ID", "SPEAKER", "CATEGORY", "GENDER", "DURATION", "TRANSCRIPT"}
			aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
			return nil
		},
	}

	addFilterFlags(cmd, &filters)
	cmd.Flags().IntVar(&limit, "limit", 0, "Number of samples to fetch")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")
	return cmd
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	if max <= 3 {
		return value[:max]
	}
	return value[:max-3] + "..."
}
