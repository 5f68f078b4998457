package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"voxport/internal/client"
)

func newEstimateCommand(ctx *commandContext) *cobra.Command {
	var filters client.Filters
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "estimate <language> <percentage>",
		Short: "Estimate the size of an export before queueing it",
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
			estimate, err := apiClient.Estimate(cmd.Context(), args[0], pct, filters)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, estimate)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Language : %s\n", estimate.Language)
			fmt.Fprintf(out, "Samples  : %d\n", estimate.SampleCount)
			fmt.Fprintf(out, "Size     : %s (%d bytes)\n", estimate.HumanSize, estimate.TotalBytes)
			return nil
		},
	}

	addFilterFlags(cmd, &filters)
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")
	return cmd
}
