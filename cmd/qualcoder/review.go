package main

import (
	"github.com/c360studio/qualcoder/export"
	"github.com/c360studio/qualcoder/matrix"
	"github.com/spf13/cobra"
)

func reviewCmd() *cobra.Command {
	var aggregated, interviews string

	cmd := &cobra.Command{
		Use:   "review",
		Short: "Print the coding matrix of exported results",
		Long: `Review loads the aggregated codes and interview codes JSON written by
"qualcoder code" and prints the question x code x interview matrix.`,
		Example: `  qualcoder review --aggregated data/outputs/gpt-4o-mini_aggregated_codes.json \
    --interviews data/outputs/gpt-4o-mini_interview_codes.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := export.LoadSource(aggregated, interviews)
			if err != nil {
				return err
			}
			return matrix.Render(cmd.OutOrStdout(), matrix.Build(src))
		},
	}

	cmd.Flags().StringVarP(&aggregated, "aggregated", "a", "", "Aggregated codes JSON")
	cmd.Flags().StringVarP(&interviews, "interviews", "i", "", "Interview codes JSON")
	_ = cmd.MarkFlagRequired("aggregated")
	_ = cmd.MarkFlagRequired("interviews")

	return cmd
}
