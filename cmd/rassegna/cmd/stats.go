package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/balkanpress/rassegna/internal/output"
)

func newStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			stack, err := buildStack(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = stack.Close() }()

			stats := stack.Engine.Stats(cmd.Context())

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}

			out := output.New(cmd.OutOrStdout())
			out.Statusf("📊", "Index statistics")
			out.Statusf("", "articles:  %d", stats.Articles)
			out.Statusf("", "indexed:   %d", stats.Indexed)
			out.Statusf("", "vectors:   %d", stats.Vectors)
			out.Statusf("", "embedder:  %s", stats.Embedder)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output stats as JSON")
	return cmd
}
