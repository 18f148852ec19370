// File: cmd/frontier.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/openapi-seeker/internal/frontier"
)

// newFrontierCmd groups offline helpers for inspecting URL selection.
func newFrontierCmd() *cobra.Command {
	frontierCmd := &cobra.Command{
		Use:   "frontier",
		Short: "Inspects URL selection without touching the network",
	}
	frontierCmd.AddCommand(newExploreCmd())
	return frontierCmd
}

func newExploreCmd() *cobra.Command {
	var count int

	exploreCmd := &cobra.Command{
		Use:   "explore",
		Short: "Prints exploration candidates the crawler would fall back to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd.Context())
			if err != nil {
				return err
			}
			if count <= 0 {
				return fmt.Errorf("-n must be a positive integer")
			}

			explorer, err := frontier.NewExplorer(frontier.ExplorerConfig{
				TLDs:              cfg.Frontier.TLDs,
				SearchURL:         cfg.Frontier.SearchURL,
				SearchProbability: cfg.Frontier.SearchProbability,
			}, nil)
			if err != nil {
				return err
			}

			for i := 0; i < count; i++ {
				c := explorer.Next()
				fmt.Fprintf(cmd.OutOrStdout(), "%-9s %s\n", c.Kind, c.URL)
			}
			return nil
		},
	}

	exploreCmd.Flags().IntVarP(&count, "count", "n", 10, "number of candidates to print")
	return exploreCmd
}
