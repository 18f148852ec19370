// File: cmd/reports.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/openapi-seeker/internal/observability"
	"github.com/xkilldash9x/openapi-seeker/internal/store"
)

// Allows for mocking in tests.
var reportsStoreOpener storeOpener = defaultStoreOpener

// newReportsCmd creates the `reports` command, which lists schema candidates
// recorded by earlier runs. Only the postgres store outlives a process.
func newReportsCmd() *cobra.Command {
	var format string

	reportsCmd := &cobra.Command{
		Use:   "reports",
		Short: "Lists reported schema candidates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := configFrom(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			listCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			reports, cleanup, err := reportsStoreOpener(listCtx, cfg.Store, logger)
			if err != nil {
				return fmt.Errorf("failed to open report store: %w", err)
			}
			defer cleanup()

			list, err := reports.List(listCtx)
			if err != nil {
				return fmt.Errorf("failed to list reports: %w", err)
			}

			switch format {
			case "json":
				return writeReportsJSON(cmd.OutOrStdout(), list)
			case "table":
				return writeReportsTable(cmd.OutOrStdout(), list)
			default:
				return fmt.Errorf("unsupported format '%s' (use table or json)", format)
			}
		},
	}

	reportsCmd.Flags().StringVarP(&format, "format", "f", "table", "output format: table or json")
	return reportsCmd
}

func writeReportsJSON(w io.Writer, list []store.Report) error {
	if list == nil {
		list = []store.Report{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(list)
}

func writeReportsTable(w io.Writer, list []store.Report) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "No schema candidates reported.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "REPORTED AT\tURL\tNOTE")
	for _, r := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.ReportedAt.UTC().Format(time.RFC3339), r.URL, r.Note)
	}
	return tw.Flush()
}
