package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/spaceapi-explorer/internal/health"
	"github.com/couchcryptid/spaceapi-explorer/internal/render"
)

// reportAuto selects the timestamped default report file name.
const reportAuto = "auto"

func newCmdHealth(a *app) *cobra.Command {
	var (
		limit  int
		report string
	)
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Probe status endpoints and report which ones are broken",
		Long: "Probe each status endpoint once, without retries, and classify it as success,\n" +
			"invalid_json, invalid_schema, http_error or connection_error.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			dir, err := a.client.FetchDirectory(ctx)
			if err != nil {
				return fmt.Errorf("load directory: %w", err)
			}

			m := health.NewMonitor(a.client, nil, a.logger, a.cfg.Concurrency)
			r := m.Run(ctx, dir.Head(limit))
			if err := render.HealthReport(out, r); err != nil {
				return err
			}

			if report == "" {
				return nil
			}
			path := report
			if path == reportAuto {
				path = health.DefaultReportName(r.Timestamp)
			}
			if err := writeFile(out, path, func(w io.Writer) error { return health.WriteJSON(w, r) }); err != nil {
				return err
			}
			if path != "-" {
				fmt.Fprintf(out, "\nReport exported to %s\n", path)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "number of directory entries to probe (0 = all)")
	cmd.Flags().StringVar(&report, "report", "", "write a JSON report to this file ('auto' for a timestamped name, '-' for stdout)")
	return cmd
}
