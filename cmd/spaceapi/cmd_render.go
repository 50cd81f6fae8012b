package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/spaceapi-explorer/internal/analyzer"
	"github.com/couchcryptid/spaceapi-explorer/internal/render"
)

func newCmdRender(a *app) *cobra.Command {
	var (
		limit      int
		mapPath    string
		chartsPath string
		export     exportFlags
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render an interactive world map and statistics charts as HTML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			coll, err := a.collect(cmd, nil, limit, false)
			if err != nil {
				return err
			}
			printCollection(out, coll)

			st := coll.Statuses
			if mapPath != "" {
				if err := writeFile(out, mapPath, func(w io.Writer) error { return render.WorldMap(w, st) }); err != nil {
					return err
				}
				fmt.Fprintf(out, "World map with %d located spaces written to %s\n", len(analyzer.Points(st)), mapPath)
			}
			if chartsPath != "" {
				if err := writeFile(out, chartsPath, func(w io.Writer) error { return render.ChartsPage(w, st) }); err != nil {
					return err
				}
				fmt.Fprintf(out, "Charts written to %s\n", chartsPath)
			}
			if export.enabled() {
				return export.write(out, st, analyzer.Rows(st))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "number of directory entries to fetch (0 = all)")
	cmd.Flags().StringVar(&mapPath, "map", "hackerspaces_map.html", "world map output file (empty to skip)")
	cmd.Flags().StringVar(&chartsPath, "charts", "spaceapi_charts.html", "charts output file (empty to skip)")
	export.register(cmd)
	return cmd
}
