package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/spaceapi-explorer/internal/analyzer"
	"github.com/couchcryptid/spaceapi-explorer/internal/render"
)

// statsReport is the exported form of the stats command.
type statsReport struct {
	GeneratedAt time.Time          `json:"generated_at" yaml:"generated_at"`
	Basic       analyzer.Basic     `json:"basic" yaml:"basic"`
	States      analyzer.States    `json:"states" yaml:"states"`
	Regions     analyzer.Histogram `json:"regions" yaml:"regions"`
	Countries   analyzer.Histogram `json:"countries" yaml:"countries"`
	Versions    analyzer.Histogram `json:"api_versions" yaml:"api_versions"`
	Schemas     analyzer.Histogram `json:"schemas" yaml:"schemas"`
	Contacts    analyzer.Contacts  `json:"contacts" yaml:"contacts"`
	Sensors     analyzer.Sensors   `json:"sensors" yaml:"sensors"`
	Openings    analyzer.Openings  `json:"openings" yaml:"openings"`
}

func newCmdStats(a *app) *cobra.Command {
	var (
		limit  int
		export exportFlags
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Compute geographic, country, sensor and version statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			coll, err := a.collect(cmd, nil, limit, false)
			if err != nil {
				return err
			}
			printCollection(out, coll)

			now := time.Now().UTC()
			st := coll.Statuses
			report := statsReport{
				GeneratedAt: now,
				Basic:       analyzer.BasicStats(st),
				States:      analyzer.StateCounts(st),
				Regions:     analyzer.GeoHistogram(st),
				Countries:   analyzer.CountryHistogram(st),
				Versions:    analyzer.VersionDistribution(st),
				Schemas:     analyzer.SchemaDistribution(st),
				Contacts:    analyzer.ContactMethods(st),
				Sensors:     analyzer.SensorSummary(st),
				Openings:    analyzer.OpeningPatterns(st, now),
			}

			render.BasicSummary(out, report.Basic)
			fmt.Fprintln(out)
			for _, h := range []struct {
				title string
				h     analyzer.Histogram
			}{
				{"Regions", report.Regions},
				{"Countries", report.Countries},
				{"Declared API versions", report.Versions},
				{"Schema read as", report.Schemas},
			} {
				if err := render.HistogramTable(out, h.title, h.h); err != nil {
					return err
				}
				fmt.Fprintln(out)
			}
			render.ContactSummary(out, report.Contacts)
			fmt.Fprintln(out)
			if err := render.SensorSummary(out, report.Sensors); err != nil {
				return err
			}

			if export.enabled() {
				return export.write(out, report, analyzer.Rows(st))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "number of directory entries to fetch (0 = all)")
	export.register(cmd)
	return cmd
}
