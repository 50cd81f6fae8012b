package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/spaceapi-explorer/internal/analyzer"
	"github.com/couchcryptid/spaceapi-explorer/internal/domain"
	"github.com/couchcryptid/spaceapi-explorer/internal/pipeline"
	"github.com/couchcryptid/spaceapi-explorer/internal/render"
)

// sensorSpacesListed caps the "spaces with sensors" list.
const sensorSpacesListed = 5

func newCmdStatus(a *app) *cobra.Command {
	var (
		limit   int
		publish bool
		filter  filterFlags
		export  exportFlags
	)
	cmd := &cobra.Command{
		Use:   "status [NAME...]",
		Short: "Fetch current statuses and show who is open",
		Long: "Fetch the status documents of the first --limit directory entries, or of the named spaces,\n" +
			"and print a status table with an opening, contact and sensor summary.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			coll, err := a.collect(cmd, args, limit, publish)
			if err != nil && !isPublishError(err) {
				return err
			}
			printCollection(out, coll)

			shown := analyzer.Filter(coll.Statuses, filter.criteria())
			if len(shown) != len(coll.Statuses) {
				fmt.Fprintf(out, "Showing %d of %d spaces matching the filter.\n\n", len(shown), len(coll.Statuses))
			}

			if err := render.StatusTable(out, shown); err != nil {
				return err
			}
			fmt.Fprintln(out)
			render.OpeningSummary(out, analyzer.OpeningPatterns(shown, time.Now()))
			render.ContactSummary(out, analyzer.ContactMethods(shown))
			printSensorSpaces(out, analyzer.Filter(shown, analyzer.Criteria{HasSensors: true}))

			if export.enabled() {
				if werr := export.write(out, shown, analyzer.Rows(shown)); werr != nil {
					return werr
				}
			}
			return err
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 30, "number of directory entries to fetch (0 = all)")
	cmd.Flags().BoolVar(&publish, "kafka", false, "publish each status to KAFKA_SINK_TOPIC")
	filter.register(cmd)
	export.register(cmd)
	return cmd
}

// filterFlags narrows what status displays and exports; publishing always sees every fetched status.
type filterFlags struct {
	open, closed bool
	located      bool
	sensors      bool
	name         string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.open, "open", false, "only spaces that are open")
	cmd.Flags().BoolVar(&f.closed, "closed", false, "only spaces that are closed")
	cmd.Flags().BoolVar(&f.located, "located", false, "only spaces with coordinates or an address")
	cmd.Flags().BoolVar(&f.sensors, "with-sensors", false, "only spaces publishing sensor data")
	cmd.Flags().StringVar(&f.name, "name", "", "only spaces whose name contains this text")
	cmd.MarkFlagsMutuallyExclusive("open", "closed")
}

func (f filterFlags) criteria() analyzer.Criteria {
	c := analyzer.Criteria{HasLocation: f.located, HasSensors: f.sensors, NameContains: f.name}
	if f.open || f.closed {
		open := f.open
		c.Open = &open
	}
	return c
}

func isPublishError(err error) bool { return errors.Is(err, pipeline.ErrPublish) }

// collect fetches either the named spaces or the first limit directory entries.
// A sink failure still returns the collection with an error matching pipeline.ErrPublish.
func (a *app) collect(cmd *cobra.Command, names []string, limit int, publish bool) (pipeline.Collection, error) {
	ctx := cmd.Context()
	p, closeSink, err := a.pipeline(publish)
	if err != nil {
		return pipeline.Collection{}, err
	}
	defer closeSink()

	if len(names) == 0 {
		return p.Collect(ctx, limit)
	}

	dir, err := a.client.FetchDirectory(ctx)
	if err != nil {
		return pipeline.Collection{}, fmt.Errorf("load directory: %w", err)
	}
	entries := make([]domain.DirectoryEntry, 0, len(names))
	for _, n := range names {
		e, ok := dir.Lookup(n)
		if !ok {
			return pipeline.Collection{}, fmt.Errorf("space %q is not in the directory", n)
		}
		entries = append(entries, e)
	}

	coll, err := p.CollectEntries(ctx, entries)
	coll.Directory = dir
	return coll, err
}

func printCollection(out io.Writer, coll pipeline.Collection) {
	fmt.Fprintf(out, "Fetched %d of %d spaces", len(coll.Statuses), coll.Attempted())
	if n := len(coll.Failures); n > 0 {
		fmt.Fprintf(out, " (%d failed)", n)
	}
	fmt.Fprint(out, "\n\n")
	for _, f := range coll.Failures {
		fmt.Fprintf(out, "  skipped %s: %s\n", f.Name, failureReason(f.Err))
	}
	if len(coll.Failures) > 0 {
		fmt.Fprintln(out)
	}
}

func failureReason(err error) string {
	var ferr *domain.FetchError
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &ferr) && ferr.Kind == domain.FetchHTTP:
		return fmt.Sprintf("HTTP %d", ferr.StatusCode)
	case errors.As(err, &ferr):
		return string(ferr.Kind) + " error"
	case errors.As(err, &verr):
		return fmt.Sprintf("invalid %s (%s)", verr.Field, verr.Reason)
	default:
		return err.Error()
	}
}

func printSensorSpaces(out io.Writer, withSensors []domain.SpaceStatus) {
	if len(withSensors) == 0 {
		return
	}
	fmt.Fprintf(out, "Spaces with sensors (%d)\n", len(withSensors))
	for i, s := range withSensors {
		if i == sensorSpacesListed {
			fmt.Fprintf(out, "  ... and %d more\n", len(withSensors)-sensorSpacesListed)
			break
		}
		fmt.Fprintf(out, "  - %s: %d sensors\n", s.Space, s.SensorCount())
	}
}
