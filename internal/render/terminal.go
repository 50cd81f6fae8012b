// Package render turns statuses and aggregates into terminal tables, HTML maps, charts and export files.
package render

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/couchcryptid/spaceapi-explorer/internal/analyzer"
	"github.com/couchcryptid/spaceapi-explorer/internal/domain"
	"github.com/couchcryptid/spaceapi-explorer/internal/health"
)

var (
	openColor    = color.New(color.FgGreen, color.Bold)
	closedColor  = color.New(color.FgRed, color.Bold)
	unknownColor = color.New(color.FgYellow)
	headColor    = color.New(color.Bold)
)

// StateLabel renders a state label as coloured OPEN, CLOSED or UNKNOWN.
// Colour is dropped automatically when stdout is not a terminal (color.NoColor).
func StateLabel(state string) string {
	switch state {
	case domain.StateOpen:
		return openColor.Sprint("OPEN")
	case domain.StateClosed:
		return closedColor.Sprint("CLOSED")
	default:
		return unknownColor.Sprint("UNKNOWN")
	}
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func locationText(l domain.Location) string {
	switch {
	case l.Address != "":
		return l.Address
	case l.HasCoordinates():
		return fmt.Sprintf("%.2f, %.2f", *l.Lat, *l.Lon)
	default:
		return "N/A"
	}
}

// StatusTable writes one line per space with state, location, last change and message.
func StatusTable(w io.Writer, statuses []domain.SpaceStatus) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "SPACE\tSTATE\tLOCATION\tLAST CHANGE\tMESSAGE")
	for _, s := range statuses {
		last := "N/A"
		if t, ok := s.State.LastChangeTime(); ok {
			last = t.Format("2006-01-02 15:04 UTC")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			truncate(s.Space, 30),
			StateLabel(s.State.Label()),
			truncate(locationText(s.Location), 40),
			last,
			truncate(s.State.Message, 50),
		)
	}
	return tw.Flush()
}

// DirectoryTable lists directory entries.
func DirectoryTable(w io.Writer, entries []domain.DirectoryEntry) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "NAME\tURL")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\n", e.Name, e.URL)
	}
	return tw.Flush()
}

// HistogramTable writes a titled two-column table with percentages of the total.
func HistogramTable(w io.Writer, title string, h analyzer.Histogram) error {
	headColor.Fprintln(w, title)
	tw := newTable(w)
	total := h.Total()
	for _, c := range h {
		pct := 0.0
		if total > 0 {
			pct = float64(c.Count) / float64(total) * 100
		}
		fmt.Fprintf(tw, "  %s\t%d\t%.1f%%\n", c.Key, c.Count, pct)
	}
	return tw.Flush()
}

// BasicSummary writes the headline statistics.
func BasicSummary(w io.Writer, b analyzer.Basic) {
	headColor.Fprintln(w, "Basic statistics")
	fmt.Fprintf(w, "  Total spaces:          %d\n", b.Total)
	fmt.Fprintf(w, "  With location:         %d\n", b.WithLocation)
	fmt.Fprintf(w, "  With known state:      %d\n", b.WithState)
	fmt.Fprintf(w, "  Currently open:        %d (%.1f%%)\n", b.Open, b.OpenPercentage)
}

// maxListed caps how many names are printed in summary lists.
const maxListed = 10

// OpeningSummary writes the status summary printed after a status table.
func OpeningSummary(w io.Writer, o analyzer.Openings) {
	headColor.Fprintln(w, "Status summary")
	fmt.Fprintf(w, "  Spaces with status:          %d\n", o.WithStatus)
	fmt.Fprintf(w, "  Currently open:              %d\n", o.Open)
	fmt.Fprintf(w, "  Currently closed:            %d\n", o.Closed)
	fmt.Fprintf(w, "  Recent status changes (24h): %d\n", o.RecentChanges)
	if len(o.OpenSpaces) == 0 {
		return
	}
	openColor.Fprintf(w, "Currently open spaces (%d)\n", len(o.OpenSpaces))
	for i, name := range o.OpenSpaces {
		if i == maxListed {
			fmt.Fprintf(w, "  ... and %d more\n", len(o.OpenSpaces)-maxListed)
			break
		}
		fmt.Fprintf(w, "  - %s\n", name)
	}
}

// ContactSummary writes per-method contact usage.
func ContactSummary(w io.Writer, c analyzer.Contacts) {
	if c.SpacesWithContact == 0 {
		return
	}
	headColor.Fprintln(w, "Contact methods")
	for _, m := range c.Methods {
		fmt.Fprintf(w, "  %s: %d spaces (%.1f%%)\n", m.Method, m.Count, m.Percentage)
	}
}

// SensorSummary writes sensor type counts and the example readings.
func SensorSummary(w io.Writer, s analyzer.Sensors) error {
	if s.SpacesWithSensors == 0 {
		fmt.Fprintln(w, "No sensor data published.")
		return nil
	}
	fmt.Fprintf(w, "%d spaces publish %d sensor readings\n", s.SpacesWithSensors, s.Total)
	if err := HistogramTable(w, "Sensor types", s.Types); err != nil {
		return err
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "TYPE\tSPACE\tSENSOR\tVALUE")
	for _, t := range s.Types {
		for _, ex := range s.Examples[t.Key] {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.Key, truncate(ex.Space, 30), truncate(ex.Name, 30), sensorValue(ex))
		}
	}
	return tw.Flush()
}

func sensorValue(ex analyzer.SensorExample) string {
	v := ex.Text
	if ex.Value != nil {
		v = fmt.Sprintf("%g", *ex.Value)
	}
	if ex.Unit != "" {
		v += " " + ex.Unit
	}
	return v
}

// HealthReport writes the summary, breakdowns, issue table and recommendations of a health run.
func HealthReport(w io.Writer, r health.Report) error {
	s := r.Summary
	headColor.Fprintln(w, "SpaceAPI health report")
	fmt.Fprintf(w, "  Run:                   %s\n", r.RunID)
	fmt.Fprintf(w, "  Endpoints checked:     %d\n", s.Total)
	fmt.Fprintf(w, "  Successful:            %d (%.1f%%)\n", s.Successful, s.SuccessRate)
	fmt.Fprintf(w, "  Failed:                %d (%.1f%%)\n", s.Failed, failedRate(s))
	fmt.Fprintf(w, "  Average response time: %.2fs\n", s.AvgResponseTime)

	if len(r.APIVersions) > 0 {
		headColor.Fprintln(w, "API versions")
		for _, v := range r.VersionKeys() {
			n := r.APIVersions[v]
			fmt.Fprintf(w, "  v%s: %d spaces (%.1f%%)\n", v, n, float64(n)/float64(s.Successful)*100)
		}
	}

	if s.Failed > 0 {
		headColor.Fprintln(w, "Error breakdown")
		for _, o := range health.Outcomes {
			if n := len(r.Errors[o]); n > 0 {
				fmt.Fprintf(w, "  %s: %d endpoints\n", o, n)
			}
		}
		if err := issueTable(w, r); err != nil {
			return err
		}
	}

	headColor.Fprintln(w, "Recommendations")
	for _, rec := range r.Recommendations() {
		fmt.Fprintf(w, "  - %s\n", rec)
	}
	return nil
}

func failedRate(s health.Summary) float64 {
	if s.Total == 0 {
		return 0
	}
	return 100 - s.SuccessRate
}

// issuesPerOutcome caps the rows printed for each failure class.
const issuesPerOutcome = 10

func issueTable(w io.Writer, r health.Report) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "SPACE\tSTATUS\tDETAILS\tRESPONSE TIME")
	for _, o := range health.Outcomes {
		for i, c := range r.Errors[o] {
			if i == issuesPerOutcome {
				break
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
				truncate(c.Space, 30),
				closedColor.Sprint(string(o)),
				truncate(c.Error, 50),
				c.ResponseTime.Round(10*time.Millisecond),
			)
		}
	}
	return tw.Flush()
}
