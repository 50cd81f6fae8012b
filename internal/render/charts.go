package render

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/couchcryptid/spaceapi-explorer/internal/analyzer"
	"github.com/couchcryptid/spaceapi-explorer/internal/domain"
)

// StatusPie charts open, closed and unknown spaces. Empty slices are skipped.
func StatusPie(statuses []domain.SpaceStatus) *charts.Pie {
	counts := analyzer.StateCounts(statuses)
	pie := charts.NewPie()
	pie.SetGlobalOptions(charts.WithTitleOpts(opts.Title{
		Title:    "Hackerspace Opening Status",
		Subtitle: fmt.Sprintf("%d spaces", counts.Total()),
	}))

	var data []opts.PieData
	for _, slice := range []struct {
		label string
		n     int
		color string
	}{
		{"Open", counts.Open, colorOpen},
		{"Closed", counts.Closed, colorClosed},
		{"Unknown", counts.Unknown, colorUnknown},
	} {
		if slice.n == 0 {
			continue
		}
		data = append(data, opts.PieData{
			Name:      fmt.Sprintf("%s (%d)", slice.label, slice.n),
			Value:     slice.n,
			ItemStyle: &opts.ItemStyle{Color: slice.color},
		})
	}
	pie.AddSeries("status", data)
	return pie
}

// GeoScatter plots located spaces by longitude and latitude, one series per state.
func GeoScatter(statuses []domain.SpaceStatus) *charts.Scatter {
	sc := charts.NewScatter()
	sc.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Global Hackerspace Distribution"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Longitude", Type: "value", Min: -180, Max: 180}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Latitude", Type: "value", Min: -90, Max: 90}),
	)

	byState := map[string][]opts.ScatterData{}
	for _, p := range analyzer.Points(statuses) {
		byState[p.State] = append(byState[p.State], opts.ScatterData{
			Name:       p.Name,
			Value:      []float64{p.Lon, p.Lat},
			SymbolSize: 8,
		})
	}
	for _, state := range []string{domain.StateOpen, domain.StateClosed, domain.StateUnknown} {
		sc.AddSeries(state, byState[state], charts.WithItemStyleOpts(opts.ItemStyle{Color: stateColor(state)}))
	}
	return sc
}

func histogramBar(title, series string, h analyzer.Histogram) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: title}))

	keys := make([]string, 0, len(h))
	data := make([]opts.BarData, 0, len(h))
	for _, c := range h {
		keys = append(keys, c.Key)
		data = append(data, opts.BarData{Name: c.Key, Value: c.Count})
	}
	bar.SetXAxis(keys).AddSeries(series, data)
	return bar
}

// ContactBar charts how many spaces use each contact channel.
func ContactBar(statuses []domain.SpaceStatus) *charts.Bar {
	contacts := analyzer.ContactMethods(statuses)
	h := make(analyzer.Histogram, 0, len(contacts.Methods))
	for _, m := range contacts.Methods {
		h = append(h, analyzer.Count{Key: m.Method, Count: m.Count})
	}
	return histogramBar("Contact Methods Used by Hackerspaces", "spaces", h)
}

// SensorBar charts the number of readings per sensor type.
func SensorBar(statuses []domain.SpaceStatus) *charts.Bar {
	return histogramBar("Sensor Types", "readings", analyzer.SensorSummary(statuses).Types)
}

// VersionBar charts declared API compatibility.
func VersionBar(statuses []domain.SpaceStatus) *charts.Bar {
	return histogramBar("Declared API Versions", "spaces", analyzer.VersionDistribution(statuses))
}

// RegionBar charts spaces per coarse region.
func RegionBar(statuses []domain.SpaceStatus) *charts.Bar {
	return histogramBar("Spaces per Region", "spaces", analyzer.GeoHistogram(statuses))
}

// ChartsPage renders every chart onto one HTML page.
func ChartsPage(w io.Writer, statuses []domain.SpaceStatus) error {
	page := components.NewPage()
	page.PageTitle = "SpaceAPI statistics"
	page.AddCharts(
		StatusPie(statuses),
		GeoScatter(statuses),
		RegionBar(statuses),
		ContactBar(statuses),
		SensorBar(statuses),
		VersionBar(statuses),
	)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render charts: %w", err)
	}
	return nil
}
