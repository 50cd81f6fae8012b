package render

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/spaceapi-explorer/internal/analyzer"
	"github.com/couchcryptid/spaceapi-explorer/internal/domain"
	"github.com/couchcryptid/spaceapi-explorer/internal/health"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func ptr[T any](v T) *T { return &v }

func sample() []domain.SpaceStatus {
	return []domain.SpaceStatus{
		{
			Space:       "Alpha <Lab>",
			APIVersions: []string{"15"},
			URL:         "https://alpha.example",
			Location:    domain.Location{Address: "Main St 1", Lat: ptr(52.5), Lon: ptr(13.4), CountryCode: "DE"},
			State:       domain.State{Open: ptr(true), LastChange: time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC).Unix(), Message: "come   in"},
			Contact:     domain.Contact{Email: "a@example.org"},
			Sensors: map[string][]domain.Sensor{
				"temperature": {{Type: "temperature", Name: "room", Unit: "°C", Value: ptr(21.5)}},
			},
		},
		{
			Space:       "Beta",
			APIVersions: []string{"14"},
			Location:    domain.Location{Lat: ptr(40.7), Lon: ptr(-74.0)},
			State:       domain.State{Open: ptr(false)},
		},
		{
			Space:       "Gamma",
			APIVersions: []string{"0.13"},
			State:       domain.State{},
		},
	}
}

func TestStateLabel(t *testing.T) {
	assert.Equal(t, "OPEN", StateLabel(domain.StateOpen))
	assert.Equal(t, "CLOSED", StateLabel(domain.StateClosed))
	assert.Equal(t, "UNKNOWN", StateLabel(domain.StateUnknown))
	assert.Equal(t, "UNKNOWN", StateLabel(""))
}

func TestStatusTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, StatusTable(&buf, sample()))
	out := buf.String()

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "SPACE"))
	assert.Contains(t, lines[1], "OPEN")
	assert.Contains(t, lines[1], "Main St 1")
	assert.Contains(t, lines[1], "2026-03-01 10:30 UTC")
	assert.Contains(t, lines[1], "come in", "whitespace is collapsed")
	assert.Contains(t, lines[2], "40.70, -74.00")
	assert.Contains(t, lines[3], "N/A")
	assert.Contains(t, lines[3], "UNKNOWN")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
	assert.Equal(t, "äöü…", truncate("äöüßéè", 4))
}

func TestDirectoryTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, DirectoryTable(&buf, []domain.DirectoryEntry{{Name: "Alpha", URL: "https://a/status.json"}}))
	assert.Contains(t, buf.String(), "NAME")
	assert.Contains(t, buf.String(), "https://a/status.json")
}

func TestHistogramTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, HistogramTable(&buf, "Countries", analyzer.Histogram{{Key: "DE", Count: 3}, {Key: "??", Count: 1}}))
	out := buf.String()
	assert.Contains(t, out, "Countries")
	assert.Contains(t, out, "75.0%")
	assert.Contains(t, out, "25.0%")
}

func TestSummaries(t *testing.T) {
	statuses := sample()
	var buf bytes.Buffer
	BasicSummary(&buf, analyzer.BasicStats(statuses))
	OpeningSummary(&buf, analyzer.OpeningPatterns(statuses, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)))
	ContactSummary(&buf, analyzer.ContactMethods(statuses))
	require.NoError(t, SensorSummary(&buf, analyzer.SensorSummary(statuses)))

	out := buf.String()
	assert.Contains(t, out, "Currently open:        1 (50.0%)")
	assert.Contains(t, out, "Recent status changes (24h): 1")
	assert.Contains(t, out, "- Alpha <Lab>")
	assert.Contains(t, out, "email: 1 spaces (100.0%)")
	assert.Contains(t, out, "21.5 °C")
}

func TestSensorSummary_NoSensors(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SensorSummary(&buf, analyzer.Sensors{}))
	assert.Equal(t, "No sensor data published.\n", buf.String())
}

func TestHealthReport(t *testing.T) {
	r := health.NewReport("run-1", time.Now(), []health.Check{
		{Space: "A", Outcome: health.OutcomeSuccess, APIVersion: "14", Seconds: 0.2},
		{Space: "B", Outcome: health.OutcomeHTTPError, StatusCode: 404, Error: "HTTP 404", ResponseTime: 300 * time.Millisecond, Seconds: 0.3},
	})

	var buf bytes.Buffer
	require.NoError(t, HealthReport(&buf, r))
	out := buf.String()
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "Successful:            1 (50.0%)")
	assert.Contains(t, out, "v14: 1 spaces (100.0%)")
	assert.Contains(t, out, "http_error: 1 endpoints")
	assert.Contains(t, out, "HTTP 404")
	assert.Contains(t, out, "concerning")
}

func TestWorldMap(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WorldMap(&buf, sample()))
	out := buf.String()

	assert.Contains(t, out, "leaflet.js")
	assert.Contains(t, out, "Beta")
	assert.Contains(t, out, colorOpen)
	assert.Contains(t, out, colorClosed)
	assert.NotContains(t, out, "Alpha <Lab>", "names are escaped inside the script")
	assert.Contains(t, out, "1 spaces without coordinates")
}

func TestWorldMap_DropsNonWebLinks(t *testing.T) {
	lat, lon := 10.0, 20.0
	statuses := []domain.SpaceStatus{
		{Space: "Scripted", URL: "javascript:alert(document.cookie)", Location: domain.Location{Lat: &lat, Lon: &lon}},
		{Space: "Plain", URL: "https://plain.example/", Location: domain.Location{Lat: &lat, Lon: &lon}},
	}

	var buf bytes.Buffer
	require.NoError(t, WorldMap(&buf, statuses))
	out := buf.String()

	assert.NotContains(t, out, "javascript:")
	assert.Contains(t, out, "plain.example")
}

func TestChartsPage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ChartsPage(&buf, sample()))
	out := buf.String()
	assert.Contains(t, out, "echarts")
	assert.Contains(t, out, "Hackerspace Opening Status")
	assert.Contains(t, out, "Declared API Versions")
}

func TestChartsPage_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ChartsPage(&buf, nil))
	assert.NotEmpty(t, buf.String())
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"json": FormatJSON, "YAML": FormatYAML, "yml": FormatYAML, " cbor ": FormatCBOR, "csv": FormatCSV} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xml")
}

func TestExport_StructuredFormats(t *testing.T) {
	statuses := sample()

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Export(&buf, FormatJSON, statuses))
		var got []map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		require.Len(t, got, 3)
		assert.Equal(t, "Alpha <Lab>", got[0]["space"])
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Export(&buf, FormatYAML, statuses))
		var got []map[string]any
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
		require.Len(t, got, 3)
		assert.Equal(t, "Beta", got[1]["space"])
	})

	t.Run("cbor", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Export(&buf, FormatCBOR, statuses))
		var got []map[string]any
		require.NoError(t, cbor.Unmarshal(buf.Bytes(), &got))
		require.Len(t, got, 3)
		assert.Equal(t, "Gamma", got[2]["space"])
	})

	t.Run("csv rejects non-rows", func(t *testing.T) {
		err := Export(&bytes.Buffer{}, FormatCSV, statuses)
		require.Error(t, err)
	})

	t.Run("unknown", func(t *testing.T) {
		require.Error(t, Export(&bytes.Buffer{}, Format("xml"), statuses))
	})
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, FormatCSV, analyzer.Rows(sample())))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, []string{
		"Alpha <Lab>", "https://alpha.example", "", "52.5", "13.4", "Main St 1", "", "DE",
		"open", "1772361000", "true", "true", "false", "15",
	}, records[1])
	assert.Equal(t, "", records[3][3], "missing latitude is an empty cell")
	assert.Equal(t, "", records[3][9], "unknown lastchange is an empty cell")
}
