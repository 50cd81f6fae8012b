package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

const (
	alphaJSON = `{"api_compatibility":["15"],"space":"Alpha","url":"https://alpha.example",
		"location":{"address":"Main St 1","lat":52.5,"lon":13.4,"country_code":"DE"},
		"state":{"open":true,"message":"come in"},
		"contact":{"email":"hello@alpha.example"},
		"sensors":{"temperature":[{"value":21.5,"unit":"°C","location":"Hall"}]}}`
	betaJSON = `{"api":"0.13","space":"Beta","location":{"lat":40.7,"lon":-74.0},"open":false}`
)

// directoryServer serves a three-space directory: two valid documents and one 404.
func directoryServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/directory.json", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"Alpha":%q,"Beta":%q,"Broken":%q,"Bad":"not a url"}`,
			srv.URL+"/alpha.json", srv.URL+"/beta.json", srv.URL+"/broken.json")
	})
	mux.HandleFunc("/alpha.json", func(w http.ResponseWriter, _ *http.Request) { fmt.Fprint(w, alphaJSON) })
	mux.HandleFunc("/beta.json", func(w http.ResponseWriter, _ *http.Request) { fmt.Fprint(w, betaJSON) })
	mux.HandleFunc("/broken.json", func(w http.ResponseWriter, _ *http.Request) { http.NotFound(w, nil) })
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// execute runs the CLI against srv with a clean environment and returns stdout.
func execute(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	for _, key := range []string{"MAPBOX_TOKEN", "MAPBOX_ENABLED", "KAFKA_BROKERS", "METRICS_FILE", "SPACEAPI_RATE_LIMIT"} {
		t.Setenv(key, "")
	}

	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	if srv != nil {
		args = append(args, "--directory-url", srv.URL+"/directory.json", "--max-attempts", "1")
	}
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, nil, "version")
	require.NoError(t, err)
	assert.Equal(t, "spaceapi version dev\n", out)
}

func TestDirectory(t *testing.T) {
	srv := directoryServer(t)
	out, err := execute(t, srv, "directory", "--search", "ta")
	require.NoError(t, err)

	assert.Contains(t, out, "Found 3 hackerspaces")
	assert.Contains(t, out, "Skipped 1 entries")
	assert.Contains(t, out, srv.URL+"/alpha.json")
	assert.Contains(t, out, `"ta": 1 spaces`)
	assert.Contains(t, out, "- Beta")
}

func TestDirectory_ExportYAML(t *testing.T) {
	srv := directoryServer(t)
	path := filepath.Join(t.TempDir(), "dir.yaml")
	_, err := execute(t, srv, "directory", "--export", path, "--format", "yaml")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "name: Alpha")
	assert.Contains(t, string(data), "- Bad")
}

func TestDirectory_CSVRejected(t *testing.T) {
	srv := directoryServer(t)
	_, err := execute(t, srv, "directory", "--export", "-", "--format", "csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv")
}

func TestDirectory_Unreachable(t *testing.T) {
	srv := directoryServer(t)
	srv.Close()
	_, err := execute(t, srv, "directory")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load directory")
}

func TestStatus(t *testing.T) {
	srv := directoryServer(t)
	out, err := execute(t, srv, "status")
	require.NoError(t, err)

	assert.Contains(t, out, "Fetched 2 of 3 spaces (1 failed)")
	assert.Contains(t, out, "skipped Broken: HTTP 404")
	assert.Contains(t, out, "OPEN")
	assert.Contains(t, out, "CLOSED")
	assert.Contains(t, out, "Main St 1")
	assert.Contains(t, out, "email: 1 spaces (100.0%)")
	assert.Contains(t, out, "- Alpha: 1 sensors")
}

func TestStatus_Unreachable(t *testing.T) {
	srv := directoryServer(t)
	srv.Close()
	_, err := execute(t, srv, "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load directory")
}

func TestStatus_NamedSpaces(t *testing.T) {
	srv := directoryServer(t)
	out, err := execute(t, srv, "status", "Beta")
	require.NoError(t, err)
	assert.Contains(t, out, "Fetched 1 of 1 spaces")
	assert.NotContains(t, out, "Alpha")
}

func TestStatus_UnknownSpace(t *testing.T) {
	srv := directoryServer(t)
	_, err := execute(t, srv, "status", "Nowhere")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"Nowhere"`)
}

func TestStatus_Filter(t *testing.T) {
	srv := directoryServer(t)
	out, err := execute(t, srv, "status", "--closed")
	require.NoError(t, err)
	assert.Contains(t, out, "Showing 1 of 2 spaces")
	assert.Contains(t, out, "CLOSED")
	assert.NotContains(t, out, "Main St 1")

}

func TestStatus_ConflictingStateFilters(t *testing.T) {
	srv := directoryServer(t)
	srv.Close()

	// Rejected before any fetch: the directory server is already gone.
	_, err := execute(t, srv, "status", "--open", "--closed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "none of the others can be")
	assert.NotContains(t, err.Error(), "load directory")
}

func TestStatus_KafkaWithoutBrokers(t *testing.T) {
	srv := directoryServer(t)
	_, err := execute(t, srv, "status", "--kafka")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKERS")
}

func TestStatus_ExportCSV(t *testing.T) {
	srv := directoryServer(t)
	path := filepath.Join(t.TempDir(), "rows.csv")
	_, err := execute(t, srv, "status", "--export", path, "--format", "csv")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "name,url,logo")
	assert.Contains(t, string(data), "Alpha,https://alpha.example")
}

func TestStats_ExportJSON(t *testing.T) {
	srv := directoryServer(t)
	path := filepath.Join(t.TempDir(), "stats.json")
	out, err := execute(t, srv, "stats", "--export", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Regions")
	assert.Contains(t, out, "Europe")
	assert.Contains(t, out, "temperature")

	var got statsReport
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, 2, got.Basic.Total)
	assert.Equal(t, 1, got.Countries.Get("DE"))
	assert.Equal(t, 1, got.Versions.Get("0.13"))
}

func TestHealth_Report(t *testing.T) {
	srv := directoryServer(t)
	path := filepath.Join(t.TempDir(), "health.json")
	out, err := execute(t, srv, "health", "--report", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Endpoints checked:     3")
	assert.Contains(t, out, "http_error: 1 endpoints")
	assert.Contains(t, out, "Report exported to "+path)

	var got map[string]any
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &got))
	summary := got["summary"].(map[string]any)
	assert.InDelta(t, 2.0, summary["successful"], 0)
}

func TestRender(t *testing.T) {
	srv := directoryServer(t)
	dir := t.TempDir()
	mapPath := filepath.Join(dir, "map.html")
	chartsPath := filepath.Join(dir, "charts.html")
	out, err := execute(t, srv, "render", "--map", mapPath, "--charts", chartsPath)
	require.NoError(t, err)
	assert.Contains(t, out, "World map with 2 located spaces")

	for _, p := range []string{mapPath, chartsPath} {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(good, []byte(alphaJSON), 0o600))
	require.NoError(t, os.WriteFile(bad, []byte(`{"api_compatibility":["14"],"space":"x","location":{}}`), 0o600))

	out, err := execute(t, nil, "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "PASS  "+good+" (Alpha, schema 15)")

	out, err = execute(t, nil, "validate", good, bad, filepath.Join(dir, "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 of 3 files failed")
	assert.Contains(t, out, "FAIL  "+bad+": state: required field is missing")
	assert.Contains(t, out, "read file")
}

func TestFlagOverrideIsValidated(t *testing.T) {
	srv := directoryServer(t)
	_, err := execute(t, srv, "directory", "--concurrency", "500")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SPACEAPI_CONCURRENCY")
}

func TestMetricsFile(t *testing.T) {
	srv := directoryServer(t)
	path := filepath.Join(t.TempDir(), "spaceapi.prom")
	_, err := execute(t, srv, "status", "--metrics-file", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "spaceapi_fetch_requests_total")
	assert.Contains(t, string(data), "spaceapi_statuses_collected_total 2")
}
