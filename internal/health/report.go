package health

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// Summary holds the headline numbers of a health run.
type Summary struct {
	Total           int     `json:"total"`
	Successful      int     `json:"successful"`
	Failed          int     `json:"failed"`
	SuccessRate     float64 `json:"success_rate"`      // percent
	AvgResponseTime float64 `json:"avg_response_time"` // seconds
}

// Report aggregates the checks of one run.
type Report struct {
	RunID         string              `json:"run_id"`
	Timestamp     time.Time           `json:"timestamp"`
	Summary       Summary             `json:"summary"`
	APIVersions   map[string]int      `json:"api_versions"`
	Errors        map[Outcome][]Check `json:"errors"`
	ResponseTimes []float64           `json:"all_response_times"`
	Checks        []Check             `json:"-"`
}

// NewReport aggregates checks into a Report.
func NewReport(runID string, ts time.Time, checks []Check) Report {
	r := Report{
		RunID:         runID,
		Timestamp:     ts,
		APIVersions:   map[string]int{},
		Errors:        map[Outcome][]Check{},
		ResponseTimes: make([]float64, 0, len(checks)),
		Checks:        checks,
	}
	var total float64
	for _, c := range checks {
		r.Summary.Total++
		r.ResponseTimes = append(r.ResponseTimes, c.Seconds)
		total += c.Seconds
		if c.OK() {
			r.Summary.Successful++
			r.APIVersions[c.APIVersion]++
			continue
		}
		r.Summary.Failed++
		r.Errors[c.Outcome] = append(r.Errors[c.Outcome], c)
	}
	if r.Summary.Total > 0 {
		r.Summary.SuccessRate = float64(r.Summary.Successful) / float64(r.Summary.Total) * 100
		r.Summary.AvgResponseTime = total / float64(r.Summary.Total)
	}
	return r
}

// VersionKeys returns the API version keys in sorted order.
func (r Report) VersionKeys() []string {
	keys := make([]string, 0, len(r.APIVersions))
	for k := range r.APIVersions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Recommendations turns the report into maintenance advice for directory curators.
func (r Report) Recommendations() []string {
	if r.Summary.Total == 0 {
		return []string{"No endpoints were checked."}
	}

	var out []string
	switch rate := r.Summary.SuccessRate; {
	case rate < 80:
		out = append(out, "Overall health is concerning. Consider directory cleanup.")
	case rate < 95:
		out = append(out, "Some endpoints need attention. Regular maintenance recommended.")
	default:
		out = append(out, "Overall health is good!")
	}

	if n := len(r.Errors[OutcomeConnectionError]); n > 0 {
		out = append(out, fmt.Sprintf("%d spaces have connection issues; check if they are still active", n))
	}
	if n := len(r.Errors[OutcomeHTTPError]); n > 0 {
		out = append(out, fmt.Sprintf("%d spaces return HTTP errors; their URLs may need updates", n))
	}
	if n := len(r.Errors[OutcomeInvalidJSON]); n > 0 {
		out = append(out, fmt.Sprintf("%d spaces serve invalid JSON", n))
	}
	if n := len(r.Errors[OutcomeInvalidSchema]); n > 0 {
		out = append(out, fmt.Sprintf("%d spaces fail schema validation on a required field", n))
	}

	old := 0
	for v, n := range r.APIVersions {
		if strings.HasPrefix(v, "0.13") {
			old += n
		}
	}
	if old > 0 {
		out = append(out, fmt.Sprintf("%d spaces use older API versions; consider upgrades", old))
	}
	return out
}

// WriteJSON writes the report as indented JSON.
func WriteJSON(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode health report: %w", err)
	}
	return nil
}

// DefaultReportName is the export file name used when none is given.
func DefaultReportName(ts time.Time) string {
	return "health_report_" + ts.Format("20060102_150405") + ".json"
}
