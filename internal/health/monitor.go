// Package health probes SpaceAPI endpoints and summarizes how many of them serve usable documents.
package health

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/spaceapi-explorer/internal/domain"
)

// Outcome classifies one endpoint check.
type Outcome string

const (
	OutcomeSuccess         Outcome = "success"
	OutcomeInvalidJSON     Outcome = "invalid_json"
	OutcomeInvalidSchema   Outcome = "invalid_schema"
	OutcomeHTTPError       Outcome = "http_error"
	OutcomeConnectionError Outcome = "connection_error"
)

// Outcomes lists every failure outcome in report order.
var Outcomes = []Outcome{OutcomeConnectionError, OutcomeHTTPError, OutcomeInvalidJSON, OutcomeInvalidSchema}

// Prober performs one GET without retrying and returns whatever status code the server sent.
type Prober interface {
	Probe(ctx context.Context, url string) (int, []byte, error)
}

// Check is the result of probing one endpoint.
type Check struct {
	Space        string        `json:"space_name"`
	URL          string        `json:"url"`
	Outcome      Outcome       `json:"status"`
	StatusCode   int           `json:"status_code,omitempty"`
	ResponseTime time.Duration `json:"-"`
	Seconds      float64       `json:"response_time"`
	DataSize     int           `json:"data_size,omitempty"`
	APIVersion   string        `json:"api_version,omitempty"`
	HasState     bool          `json:"has_state"`
	HasLocation  bool          `json:"has_location"`
	HasSensors   bool          `json:"has_sensors"`
	Error        string        `json:"error,omitempty"`
}

// OK reports whether the endpoint served a valid status document.
func (c Check) OK() bool { return c.Outcome == OutcomeSuccess }

// Monitor checks endpoints with bounded concurrency.
type Monitor struct {
	prober      Prober
	clock       clockwork.Clock
	logger      *slog.Logger
	concurrency int
}

// NewMonitor creates a Monitor. A nil clock means the real clock.
func NewMonitor(prober Prober, clock clockwork.Clock, logger *slog.Logger, concurrency int) *Monitor {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Monitor{prober: prober, clock: clock, logger: logger, concurrency: concurrency}
}

// Check probes a single endpoint and classifies the response.
func (m *Monitor) Check(ctx context.Context, entry domain.DirectoryEntry) Check {
	c := Check{Space: entry.Name, URL: entry.URL}

	start := m.clock.Now()
	code, body, err := m.prober.Probe(ctx, entry.URL)
	c.ResponseTime = m.clock.Since(start)
	c.Seconds = c.ResponseTime.Seconds()
	c.StatusCode = code

	switch {
	case err != nil:
		c.Outcome = OutcomeConnectionError
		c.Error = err.Error()
		return c
	case code < 200 || code > 299:
		c.Outcome = OutcomeHTTPError
		c.Error = fmt.Sprintf("HTTP %d", code)
		return c
	}

	c.DataSize = len(body)
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(bytes.TrimSpace(body), &doc); err != nil || doc == nil {
		c.Outcome = OutcomeInvalidJSON
		if err == nil {
			err = errors.New("top level is not an object")
		}
		c.Error = err.Error()
		return c
	}
	_, c.HasState = doc["state"]
	_, c.HasLocation = doc["location"]
	_, c.HasSensors = doc["sensors"]

	status, err := domain.ParseStatus(body)
	if err != nil {
		c.Outcome = OutcomeInvalidSchema
		c.Error = err.Error()
		return c
	}
	c.Outcome = OutcomeSuccess
	c.APIVersion = declared(status.APIVersions)
	return c
}

func declared(versions []string) string {
	if len(versions) == 0 {
		return "unknown"
	}
	return strings.Join(versions, ",")
}

// Run checks every entry and aggregates the results. Checks keep the input order.
func (m *Monitor) Run(ctx context.Context, entries []domain.DirectoryEntry) Report {
	runID := uuid.NewString()
	logger := m.logger.With("run_id", runID)
	start := m.clock.Now()
	logger.Info("health check started", "endpoints", len(entries), "concurrency", m.concurrency)

	checks := make([]Check, len(entries))
	var g errgroup.Group
	g.SetLimit(m.concurrency)
	for i, e := range entries {
		g.Go(func() error {
			checks[i] = m.Check(ctx, e)
			if !checks[i].OK() {
				logger.Warn("endpoint unhealthy",
					"space", e.Name,
					"url", e.URL,
					"outcome", checks[i].Outcome,
					"error", checks[i].Error,
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	r := NewReport(runID, m.clock.Now().UTC(), checks)
	logger.Info("health check finished",
		"successful", r.Summary.Successful,
		"failed", r.Summary.Failed,
		"duration", m.clock.Since(start),
	)
	return r
}
