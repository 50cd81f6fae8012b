package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/spaceapi-explorer/internal/adapter/kafka"
	"github.com/couchcryptid/spaceapi-explorer/internal/adapter/mapbox"
	"github.com/couchcryptid/spaceapi-explorer/internal/adapter/spaceapi"
	"github.com/couchcryptid/spaceapi-explorer/internal/config"
	"github.com/couchcryptid/spaceapi-explorer/internal/domain"
	"github.com/couchcryptid/spaceapi-explorer/internal/observability"
	"github.com/couchcryptid/spaceapi-explorer/internal/pipeline"
	"github.com/couchcryptid/spaceapi-explorer/internal/render"
)

// app holds what every subcommand needs. It is populated in the root PersistentPreRunE.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *observability.Metrics
	client   *spaceapi.Client
}

// globalFlags override the environment configuration when set explicitly.
type globalFlags struct {
	directoryURL string
	timeout      time.Duration
	maxAttempts  int
	concurrency  int
	rateLimit    float64
	logLevel     string
	logFormat    string
	metricsFile  string
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var g globalFlags

	cmd := &cobra.Command{
		Use:     "spaceapi",
		Short:   "Explore hackerspace status data published through the SpaceAPI",
		Version: config.Version,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(c *cobra.Command, _ []string) error {
			return a.init(c, g)
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return a.flushMetrics()
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&g.directoryURL, "directory-url", "", "directory endpoint (env SPACEAPI_DIRECTORY_URL)")
	pf.DurationVar(&g.timeout, "timeout", 0, "per-request timeout (env SPACEAPI_TIMEOUT)")
	pf.IntVar(&g.maxAttempts, "max-attempts", 0, "total attempts per URL, 1-10 (env SPACEAPI_MAX_ATTEMPTS)")
	pf.IntVar(&g.concurrency, "concurrency", 0, "parallel fetches, 1-100 (env SPACEAPI_CONCURRENCY)")
	pf.Float64Var(&g.rateLimit, "rate-limit", 0, "requests per second, 0 = unlimited (env SPACEAPI_RATE_LIMIT)")
	pf.StringVar(&g.logLevel, "log-level", "", "debug|info|warn|error (env LOG_LEVEL)")
	pf.StringVar(&g.logFormat, "log-format", "", "text|json (env LOG_FORMAT)")
	pf.StringVar(&g.metricsFile, "metrics-file", "", "write Prometheus metrics to this file after the run (env METRICS_FILE)")

	cmd.AddCommand(
		newCmdDirectory(a),
		newCmdStatus(a),
		newCmdStats(a),
		newCmdHealth(a),
		newCmdRender(a),
		newCmdValidate(a),
		newCmdVersion(),
	)
	return cmd
}

func (a *app) init(c *cobra.Command, g globalFlags) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	f := c.Flags()
	if f.Changed("directory-url") {
		cfg.DirectoryURL = g.directoryURL
	}
	if f.Changed("timeout") {
		cfg.Timeout = g.timeout
	}
	if f.Changed("max-attempts") {
		cfg.MaxAttempts = g.maxAttempts
	}
	if f.Changed("concurrency") {
		cfg.Concurrency = g.concurrency
	}
	if f.Changed("rate-limit") {
		cfg.RateLimit = g.rateLimit
	}
	if f.Changed("log-level") {
		cfg.LogLevel = g.logLevel
	}
	if f.Changed("log-format") {
		cfg.LogFormat = g.logFormat
	}
	if f.Changed("metrics-file") {
		cfg.MetricsFile = g.metricsFile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = observability.NewLogger(c.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	a.registry = prometheus.NewRegistry()
	a.metrics = observability.NewMetricsWithRegistry(a.registry)
	a.client = spaceapi.NewClient(spaceapi.OptionsFromConfig(cfg), a.metrics, a.logger)
	return nil
}

func (a *app) flushMetrics() error {
	if a.cfg == nil || a.cfg.MetricsFile == "" {
		return nil
	}
	if err := observability.WriteTextfile(a.cfg.MetricsFile, a.registry); err != nil {
		return err
	}
	a.logger.Debug("metrics written", "path", a.cfg.MetricsFile)
	return nil
}

// geocoder returns the cached Mapbox geocoder, or nil when geocoding is disabled.
func (a *app) geocoder() domain.Geocoder {
	if !a.cfg.MapboxEnabled {
		a.metrics.GeocodeEnabled.Set(0)
		return nil
	}
	a.metrics.GeocodeEnabled.Set(1)
	client := mapbox.NewClient(a.cfg.MapboxToken, a.cfg.MapboxTimeout, a.metrics, a.logger)
	a.logger.Info("mapbox geocoding enabled", "cache_size", a.cfg.MapboxCacheSize, "timeout", a.cfg.MapboxTimeout)
	return mapbox.NewCachedGeocoder(client, a.cfg.MapboxCacheSize, a.metrics)
}

// pipeline builds a collection pipeline. With publish set, statuses are also written to Kafka;
// the returned close func flushes the writer within SHUTDOWN_TIMEOUT.
func (a *app) pipeline(publish bool) (*pipeline.Pipeline, func(), error) {
	if !publish {
		return pipeline.New(a.client, a.client, a.geocoder(), nil, a.logger, a.metrics), func() {}, nil
	}
	if !a.cfg.SinkEnabled() {
		return nil, nil, errors.New("--kafka requires KAFKA_BROKERS to be set")
	}

	writer := kafka.NewWriter(a.cfg, a.logger)
	a.logger.Info("kafka sink enabled", "brokers", a.cfg.KafkaBrokers, "topic", a.cfg.KafkaSinkTopic)
	closeWriter := func() {
		done := make(chan error, 1)
		go func() { done <- writer.Close() }()
		select {
		case err := <-done:
			if err != nil {
				a.logger.Error("kafka writer close error", "error", err)
			}
		case <-time.After(a.cfg.ShutdownTimeout):
			a.logger.Warn("kafka writer close timed out", "timeout", a.cfg.ShutdownTimeout)
		}
	}
	return pipeline.New(a.client, a.client, a.geocoder(), writer, a.logger, a.metrics), closeWriter, nil
}

// exportFlags are shared by the commands that can write their result to a file.
type exportFlags struct {
	path   string
	format string
}

func (e *exportFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&e.path, "export", "", "write the result to this file ('-' for stdout)")
	cmd.Flags().StringVar(&e.format, "format", "json", "export format: json|yaml|cbor|csv")
}

func (e exportFlags) enabled() bool { return e.path != "" }

// write encodes v, or rows when the format is CSV, to the export destination.
func (e exportFlags) write(out io.Writer, v, rows any) error {
	format, err := render.ParseFormat(e.format)
	if err != nil {
		return err
	}
	if format == render.FormatCSV {
		if rows == nil {
			return errors.New("csv export is only available for per-space rows")
		}
		v = rows
	}
	return writeFile(out, e.path, func(w io.Writer) error { return render.Export(w, format, v) })
}

// writeFile runs fn against path, or against out when path is "-".
func writeFile(out io.Writer, path string, fn func(io.Writer) error) error {
	if path == "-" {
		return fn(out)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
