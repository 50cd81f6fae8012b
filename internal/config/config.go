package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Version is stamped at build time via -ldflags and used in the default User-Agent.
var Version = "dev"

// Config holds all explorer settings, populated from environment variables.
// CLI flags override individual fields after Load.
type Config struct {
	DirectoryURL   string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Concurrency    int
	RateLimit      float64 // requests per second, 0 = unlimited
	DirectoryTTL   time.Duration
	UserAgent      string

	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	MetricsFile     string

	// Optional Kafka snapshot sink; disabled when no brokers are set.
	KafkaBrokers   []string
	KafkaSinkTopic string

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	timeout, err := parseDuration("SPACEAPI_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	initialBackoff, err := parseDuration("SPACEAPI_INITIAL_BACKOFF", "1s")
	if err != nil {
		return nil, err
	}
	maxBackoff, err := parseDuration("SPACEAPI_MAX_BACKOFF", "10s")
	if err != nil {
		return nil, err
	}
	directoryTTL, err := parseDuration("SPACEAPI_DIRECTORY_TTL", "5m")
	if err != nil {
		return nil, err
	}
	mapboxTimeout, err := parseDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	maxAttempts, err := parseIntRange("SPACEAPI_MAX_ATTEMPTS", 4, 1, 10)
	if err != nil {
		return nil, err
	}
	concurrency, err := parseIntRange("SPACEAPI_CONCURRENCY", 10, 1, 100)
	if err != nil {
		return nil, err
	}

	rateLimit, err := parseRateLimit()
	if err != nil {
		return nil, err
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	cfg := &Config{
		DirectoryURL:   sharedcfg.EnvOrDefault("SPACEAPI_DIRECTORY_URL", "https://directory.spaceapi.io/"),
		Timeout:        timeout,
		MaxAttempts:    maxAttempts,
		InitialBackoff: initialBackoff,
		MaxBackoff:     maxBackoff,
		Concurrency:    concurrency,
		RateLimit:      rateLimit,
		DirectoryTTL:   directoryTTL,
		UserAgent:      sharedcfg.EnvOrDefault("SPACEAPI_USER_AGENT", "spaceapi-explorer/"+Version),

		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "text"),
		ShutdownTimeout: shutdownTimeout,
		MetricsFile:     os.Getenv("METRICS_FILE"),

		KafkaBrokers:   sharedcfg.ParseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaSinkTopic: sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "spaceapi-status"),

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parseMapboxCacheSize(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints. It is re-run after CLI flags are applied.
func (c *Config) Validate() error {
	u, err := url.Parse(c.DirectoryURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("invalid SPACEAPI_DIRECTORY_URL: must be an absolute http(s) URL")
	}
	if c.MaxAttempts < 1 || c.MaxAttempts > 10 {
		return errors.New("invalid SPACEAPI_MAX_ATTEMPTS: must be 1-10")
	}
	if c.Concurrency < 1 || c.Concurrency > 100 {
		return errors.New("invalid SPACEAPI_CONCURRENCY: must be 1-100")
	}
	if c.MaxBackoff < c.InitialBackoff {
		return errors.New("invalid SPACEAPI_MAX_BACKOFF: must not be below SPACEAPI_INITIAL_BACKOFF")
	}
	if c.KafkaSinkTopic == "" {
		return errors.New("KAFKA_SINK_TOPIC is required")
	}
	if c.MapboxEnabled && c.MapboxToken == "" {
		return errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	return nil
}

// SinkEnabled reports whether statuses should be published to Kafka.
func (c *Config) SinkEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive duration", key)
	}
	return d, nil
}

func parseIntRange(key string, def, lo, hi int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s: must be %d-%d", key, lo, hi)
	}
	return n, nil
}

func parseRateLimit() (float64, error) {
	s := os.Getenv("SPACEAPI_RATE_LIMIT")
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0, errors.New("invalid SPACEAPI_RATE_LIMIT: must be a non-negative number")
	}
	return f, nil
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
