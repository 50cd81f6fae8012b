// Package spaceapi fetches the SpaceAPI directory and per-space status documents.
package spaceapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/couchcryptid/spaceapi-explorer/internal/config"
	"github.com/couchcryptid/spaceapi-explorer/internal/domain"
	"github.com/couchcryptid/spaceapi-explorer/internal/observability"
)

// Metric target labels.
const (
	targetDirectory = "directory"
	targetStatus    = "status"
	targetProbe     = "probe"
)

// maxBodyBytes bounds how much of a response is read; status documents are a few KiB.
const maxBodyBytes = 4 << 20

var errBodyTooLarge = errors.New("response body exceeds 4 MiB")

// Options configures a Client.
type Options struct {
	DirectoryURL   string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Concurrency    int
	RateLimit      float64 // requests per second, 0 = unlimited
	DirectoryTTL   time.Duration
	UserAgent      string

	// Clock drives the directory cache expiry. Nil means the real clock.
	Clock clockwork.Clock
}

// OptionsFromConfig maps the environment configuration onto client options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		DirectoryURL:   cfg.DirectoryURL,
		Timeout:        cfg.Timeout,
		MaxAttempts:    cfg.MaxAttempts,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
		Concurrency:    cfg.Concurrency,
		RateLimit:      cfg.RateLimit,
		DirectoryTTL:   cfg.DirectoryTTL,
		UserAgent:      cfg.UserAgent,
	}
}

// Client is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	opts       Options
	limiter    *rate.Limiter
	clock      clockwork.Clock
	metrics    *observability.Metrics
	logger     *slog.Logger

	mu         sync.Mutex
	dir        *domain.Directory
	dirExpires time.Time
}

// NewClient creates a SpaceAPI client. Zero-valued options fall back to sane minimums.
func NewClient(opts Options, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	c := &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		opts:       opts,
		clock:      opts.Clock,
		metrics:    metrics,
		logger:     logger,
	}
	if opts.RateLimit > 0 {
		burst := int(math.Ceil(opts.RateLimit))
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return c
}

// FetchDirectory returns the directory, served from cache while it is younger than DirectoryTTL.
func (c *Client) FetchDirectory(ctx context.Context) (domain.Directory, error) {
	c.mu.Lock()
	if c.dir != nil && c.clock.Now().Before(c.dirExpires) {
		dir := *c.dir
		c.mu.Unlock()
		return dir, nil
	}
	c.mu.Unlock()

	return c.FetchDirectoryFresh(ctx)
}

// FetchDirectoryFresh always hits the network and refreshes the cache on success.
func (c *Client) FetchDirectoryFresh(ctx context.Context) (domain.Directory, error) {
	body, attempts, err := c.get(ctx, targetDirectory, c.opts.DirectoryURL)
	if err == nil {
		var dir domain.Directory
		dir, err = domain.ParseDirectory(body)
		if err == nil {
			c.record(targetDirectory, nil)
			if len(dir.Rejected) > 0 {
				c.logger.Warn("directory entries with unusable urls skipped",
					"count", len(dir.Rejected),
					"names", dir.Rejected,
				)
			}
			c.mu.Lock()
			c.dir = &dir
			c.dirExpires = c.clock.Now().Add(c.opts.DirectoryTTL)
			c.mu.Unlock()
			return dir, nil
		}
		err = &domain.FetchError{URL: c.opts.DirectoryURL, Kind: domain.FetchMalformed, Attempts: attempts, Err: err}
	}
	c.record(targetDirectory, err)
	return domain.Directory{}, err
}

// Search returns directory entries whose name contains query, ignoring case.
func (c *Client) Search(ctx context.Context, query string) ([]domain.DirectoryEntry, error) {
	dir, err := c.FetchDirectory(ctx)
	if err != nil {
		return nil, err
	}
	return dir.Search(query), nil
}

// FetchRaw returns the body of a 2xx response, retrying transient failures.
func (c *Client) FetchRaw(ctx context.Context, url string) ([]byte, error) {
	body, _, err := c.get(ctx, targetStatus, url)
	c.record(targetStatus, err)
	return body, err
}

// FetchStatus fetches and normalizes one status document.
// Transport failures and unparseable bodies are *domain.FetchError;
// documents lacking required fields are *domain.ValidationError.
func (c *Client) FetchStatus(ctx context.Context, url string) (domain.SpaceStatus, error) {
	body, attempts, err := c.get(ctx, targetStatus, url)
	if err != nil {
		c.record(targetStatus, err)
		return domain.SpaceStatus{}, err
	}

	status, err := domain.ParseStatus(body)
	if err != nil {
		if errors.Is(err, domain.ErrMalformedJSON) {
			err = &domain.FetchError{URL: url, Kind: domain.FetchMalformed, Attempts: attempts, Err: err}
		}
		c.record(targetStatus, err)
		return domain.SpaceStatus{}, err
	}
	c.record(targetStatus, nil)
	return status.Stamp(url), nil
}

// FetchMany fetches every entry with at most concurrency requests in flight
// (Options.Concurrency when concurrency <= 0). Results keep the input order and
// a failing entry never affects the others.
func (c *Client) FetchMany(ctx context.Context, entries []domain.DirectoryEntry, concurrency int) []domain.FetchResult {
	if concurrency <= 0 {
		concurrency = c.opts.Concurrency
	}
	results := make([]domain.FetchResult, len(entries))

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, e := range entries {
		g.Go(func() error {
			status, err := c.FetchStatus(ctx, e.URL)
			results[i] = domain.FetchResult{Name: e.Name, URL: e.URL, Status: status, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Probe performs a single GET without retries and returns the status code and body
// whatever the code. Only transport failures are errors.
func (c *Client) Probe(ctx context.Context, url string) (int, []byte, error) {
	code, body, err := c.do(ctx, url)
	if err != nil {
		ferr := classify(url, 1, err)
		c.record(targetProbe, ferr)
		return 0, nil, ferr
	}
	c.record(targetProbe, nil)
	return code, body, nil
}

// get runs one GET under the retry policy and returns the body, the number of attempts made and
// a *domain.FetchError on failure.
func (c *Client) get(ctx context.Context, target, url string) ([]byte, int, error) {
	start := c.clock.Now()
	defer func() {
		c.metrics.FetchDuration.WithLabelValues(target).Observe(c.clock.Since(start).Seconds())
	}()

	var (
		body     []byte
		attempts int
	)
	operation := func() error {
		attempts++
		code, b, err := c.do(ctx, url)
		if err != nil {
			if !retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		if code < 200 || code > 299 {
			serr := &statusError{code: code}
			if !retryable(serr) {
				return backoff.Permanent(serr)
			}
			return serr
		}
		body = b
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.metrics.FetchRetries.Inc()
		c.logger.Debug("retrying fetch",
			"url", url,
			"attempt", attempts,
			"wait", wait,
			"error", err,
		)
	}

	if err := backoff.RetryNotify(operation, c.policy(ctx), notify); err != nil {
		return nil, attempts, classify(url, attempts, err)
	}
	return body, attempts, nil
}

// policy is exponential backoff without jitter: InitialBackoff, doubling, capped at MaxBackoff,
// for at most MaxAttempts attempts in total.
func (c *Client) policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.InitialBackoff
	b.MaxInterval = c.opts.MaxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.opts.MaxAttempts-1)), ctx)
}

// do performs exactly one request.
func (c *Client) do(ctx context.Context, url string) (int, []byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, &requestError{err: err}
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return 0, nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return 0, nil, errBodyTooLarge
	}
	return resp.StatusCode, body, nil
}

func (c *Client) record(target string, err error) {
	outcome := "success"
	var ferr *domain.FetchError
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &ferr):
		outcome = string(ferr.Kind)
	case errors.As(err, &verr):
		outcome = "invalid"
	case err != nil:
		outcome = "error"
	}
	c.metrics.FetchRequests.WithLabelValues(target, outcome).Inc()
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.code, http.StatusText(e.code))
}

type requestError struct {
	err error
}

func (e *requestError) Error() string { return "build request: " + e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		switch se.code {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	var re *requestError
	if errors.As(err, &re) || errors.Is(err, errBodyTooLarge) || errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

func classify(url string, attempts int, err error) *domain.FetchError {
	fe := &domain.FetchError{URL: url, Attempts: attempts, Err: err}
	var se *statusError
	var ne net.Error
	switch {
	case errors.As(err, &se):
		fe.Kind = domain.FetchHTTP
		fe.StatusCode = se.code
	case errors.Is(err, errBodyTooLarge):
		fe.Kind = domain.FetchMalformed
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &ne) && ne.Timeout():
		fe.Kind = domain.FetchTimeout
	default:
		fe.Kind = domain.FetchNetwork
	}
	return fe
}
