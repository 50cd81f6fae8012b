package spaceapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/spaceapi-explorer/internal/config"
	"github.com/couchcryptid/spaceapi-explorer/internal/domain"
	"github.com/couchcryptid/spaceapi-explorer/internal/observability"
)

const (
	validStatus = `{
		"api_compatibility": ["14", "15"],
		"space": "Test Space",
		"location": {"address": "Test Road 1", "lat": 50.0, "lon": 8.0},
		"state": {"open": true, "lastchange": 1700000000}
	}`
	testUserAgent = "spaceapi-explorer/test"
)

func testOptions(dirURL string) Options {
	return Options{
		DirectoryURL:   dirURL,
		Timeout:        2 * time.Second,
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     4 * time.Millisecond,
		Concurrency:    4,
		DirectoryTTL:   time.Minute,
		UserAgent:      testUserAgent,
	}
}

func testClient(opts Options) *Client {
	return NewClient(opts, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// countingServer answers with the given handler and counts requests.
func countingServer(t *testing.T, h http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := &config.Config{
		DirectoryURL:   "https://dir.example/",
		Timeout:        3 * time.Second,
		MaxAttempts:    5,
		InitialBackoff: time.Second,
		MaxBackoff:     8 * time.Second,
		Concurrency:    7,
		RateLimit:      1.5,
		DirectoryTTL:   time.Hour,
		UserAgent:      "ua",
	}
	opts := OptionsFromConfig(cfg)
	assert.Equal(t, Options{
		DirectoryURL:   "https://dir.example/",
		Timeout:        3 * time.Second,
		MaxAttempts:    5,
		InitialBackoff: time.Second,
		MaxBackoff:     8 * time.Second,
		Concurrency:    7,
		RateLimit:      1.5,
		DirectoryTTL:   time.Hour,
		UserAgent:      "ua",
	}, opts)
}

func TestFetchDirectory_SendsHeadersAndParses(t *testing.T) {
	srv, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testUserAgent, r.Header.Get("User-Agent"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(`{"B Space": "https://b.example/status.json", "A Space": "https://a.example/status.json", "Bad": 1}`))
	})

	c := testClient(testOptions(srv.URL))
	dir, err := c.FetchDirectory(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"A Space", "B Space"}, dir.Names())
	assert.Equal(t, []string{"Bad"}, dir.Rejected)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.FetchRequests.WithLabelValues(targetDirectory, "success")))
}

func TestFetchDirectory_CacheHonoursTTL(t *testing.T) {
	srv, hits := countingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"A": "https://a.example/"}`))
	})

	fakeClock := clockwork.NewFakeClock()
	opts := testOptions(srv.URL)
	opts.Clock = fakeClock
	c := testClient(opts)

	_, err := c.FetchDirectory(context.Background())
	require.NoError(t, err)
	_, err = c.FetchDirectory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load(), "second call is served from cache")

	_, err = c.FetchDirectoryFresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load(), "fresh bypasses the cache")

	fakeClock.Advance(2 * time.Minute)
	_, err = c.FetchDirectory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), hits.Load(), "expired cache is refreshed")
}

func TestFetchDirectory_Malformed(t *testing.T) {
	srv, _ := countingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	})

	c := testClient(testOptions(srv.URL))
	_, err := c.FetchDirectory(context.Background())
	require.Error(t, err)

	var ferr *domain.FetchError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, domain.FetchMalformed, ferr.Kind)
	assert.ErrorIs(t, err, domain.ErrMalformedBody)
	assert.ErrorIs(t, err, domain.ErrMalformedJSON)
}

func TestFetchDirectory_ErrorIsNotCached(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	srv, _ := countingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"A": "https://a.example/"}`))
	})

	c := testClient(testOptions(srv.URL))
	_, err := c.FetchDirectory(context.Background())
	require.Error(t, err)

	fail.Store(false)
	dir, err := c.FetchDirectory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, dir.Len())
}

func TestFetchStatus_Success(t *testing.T) {
	fixed := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(fixed))
	t.Cleanup(func() { domain.SetClock(nil) })

	srv, _ := countingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(validStatus))
	})

	c := testClient(testOptions(srv.URL))
	st, err := c.FetchStatus(context.Background(), srv.URL+"/status.json")
	require.NoError(t, err)

	assert.Equal(t, "Test Space", st.Space)
	assert.Equal(t, domain.Version15, st.Version)
	assert.Equal(t, srv.URL+"/status.json", st.SourceURL)
	assert.Equal(t, fixed, st.FetchedAt)
}

func TestFetchStatus_RetriesTransientFailures(t *testing.T) {
	for _, code := range []int{
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
	} {
		t.Run(fmt.Sprint(code), func(t *testing.T) {
			var calls atomic.Int32
			srv, hits := countingServer(t, func(w http.ResponseWriter, _ *http.Request) {
				if calls.Add(1) < 3 {
					w.WriteHeader(code)
					return
				}
				_, _ = w.Write([]byte(validStatus))
			})

			c := testClient(testOptions(srv.URL))
			st, err := c.FetchStatus(context.Background(), srv.URL)
			require.NoError(t, err)
			assert.Equal(t, "Test Space", st.Space)
			assert.Equal(t, int32(3), hits.Load())
			assert.Equal(t, 2.0, testutil.ToFloat64(c.metrics.FetchRetries))
		})
	}
}

func TestFetchStatus_GivesUpAfterMaxAttempts(t *testing.T) {
	srv, hits := countingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	c := testClient(testOptions(srv.URL))
	_, err := c.FetchStatus(context.Background(), srv.URL)
	require.Error(t, err)

	var ferr *domain.FetchError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, domain.FetchHTTP, ferr.Kind)
	assert.Equal(t, http.StatusServiceUnavailable, ferr.StatusCode)
	assert.Equal(t, 3, ferr.Attempts)
	assert.Equal(t, int32(3), hits.Load(), "never more than MaxAttempts requests")
	assert.ErrorIs(t, err, domain.ErrHTTPStatus)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.FetchRequests.WithLabelValues(targetStatus, "http")))
}

func TestFetchStatus_SingleAttempt(t *testing.T) {
	srv, hits := countingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	opts := testOptions(srv.URL)
	opts.MaxAttempts = 1
	_, err := testClient(opts).FetchStatus(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetchStatus_ClientErrorsAreNotRetried(t *testing.T) {
	for _, code := range []int{http.StatusNotFound, http.StatusForbidden, http.StatusGone} {
		t.Run(fmt.Sprint(code), func(t *testing.T) {
			srv, hits := countingServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(code)
			})

			_, err := testClient(testOptions(srv.URL)).FetchStatus(context.Background(), srv.URL)
			var ferr *domain.FetchError
			require.ErrorAs(t, err, &ferr)
			assert.Equal(t, code, ferr.StatusCode)
			assert.Equal(t, 1, ferr.Attempts)
			assert.Equal(t, int32(1), hits.Load())
		})
	}
}

func TestFetchStatus_MalformedBody(t *testing.T) {
	srv, hits := countingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"space": "truncated`))
	})

	_, err := testClient(testOptions(srv.URL)).FetchStatus(context.Background(), srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMalformedBody)
	assert.Equal(t, int32(1), hits.Load(), "malformed bodies are not retried")
}

func TestFetchStatus_ValidationError(t *testing.T) {
	srv, _ := countingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"api_compatibility": ["15"], "space": "No Location", "state": {"open": false}}`))
	})

	c := testClient(testOptions(srv.URL))
	_, err := c.FetchStatus(context.Background(), srv.URL)

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "location", verr.Field)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.FetchRequests.WithLabelValues(targetStatus, "invalid")))
}

func TestFetchStatus_Timeout(t *testing.T) {
	srv, hits := countingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(validStatus))
	})

	opts := testOptions(srv.URL)
	opts.Timeout = 30 * time.Millisecond
	opts.MaxAttempts = 2

	_, err := testClient(opts).FetchStatus(context.Background(), srv.URL)
	var ferr *domain.FetchError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, domain.FetchTimeout, ferr.Kind)
	assert.Equal(t, 2, ferr.Attempts)
	assert.ErrorIs(t, err, domain.ErrTimeout)
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetchStatus_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := testClient(testOptions(url)).FetchStatus(context.Background(), url)
	var ferr *domain.FetchError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, domain.FetchNetwork, ferr.Kind)
	assert.Equal(t, 3, ferr.Attempts)
	assert.ErrorIs(t, err, domain.ErrNetwork)
}

func TestFetchStatus_InvalidURLIsNotRetried(t *testing.T) {
	_, err := testClient(testOptions("http://unused")).FetchStatus(context.Background(), "http://bad host/")
	var ferr *domain.FetchError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, 1, ferr.Attempts)
}

func TestFetchStatus_CancelledContext(t *testing.T) {
	srv, hits := countingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testClient(testOptions(srv.URL)).FetchStatus(ctx, srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, hits.Load())
}

func TestFetchRaw(t *testing.T) {
	srv, _ := countingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("raw body"))
	})

	body, err := testClient(testOptions(srv.URL)).FetchRaw(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "raw body", string(body))
}

func TestFetchMany_PreservesOrderAndIsolatesFailures(t *testing.T) {
	var (
		mu       sync.Mutex
		inFlight int
		maxSeen  int
	)
	srv, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		inFlight++
		if inFlight > maxSeen {
			maxSeen = inFlight
		}
		mu.Unlock()
		defer func() {
			mu.Lock()
			inFlight--
			mu.Unlock()
		}()

		time.Sleep(10 * time.Millisecond)
		if r.URL.Path == "/broken" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = fmt.Fprintf(w, `{"api":"0.13","space":%q,"location":{},"state":{"open":false}}`, r.URL.Path[1:])
	})

	var entries []domain.DirectoryEntry
	for i := 0; i < 12; i++ {
		name := fmt.Sprintf("space%02d", i)
		if i == 5 {
			name = "broken"
		}
		entries = append(entries, domain.DirectoryEntry{Name: name, URL: srv.URL + "/" + name})
	}

	results := testClient(testOptions(srv.URL)).FetchMany(context.Background(), entries, 3)
	require.Len(t, results, len(entries))

	for i, r := range results {
		assert.Equal(t, entries[i].Name, r.Name)
		assert.Equal(t, entries[i].URL, r.URL)
		if r.Name == "broken" {
			assert.ErrorIs(t, r.Err, domain.ErrHTTPStatus)
			continue
		}
		require.NoError(t, r.Err)
		assert.Equal(t, r.Name, r.Status.Space)
	}
	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, maxSeen, 3, "concurrency limit respected")
}

func TestFetchMany_Empty(t *testing.T) {
	results := testClient(testOptions("http://unused")).FetchMany(context.Background(), nil, 0)
	assert.Empty(t, results)
}

func TestSearch(t *testing.T) {
	srv, _ := countingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"Metalab": "https://m.example/", "Hacklab": "https://h.example/", "Chaos": "https://c.example/"}`))
	})

	got, err := testClient(testOptions(srv.URL)).Search(context.Background(), "LAB")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Hacklab", got[0].Name)
	assert.Equal(t, "Metalab", got[1].Name)
}

func TestProbe(t *testing.T) {
	srv, hits := countingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("oops"))
	})

	c := testClient(testOptions(srv.URL))
	code, body, err := c.Probe(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "oops", string(body))
	assert.Equal(t, int32(1), hits.Load(), "probes never retry")
}

func TestProbe_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, _, err := testClient(testOptions(url)).Probe(context.Background(), url)
	assert.True(t, errors.Is(err, domain.ErrNetwork))
}

func TestNewClient_RateLimiter(t *testing.T) {
	opts := testOptions("http://unused")
	assert.Nil(t, testClient(opts).limiter)

	opts.RateLimit = 2.5
	c := testClient(opts)
	require.NotNil(t, c.limiter)
	assert.Equal(t, 3, c.limiter.Burst())
}

func TestNewClient_ClampsOptions(t *testing.T) {
	c := testClient(Options{})
	assert.Equal(t, 1, c.opts.MaxAttempts)
	assert.Equal(t, 1, c.opts.Concurrency)
	assert.NotNil(t, c.clock)
}
