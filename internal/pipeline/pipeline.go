package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sharedretry "github.com/couchcryptid/storm-data-shared/retry"

	"github.com/couchcryptid/spaceapi-explorer/internal/domain"
	"github.com/couchcryptid/spaceapi-explorer/internal/observability"
)

// ErrPublish marks a collection whose statuses were fetched but could not be written to the sink.
var ErrPublish = errors.New("publish statuses")

// publishAttempts bounds how often a failed sink write is retried before Collect gives up.
const publishAttempts = 3

// DirectorySource lists the known status endpoints.
type DirectorySource interface {
	FetchDirectory(ctx context.Context) (domain.Directory, error)
}

// StatusFetcher fetches many status documents; results keep the input order.
type StatusFetcher interface {
	FetchMany(ctx context.Context, entries []domain.DirectoryEntry, concurrency int) []domain.FetchResult
}

// BatchLoader writes normalized statuses to a destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, statuses []domain.SpaceStatus) error
}

// Collection is the outcome of one collection run.
type Collection struct {
	Directory domain.Directory
	Statuses  []domain.SpaceStatus
	Failures  []domain.FetchResult
}

// Attempted returns the number of spaces that were fetched.
func (c Collection) Attempted() int {
	return len(c.Statuses) + len(c.Failures)
}

// Pipeline composes directory listing, status fetching, optional geocoding and an optional sink.
type Pipeline struct {
	source   DirectorySource
	fetcher  StatusFetcher
	geocoder domain.Geocoder
	loader   BatchLoader
	logger   *slog.Logger
	metrics  *observability.Metrics

	// Initial delay between sink retries; doubled up to maxBackoff.
	backoff    time.Duration
	maxBackoff time.Duration
}

// New creates a Pipeline. geocoder and loader may be nil to disable enrichment or publishing.
func New(source DirectorySource, fetcher StatusFetcher, geocoder domain.Geocoder, loader BatchLoader, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		source:     source,
		fetcher:    fetcher,
		geocoder:   geocoder,
		loader:     loader,
		logger:     logger,
		metrics:    metrics,
		backoff:    200 * time.Millisecond,
		maxBackoff: 5 * time.Second,
	}
}

// Collect loads the directory and fetches the first limit statuses (all when limit <= 0).
// Only a directory failure or a sink failure is returned as an error; per-space failures
// are logged, counted and reported in Collection.Failures.
func (p *Pipeline) Collect(ctx context.Context, limit int) (Collection, error) {
	dir, err := p.source.FetchDirectory(ctx)
	if err != nil {
		return Collection{}, fmt.Errorf("load directory: %w", err)
	}
	p.logger.Info("directory loaded", "spaces", dir.Len(), "rejected", len(dir.Rejected))

	coll, err := p.CollectEntries(ctx, dir.Head(limit))
	coll.Directory = dir
	return coll, err
}

// CollectEntries fetches the given entries without consulting the directory.
func (p *Pipeline) CollectEntries(ctx context.Context, entries []domain.DirectoryEntry) (Collection, error) {
	start := time.Now()
	defer func() { p.metrics.CollectionDuration.Observe(time.Since(start).Seconds()) }()

	var coll Collection
	for _, r := range p.fetcher.FetchMany(ctx, entries, 0) {
		if r.Err != nil {
			p.logFailure(r)
			coll.Failures = append(coll.Failures, r)
			continue
		}
		coll.Statuses = append(coll.Statuses, domain.EnrichLocation(ctx, r.Status, p.geocoder, p.logger))
	}
	p.metrics.StatusesCollected.Add(float64(len(coll.Statuses)))
	p.logger.Info("collection finished",
		"fetched", len(coll.Statuses),
		"failed", len(coll.Failures),
		"duration", time.Since(start),
	)

	if p.loader == nil || len(coll.Statuses) == 0 {
		return coll, nil
	}
	if err := p.publish(ctx, coll.Statuses); err != nil {
		return coll, fmt.Errorf("%w: %w", ErrPublish, err)
	}
	return coll, nil
}

func (p *Pipeline) logFailure(r domain.FetchResult) {
	kind := "error"
	attrs := []any{"space", r.Name, "url", r.URL, "error", r.Err}

	var ferr *domain.FetchError
	var verr *domain.ValidationError
	switch {
	case errors.As(r.Err, &ferr):
		kind = string(ferr.Kind)
		attrs = append(attrs, "attempts", ferr.Attempts)
	case errors.As(r.Err, &verr):
		kind = "validation"
		attrs = append(attrs, "field", verr.Field)
	}
	p.metrics.CollectFailures.WithLabelValues(kind).Inc()
	p.logger.Warn("status fetch failed, skipping space", attrs...)
}

// publish writes the batch to the sink, backing off between failed attempts.
func (p *Pipeline) publish(ctx context.Context, statuses []domain.SpaceStatus) error {
	backoff := p.backoff
	var err error
	for attempt := 1; attempt <= publishAttempts; attempt++ {
		if err = p.loader.LoadBatch(ctx, statuses); err == nil {
			p.metrics.SinkPublished.Add(float64(len(statuses)))
			return nil
		}
		p.logger.Error("load batch failed", "error", err, "batch_size", len(statuses), "attempt", attempt)
		if attempt == publishAttempts || !sharedretry.SleepWithContext(ctx, backoff) {
			break
		}
		backoff = sharedretry.NextBackoff(backoff, p.maxBackoff)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
