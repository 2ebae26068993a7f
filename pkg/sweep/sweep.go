// Package sweep runs bulk listing jobs against an S3-compatible bucket.
//
// A sweep expands a matcher's derived prefixes, pages through each
// prefix concurrently with optional client-side rate limiting, and
// collects the keys that match. It is the bulk-selection building block
// callers combine with pkg/batch for throttled mass operations.
package sweep

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/skylatch/s3lite/pkg/match"
	"github.com/skylatch/s3lite/pkg/s3lite"
)

// Lister is the listing capability a sweep consumes. *s3lite.Client
// satisfies it.
type Lister interface {
	ListPage(ctx context.Context, opts s3lite.PageOptions) (*s3lite.ListingPage, error)
}

// Config tunes a sweep.
type Config struct {
	// Concurrency is the number of prefixes listed in parallel.
	// Default: 4.
	Concurrency int

	// PageSize is the max-keys value per listing request. Zero uses the
	// provider maximum.
	PageSize int

	// RateLimit caps listing requests per second across all prefixes.
	// Zero means unlimited.
	RateLimit float64
}

// DefaultConfig returns the default sweep configuration.
func DefaultConfig() Config {
	return Config{Concurrency: 4}
}

// Summary aggregates statistics from a completed sweep.
type Summary struct {
	// JobID correlates the sweep's log entries.
	JobID string

	// ObjectsListed counts every object seen from the provider.
	ObjectsListed int64

	// ObjectsMatched counts objects that matched the patterns.
	ObjectsMatched int64

	// BytesTotal is the cumulative size of matched objects.
	BytesTotal int64

	// Duration is the wall time of the sweep.
	Duration time.Duration

	// Prefixes lists the prefixes that were swept.
	Prefixes []string
}

// Sweeper executes one bulk listing job. A Sweeper is single-use.
type Sweeper struct {
	lister  Lister
	matcher *match.Matcher
	cfg     Config
	log     s3lite.Logger
	jobID   string
	limiter *rate.Limiter

	objectsListed  atomic.Int64
	objectsMatched atomic.Int64
	bytesTotal     atomic.Int64
}

// New creates a Sweeper over the given lister and matcher.
func New(l Lister, m *match.Matcher, cfg Config) *Sweeper {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	s := &Sweeper{
		lister:  l,
		matcher: m,
		cfg:     cfg,
		log:     s3lite.NopLogger{},
		jobID:   uuid.NewString(),
	}
	if cfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return s
}

// WithLogger attaches a logger. Returns the sweeper for chaining.
func (s *Sweeper) WithLogger(l s3lite.Logger) *Sweeper {
	s.log = l
	return s
}

// JobID returns the sweep's correlation ID.
func (s *Sweeper) JobID() string { return s.jobID }

// Run lists every derived prefix and returns the matching objects.
//
// Results are ordered by prefix, preserving provider order within each
// prefix. Prefixes that do not exist contribute nothing; any listing
// failure aborts the sweep and surfaces the underlying client error.
func (s *Sweeper) Run(ctx context.Context) ([]s3lite.ObjectInfo, *Summary, error) {
	start := time.Now()
	prefixes := s.matcher.Prefixes()

	s.log.Info("sweep started", map[string]any{
		"job_id":   s.jobID,
		"prefixes": len(prefixes),
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	perPrefix := make([][]s3lite.ObjectInfo, len(prefixes))
	sem := make(chan struct{}, s.cfg.Concurrency)

	var wg sync.WaitGroup
	var firstErr error
	var errOnce sync.Once

	for i, prefix := range prefixes {
		select {
		case <-runCtx.Done():
		case sem <- struct{}{}:
		}
		if runCtx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(idx int, p string) {
			defer wg.Done()
			defer func() { <-sem }()

			matched, err := s.sweepPrefix(runCtx, p)
			if err != nil {
				errOnce.Do(func() {
					firstErr = err
					cancel()
				})
				return
			}
			perPrefix[idx] = matched
		}(i, prefix)
	}
	wg.Wait()

	if firstErr == nil {
		firstErr = ctx.Err()
	}
	if firstErr != nil {
		s.log.Error("sweep failed", map[string]any{
			"job_id": s.jobID,
			"error":  firstErr.Error(),
		})
		return nil, nil, firstErr
	}

	results := make([]s3lite.ObjectInfo, 0, s.objectsMatched.Load())
	for _, chunk := range perPrefix {
		results = append(results, chunk...)
	}

	summary := &Summary{
		JobID:          s.jobID,
		ObjectsListed:  s.objectsListed.Load(),
		ObjectsMatched: s.objectsMatched.Load(),
		BytesTotal:     s.bytesTotal.Load(),
		Duration:       time.Since(start),
		Prefixes:       prefixes,
	}
	s.log.Info("sweep complete", map[string]any{
		"job_id":          s.jobID,
		"objects_listed":  summary.ObjectsListed,
		"objects_matched": summary.ObjectsMatched,
		"bytes_total":     summary.BytesTotal,
	})
	return results, summary, nil
}

// sweepPrefix pages through one prefix, filtering keys through the
// matcher.
func (s *Sweeper) sweepPrefix(ctx context.Context, prefix string) ([]s3lite.ObjectInfo, error) {
	var matched []s3lite.ObjectInfo
	token := ""

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		page, err := s.lister.ListPage(ctx, s3lite.PageOptions{
			Prefix:            prefix,
			MaxKeys:           s.cfg.PageSize,
			ContinuationToken: token,
		})
		if err != nil {
			return nil, err
		}
		if page == nil {
			// Nonexistent scope: nothing under this prefix.
			return matched, nil
		}

		for _, obj := range page.Objects {
			s.objectsListed.Add(1)
			if !s.matcher.Match(obj.Key) {
				continue
			}
			s.objectsMatched.Add(1)
			s.bytesTotal.Add(obj.Size)
			matched = append(matched, obj)
		}

		if !page.Truncated || page.NextToken == "" {
			return matched, nil
		}
		token = page.NextToken
	}
}
