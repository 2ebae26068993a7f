package sweep

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skylatch/s3lite/pkg/match"
	"github.com/skylatch/s3lite/pkg/s3lite"
)

// fakeLister serves canned pages keyed by prefix, honoring
// continuation tokens.
type fakeLister struct {
	pages map[string][]*s3lite.ListingPage
	calls atomic.Int64
	err   error
}

func (f *fakeLister) ListPage(_ context.Context, opts s3lite.PageOptions) (*s3lite.ListingPage, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	pages, ok := f.pages[opts.Prefix]
	if !ok {
		return nil, nil
	}
	idx := 0
	if opts.ContinuationToken != "" {
		for i, p := range pages[:len(pages)-1] {
			if p.NextToken == opts.ContinuationToken {
				idx = i + 1
				break
			}
		}
	}
	return pages[idx], nil
}

func obj(key string, size int64) s3lite.ObjectInfo {
	return s3lite.ObjectInfo{Key: key, Size: size}
}

func newMatcher(t *testing.T, includes []string, excludes []string) *match.Matcher {
	t.Helper()
	m, err := match.New(match.Config{Includes: includes, Excludes: excludes})
	require.NoError(t, err)
	return m
}

func TestRunFiltersAndAggregates(t *testing.T) {
	lister := &fakeLister{pages: map[string][]*s3lite.ListingPage{
		"logs/": {
			{Objects: []s3lite.ObjectInfo{
				obj("logs/app.log", 100),
				obj("logs/app.txt", 10),
				obj("logs/2024/app.log", 50),
			}},
		},
	}}
	m := newMatcher(t, []string{"logs/**/*.log", "logs/*.log"}, nil)

	sw := New(lister, m, DefaultConfig())
	results, summary, err := sw.Run(context.Background())
	require.NoError(t, err)

	keys := make([]string, 0, len(results))
	for _, o := range results {
		keys = append(keys, o.Key)
	}
	assert.ElementsMatch(t, []string{"logs/app.log", "logs/2024/app.log"}, keys)
	assert.Equal(t, int64(3), summary.ObjectsListed)
	assert.Equal(t, int64(2), summary.ObjectsMatched)
	assert.Equal(t, int64(150), summary.BytesTotal)
	assert.NotEmpty(t, summary.JobID)
	assert.Equal(t, sw.JobID(), summary.JobID)
}

func TestRunFollowsContinuationTokens(t *testing.T) {
	lister := &fakeLister{pages: map[string][]*s3lite.ListingPage{
		"data/": {
			{
				Objects:   []s3lite.ObjectInfo{obj("data/a.csv", 1)},
				Truncated: true,
				NextToken: "t1",
			},
			{
				Objects:   []s3lite.ObjectInfo{obj("data/b.csv", 2)},
				Truncated: true,
				NextToken: "t2",
			},
			{
				Objects: []s3lite.ObjectInfo{obj("data/c.csv", 3)},
			},
		},
	}}
	m := newMatcher(t, []string{"data/*.csv"}, nil)

	results, summary, err := New(lister, m, DefaultConfig()).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "data/a.csv", results[0].Key)
	assert.Equal(t, "data/c.csv", results[2].Key)
	assert.Equal(t, int64(3), summary.ObjectsListed)
	assert.Equal(t, int64(3), lister.calls.Load())
}

func TestRunMissingScopeYieldsEmpty(t *testing.T) {
	// The lister returns a nil page for unknown prefixes, matching the
	// client's nonexistent-scope behavior.
	lister := &fakeLister{pages: map[string][]*s3lite.ListingPage{}}
	m := newMatcher(t, []string{"gone/*.log"}, nil)

	results, summary, err := New(lister, m, DefaultConfig()).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, int64(0), summary.ObjectsListed)
}

func TestRunMultiplePrefixesOrdered(t *testing.T) {
	lister := &fakeLister{pages: map[string][]*s3lite.ListingPage{
		"a/": {{Objects: []s3lite.ObjectInfo{obj("a/1.log", 1)}}},
		"b/": {{Objects: []s3lite.ObjectInfo{obj("b/2.log", 2)}}},
	}}
	m := newMatcher(t, []string{"a/*.log", "b/*.log"}, nil)

	results, summary, err := New(lister, m, Config{Concurrency: 2}).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)
	// Prefix order is preserved regardless of goroutine scheduling.
	assert.Equal(t, "a/1.log", results[0].Key)
	assert.Equal(t, "b/2.log", results[1].Key)
	assert.Equal(t, []string{"a/", "b/"}, summary.Prefixes)
}

func TestRunAbortsOnListingError(t *testing.T) {
	boom := errors.New("listing exploded")
	lister := &fakeLister{err: boom}
	m := newMatcher(t, []string{"x/*.log"}, nil)

	results, summary, err := New(lister, m, DefaultConfig()).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, results)
	assert.Nil(t, summary)
}

func TestRunRespectsExcludes(t *testing.T) {
	lister := &fakeLister{pages: map[string][]*s3lite.ListingPage{
		"": {{Objects: []s3lite.ObjectInfo{
			obj("keep.log", 5),
			obj("tmp/skip.log", 7),
		}}},
	}}
	m := newMatcher(t, []string{"**/*.log"}, []string{"tmp/**"})

	results, summary, err := New(lister, m, DefaultConfig()).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "keep.log", results[0].Key)
	assert.Equal(t, int64(5), summary.BytesTotal)
}

func TestRunCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	lister := &fakeLister{pages: map[string][]*s3lite.ListingPage{
		"a/": {{Objects: []s3lite.ObjectInfo{obj("a/1.log", 1)}}},
	}}
	m := newMatcher(t, []string{"a/*.log"}, nil)

	_, _, err := New(lister, m, DefaultConfig()).Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
