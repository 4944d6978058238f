package retrycache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)}
}

func newFailureCache(t *testing.T, clk *fakeClock) *FailureCache {
	t.Helper()
	c, err := LoadFailureCache(filepath.Join(t.TempDir(), "failures.json"), clk, nil)
	require.NoError(t, err)
	return c
}

func TestFailureBackoffSchedule(t *testing.T) {
	const url = "https://example.com/acme-one-review"
	clk := newFakeClock()
	cache := newFailureCache(t, clk)

	wantHours := []time.Duration{1, 6, 24, 168, 720, 720}
	for i, hours := range wantHours {
		failedAt := clk.Now()
		require.NoError(t, cache.RecordFailure(url, "scrape", false))

		e, ok := cache.Entry(url)
		require.True(t, ok)
		assert.Equal(t, i+1, e.FailureCount)
		assert.WithinDuration(t, failedAt.Add(hours*time.Hour), e.NextRetryTime, 0,
			"failure %d should schedule %v hours out", i+1, hours)

		clk.advance(hours*time.Hour + time.Minute)
	}
}

func TestFailureNextRetryNeverMovesBackwards(t *testing.T) {
	const url = "https://example.com/acme-one-review"
	clk := newFakeClock()
	cache := newFailureCache(t, clk)

	require.NoError(t, cache.RecordFailure(url, "scrape", false))
	require.NoError(t, cache.RecordFailure(url, "scrape", false))
	e, _ := cache.Entry(url)
	scheduled := e.NextRetryTime

	clk.now = clk.now.Add(-10 * 24 * time.Hour)
	require.NoError(t, cache.RecordFailure(url, "scrape", false))
	e, _ = cache.Entry(url)
	assert.False(t, e.NextRetryTime.Before(scheduled), "retry time moved backwards")
}

func TestFailureShouldSkip(t *testing.T) {
	const url = "https://example.com/acme-one-review"
	clk := newFakeClock()
	cache := newFailureCache(t, clk)

	assert.False(t, cache.ShouldSkip(url))

	require.NoError(t, cache.RecordFailure(url, "scrape", false))
	assert.True(t, cache.ShouldSkip(url))

	clk.advance(time.Hour + time.Minute)
	assert.False(t, cache.ShouldSkip(url))
}

func TestFailurePermanentSkip(t *testing.T) {
	const url = "https://example.com/not-a-page.pdf"
	clk := newFakeClock()
	cache := newFailureCache(t, clk)

	require.NoError(t, cache.RecordFailure(url, "scrape", true))
	assert.True(t, cache.ShouldSkip(url))

	clk.advance(365 * 24 * time.Hour)
	assert.True(t, cache.ShouldSkip(url), "wrong content type must never be retried")
}

func TestFailureClear(t *testing.T) {
	const url = "https://example.com/acme-one-review"
	clk := newFakeClock()
	cache := newFailureCache(t, clk)

	require.NoError(t, cache.RecordFailure(url, "scrape", false))
	require.NoError(t, cache.Clear(url))

	assert.False(t, cache.ShouldSkip(url))
	_, ok := cache.Entry(url)
	assert.False(t, ok)
}

func TestFailureCachePersists(t *testing.T) {
	const url = "https://example.com/acme-one-review"
	clk := newFakeClock()
	path := filepath.Join(t.TempDir(), "failures.json")

	first, err := LoadFailureCache(path, clk, nil)
	require.NoError(t, err)
	require.NoError(t, first.RecordFailure(url, "scrape", false))
	require.NoError(t, first.RecordFailure(url, "scrape", false))

	reloaded, err := LoadFailureCache(path, clk, nil)
	require.NoError(t, err)
	e, ok := reloaded.Entry(url)
	require.True(t, ok)
	assert.Equal(t, 2, e.FailureCount)
	assert.Equal(t, "scrape", e.LastStrategy)
	assert.True(t, reloaded.ShouldSkip(url))
}
