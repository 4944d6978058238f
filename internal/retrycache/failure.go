package retrycache

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/modelmatch/review-harvester/internal/clock"
	"github.com/modelmatch/review-harvester/internal/fsatomic"
)

// backoffHours indexes the retry delay by consecutive failure count, capped
// at the last step (30 days).
var backoffHours = []int{1, 6, 24, 168, 720}

// FailureEntry is the persisted retry state for one source URL.
type FailureEntry struct {
	FailureCount  int       `json:"failureCount"`
	RetryCount    int       `json:"retryCount"`
	NextRetryTime time.Time `json:"nextRetryTime"`
	DoNotRetry    bool      `json:"doNotRetry"`
	LastStrategy  string    `json:"lastStrategy,omitempty"`
}

// FailureCache schedules retries for sources whose fetch or extraction
// failed. Delays grow with consecutive failures; a wrong-content-type
// classification disables the URL for good.
type FailureCache struct {
	mu      sync.Mutex
	path    string
	clock   clock.Clock
	logger  *zap.Logger
	entries map[string]*FailureEntry
}

// LoadFailureCache reads the cache at path, creating an empty one when the
// file does not exist yet.
func LoadFailureCache(path string, clk clock.Clock, logger *zap.Logger) (*FailureCache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := loadEntries[FailureEntry](path)
	if err != nil {
		return nil, err
	}
	return &FailureCache{path: path, clock: clk, logger: logger, entries: entries}, nil
}

// RecordFailure bumps the failure count for url and schedules the next
// retry. The schedule never moves an existing retry time backwards. When
// permanent is true the URL is disabled forever.
func (c *FailureCache) RecordFailure(url, strategy string, permanent bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entries[url]
	if e == nil {
		e = &FailureEntry{}
		c.entries[url] = e
	}
	e.FailureCount++
	e.RetryCount++
	e.LastStrategy = strategy
	if permanent {
		e.DoNotRetry = true
	}

	step := e.FailureCount - 1
	if step >= len(backoffHours) {
		step = len(backoffHours) - 1
	}
	next := c.clock.Now().Add(time.Duration(backoffHours[step]) * time.Hour)
	if next.After(e.NextRetryTime) {
		e.NextRetryTime = next
	}

	c.logger.Debug("failure recorded",
		zap.String("url", url),
		zap.Int("failures", e.FailureCount),
		zap.Time("nextRetry", e.NextRetryTime),
		zap.Bool("doNotRetry", e.DoNotRetry))
	return c.saveLocked()
}

// ShouldSkip reports whether url must not be attempted right now.
func (c *FailureCache) ShouldSkip(url string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entries[url]
	if e == nil {
		return false
	}
	if e.DoNotRetry {
		return true
	}
	return c.clock.Now().Before(e.NextRetryTime)
}

// Entry returns a copy of the persisted state for url.
func (c *FailureCache) Entry(url string) (FailureEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[url]
	if !ok {
		return FailureEntry{}, false
	}
	return *e, true
}

// Clear drops the entry for url after a successful attempt.
func (c *FailureCache) Clear(url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[url]; !ok {
		return nil
	}
	delete(c.entries, url)
	return c.saveLocked()
}

func (c *FailureCache) saveLocked() error {
	return fsatomic.SaveJSON(c.path, c.entries)
}
