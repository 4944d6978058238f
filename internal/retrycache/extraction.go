package retrycache

import (
	"sync"

	"go.uber.org/zap"

	"github.com/modelmatch/review-harvester/internal/clock"
	"github.com/modelmatch/review-harvester/internal/fsatomic"
)

// manualReviewAfterDays is the distinct-day failure count past which a
// source stops being retried automatically.
const manualReviewAfterDays = 5

// ExtractionEntry is the persisted extraction-failure state for one source
// URL. FailureReasons maps each attempted snapshot to why it was rejected.
type ExtractionEntry struct {
	AttemptedSnapshots []string          `json:"attemptedSnapshots"`
	FailureReasons     map[string]string `json:"failureReasons"`
	DailyRetries       int               `json:"dailyRetries"`
	LastRetryDate      string            `json:"lastRetryDate"`
	NeedsManualReview  bool              `json:"needsManualReview"`
	IsPermanent        bool              `json:"isPermanent"`
}

// ExtractionCache records which snapshots of a source were tried and why
// they failed, and decides when a source needs a human instead of a retry.
type ExtractionCache struct {
	mu      sync.Mutex
	path    string
	clock   clock.Clock
	logger  *zap.Logger
	entries map[string]*ExtractionEntry
}

// LoadExtractionCache reads the cache at path, creating an empty one when
// the file does not exist yet.
func LoadExtractionCache(path string, clk clock.Clock, logger *zap.Logger) (*ExtractionCache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := loadEntries[ExtractionEntry](path)
	if err != nil {
		return nil, err
	}
	return &ExtractionCache{path: path, clock: clk, logger: logger, entries: entries}, nil
}

// RecordFailure notes one exhausted extraction pass over url: every snapshot
// tried this pass and its rejection reason. permanent marks the source as
// wrong-content-type, which suppresses all further attempts. Past
// manualReviewAfterDays distinct failing days the source is flagged for a
// human.
func (c *ExtractionCache) RecordFailure(url string, reasons map[string]string, permanent bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entries[url]
	if e == nil {
		e = &ExtractionEntry{FailureReasons: make(map[string]string)}
		c.entries[url] = e
	}
	if e.FailureReasons == nil {
		e.FailureReasons = make(map[string]string)
	}
	for snapshot, reason := range reasons {
		if !containsString(e.AttemptedSnapshots, snapshot) {
			e.AttemptedSnapshots = append(e.AttemptedSnapshots, snapshot)
		}
		e.FailureReasons[snapshot] = reason
	}

	today := c.clock.Now().Format(dateLayout)
	if e.LastRetryDate != today {
		e.DailyRetries++
		e.LastRetryDate = today
	}
	if e.DailyRetries > manualReviewAfterDays {
		e.NeedsManualReview = true
	}
	if permanent {
		e.IsPermanent = true
	}

	c.logger.Debug("extraction failure recorded",
		zap.String("url", url),
		zap.Int("snapshots", len(e.AttemptedSnapshots)),
		zap.Int("dailyRetries", e.DailyRetries),
		zap.Bool("needsManualReview", e.NeedsManualReview),
		zap.Bool("isPermanent", e.IsPermanent))
	return c.saveLocked()
}

// ShouldSkip reports whether url must not be attempted right now.
func (c *ExtractionCache) ShouldSkip(url string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entries[url]
	if e == nil {
		return false
	}
	if e.IsPermanent || e.NeedsManualReview {
		return true
	}
	return e.LastRetryDate == c.clock.Now().Format(dateLayout)
}

// Entry returns a copy of the persisted state for url.
func (c *ExtractionCache) Entry(url string) (ExtractionEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[url]
	if !ok {
		return ExtractionEntry{}, false
	}
	out := *e
	out.AttemptedSnapshots = append([]string(nil), e.AttemptedSnapshots...)
	out.FailureReasons = make(map[string]string, len(e.FailureReasons))
	for k, v := range e.FailureReasons {
		out.FailureReasons[k] = v
	}
	return out, true
}

// Clear drops the entry for url once extraction succeeds.
func (c *ExtractionCache) Clear(url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[url]; !ok {
		return nil
	}
	delete(c.entries, url)
	return c.saveLocked()
}

func (c *ExtractionCache) saveLocked() error {
	return fsatomic.SaveJSON(c.path, c.entries)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
