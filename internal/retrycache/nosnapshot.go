package retrycache

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/modelmatch/review-harvester/internal/clock"
	"github.com/modelmatch/review-harvester/internal/fsatomic"
)

// Escalation states for a URL the archive holds no capture of. Transitions
// run one way only: retrying → save_requested → exhausted. waiting is the
// visible sub-state of save_requested while the cooldown runs.
const (
	StatusRetrying      = "retrying"
	StatusSaveRequested = "save_requested"
	StatusWaiting       = "waiting"
	StatusExhausted     = "exhausted"
)

const (
	// saveTriggerDays is how many distinct-day misses fire a save request.
	saveTriggerDays = 3
	// saveCooldownDays is how long a requested capture gets to materialize.
	saveCooldownDays = 7
	// maxSaveRequests bounds the escalation; the second request exhausts
	// the entry.
	maxSaveRequests = 2
)

// NoSnapshotEntry is the persisted escalation state for one source URL.
type NoSnapshotEntry struct {
	DailyRetries     int       `json:"dailyRetries"`
	LastRetryDate    string    `json:"lastRetryDate"`
	SaveRequested    bool      `json:"saveRequested"`
	SaveRequestDates []string  `json:"saveRequestDates,omitempty"`
	NextRetryDate    time.Time `json:"nextRetryDate,omitempty"`
	Status           string    `json:"status"`
}

// NoSnapshotCache escalates sources with no archived capture: retry daily,
// then ask the archive to capture the live page, then give up.
type NoSnapshotCache struct {
	mu      sync.Mutex
	path    string
	clock   clock.Clock
	logger  *zap.Logger
	entries map[string]*NoSnapshotEntry
}

// LoadNoSnapshotCache reads the cache at path, creating an empty one when
// the file does not exist yet.
func LoadNoSnapshotCache(path string, clk clock.Clock, logger *zap.Logger) (*NoSnapshotCache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := loadEntries[NoSnapshotEntry](path)
	if err != nil {
		return nil, err
	}
	return &NoSnapshotCache{path: path, clock: clk, logger: logger, entries: entries}, nil
}

// ShouldSkip reports whether resolution for url should not be attempted now:
// the entry is exhausted, already retried today, or inside a save cooldown.
func (c *NoSnapshotCache) ShouldSkip(url string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entries[url]
	if e == nil {
		return false
	}
	if e.Status == StatusExhausted {
		return true
	}
	now := c.clock.Now()
	if !e.NextRetryDate.IsZero() && now.Before(e.NextRetryDate) {
		if e.Status == StatusSaveRequested {
			e.Status = StatusWaiting
			if err := c.saveLocked(); err != nil {
				c.logger.Warn("no-snapshot cache save failed", zap.Error(err))
			}
		}
		return true
	}
	return e.LastRetryDate == now.Format(dateLayout)
}

// RecordMiss notes a failed resolution attempt. Misses count once per
// calendar day; after saveTriggerDays distinct days the caller should fire
// an archive save request, signalled by the return value.
func (c *NoSnapshotCache) RecordMiss(url string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	today := c.clock.Now().Format(dateLayout)
	e := c.entries[url]
	if e == nil {
		e = &NoSnapshotEntry{Status: StatusRetrying}
		c.entries[url] = e
	}
	if e.Status == StatusExhausted {
		return false, nil
	}
	newDay := e.LastRetryDate != today
	if newDay {
		e.DailyRetries++
		e.LastRetryDate = today
	}
	if err := c.saveLocked(); err != nil {
		return false, err
	}

	requestSave := newDay && e.DailyRetries >= saveTriggerDays && len(e.SaveRequestDates) < maxSaveRequests
	if requestSave {
		c.logger.Info("archive save threshold reached",
			zap.String("url", url),
			zap.Int("dailyRetries", e.DailyRetries),
			zap.Int("priorSaves", len(e.SaveRequestDates)))
	}
	return requestSave, nil
}

// MarkSaveRequested transitions url after a save request was accepted: the
// first request opens a cooldown window, the second exhausts the entry.
func (c *NoSnapshotCache) MarkSaveRequested(url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entries[url]
	if e == nil {
		e = &NoSnapshotEntry{}
		c.entries[url] = e
	}
	now := c.clock.Now()
	e.SaveRequested = true
	e.SaveRequestDates = append(e.SaveRequestDates, now.Format(dateLayout))
	e.DailyRetries = 0

	if len(e.SaveRequestDates) >= maxSaveRequests {
		e.Status = StatusExhausted
		e.NextRetryDate = time.Time{}
	} else {
		e.Status = StatusSaveRequested
		e.NextRetryDate = now.AddDate(0, 0, saveCooldownDays)
	}
	c.logger.Info("no-snapshot escalation",
		zap.String("url", url),
		zap.String("status", e.Status),
		zap.Int("saveRequests", len(e.SaveRequestDates)))
	return c.saveLocked()
}

// Entry returns a copy of the persisted state for url.
func (c *NoSnapshotCache) Entry(url string) (NoSnapshotEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[url]
	if !ok {
		return NoSnapshotEntry{}, false
	}
	return *e, true
}

// Clear drops the entry for url once resolution succeeds.
func (c *NoSnapshotCache) Clear(url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[url]; !ok {
		return nil
	}
	delete(c.entries, url)
	return c.saveLocked()
}

func (c *NoSnapshotCache) saveLocked() error {
	return fsatomic.SaveJSON(c.path, c.entries)
}
