package archive

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/modelmatch/review-harvester/internal/clock"
	"github.com/modelmatch/review-harvester/internal/metrics"
)

// ErrNoSnapshot reports that the archive holds no usable capture for a URL,
// even after the query-stripped retry. Callers escalate it through the
// no-snapshot ladder rather than treating it as fatal.
var ErrNoSnapshot = errors.New("no archive snapshot found")

// CaptureIndex lists archived captures of a URL.
type CaptureIndex interface {
	Captures(ctx context.Context, pageURL string, from time.Time) ([]Capture, error)
}

const (
	defaultMaxCaptures = 20
	captureFloor       = 5
	cutoffYears        = 4
	cutoffAfterPicks   = 3
)

// Resolver selects a bounded, temporally diverse set of replay URLs per
// source URL. Results, including no-snapshot outcomes, are memoized per
// (url, specPage, from) for the life of the process.
type Resolver struct {
	index       CaptureIndex
	clock       clock.Clock
	logger      *zap.Logger
	maxCaptures int

	mu   sync.Mutex
	memo map[resolveKey]resolveResult
}

type resolveKey struct {
	url      string
	specPage bool
	from     string
}

type resolveResult struct {
	urls []string
	err  error
}

// NewResolver builds a Resolver. maxCaptures <= 0 selects the default of 20.
func NewResolver(index CaptureIndex, clk clock.Clock, maxCaptures int, logger *zap.Logger) *Resolver {
	if maxCaptures <= 0 {
		maxCaptures = defaultMaxCaptures
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		index:       index,
		clock:       clk,
		logger:      logger,
		maxCaptures: maxCaptures,
		memo:        make(map[resolveKey]resolveResult),
	}
}

// Resolve returns ranked replay URLs for pageURL. A specification page
// resolves to exactly the latest capture; a review page resolves to up to
// maxCaptures spread across calendar months. Transient index errors are
// returned unmemoized so a later attempt can succeed.
func (r *Resolver) Resolve(ctx context.Context, pageURL string, specPage bool, from time.Time) ([]string, error) {
	key := resolveKey{url: pageURL, specPage: specPage, from: from.Format("20060102")}
	r.mu.Lock()
	if res, ok := r.memo[key]; ok {
		r.mu.Unlock()
		return res.urls, res.err
	}
	r.mu.Unlock()

	urls, err := r.resolve(ctx, pageURL, specPage, from)
	if err != nil && !errors.Is(err, ErrNoSnapshot) {
		return nil, err
	}

	r.mu.Lock()
	r.memo[key] = resolveResult{urls: urls, err: err}
	r.mu.Unlock()
	return urls, err
}

func (r *Resolver) resolve(ctx context.Context, pageURL string, specPage bool, from time.Time) ([]string, error) {
	captures, err := r.index.Captures(ctx, pageURL, from)
	if err != nil {
		return nil, err
	}
	if len(captures) == 0 {
		if stripped := stripQuery(pageURL); stripped != pageURL {
			r.logger.Debug("no exact captures, retrying without query string",
				zap.String("url", pageURL))
			captures, err = r.index.Captures(ctx, stripped, from)
			if err != nil {
				return nil, err
			}
		}
	}
	if len(captures) == 0 {
		metrics.ObserveSnapshotLookup("miss")
		return nil, fmt.Errorf("%s: %w", pageURL, ErrNoSnapshot)
	}
	metrics.ObserveSnapshotLookup("hit")

	if specPage {
		latest := captures[0]
		for _, c := range captures[1:] {
			if c.Timestamp > latest.Timestamp {
				latest = c
			}
		}
		return []string{latest.ReplayURL()}, nil
	}
	return r.selectDiverse(captures), nil
}

// selectDiverse ranks captures by body length, largest first (a bigger
// capture is less likely to be a truncated or paywalled snapshot), breaking
// ties by recency, then greedily picks at most maxCaptures with one capture
// per calendar month. Once three picks exist, older-than-cutoff candidates
// are discarded. If diversity leaves fewer than min(captureFloor,
// maxCaptures) picks, the floor is topped up from the ranked list regardless
// of month.
func (r *Resolver) selectDiverse(captures []Capture) []string {
	ranked := make([]Capture, len(captures))
	copy(ranked, captures)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Length != ranked[j].Length {
			return ranked[i].Length > ranked[j].Length
		}
		return ranked[i].Timestamp > ranked[j].Timestamp
	})

	cutoff := r.clock.Now().AddDate(-cutoffYears, 0, 0)
	months := make(map[string]bool)
	chosen := make(map[int]bool)
	selected := make([]int, 0, r.maxCaptures)

	for i, c := range ranked {
		if len(selected) >= r.maxCaptures {
			break
		}
		month := c.Timestamp[:6]
		if months[month] {
			continue
		}
		if len(selected) >= cutoffAfterPicks {
			if t, err := c.Time(); err == nil && t.Before(cutoff) {
				continue
			}
		}
		months[month] = true
		chosen[i] = true
		selected = append(selected, i)
	}

	floor := captureFloor
	if r.maxCaptures < floor {
		floor = r.maxCaptures
	}
	for i := range ranked {
		if len(selected) >= floor {
			break
		}
		if chosen[i] {
			continue
		}
		chosen[i] = true
		selected = append(selected, i)
	}

	sort.Ints(selected)
	urls := make([]string, 0, len(selected))
	seen := make(map[string]bool, len(selected))
	for _, i := range selected {
		u := ranked[i].ReplayURL()
		if seen[u] {
			continue
		}
		seen[u] = true
		urls = append(urls, u)
	}
	return urls
}

// stripQuery removes the query and fragment, matching the index's records
// for URLs whose canonical form was archived without parameters.
func stripQuery(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
			return rawURL[:i]
		}
		return rawURL
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
