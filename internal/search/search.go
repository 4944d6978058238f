// Package search finds candidate pages through external web search APIs.
// Backends share one Result shape so discovery can fall back from the
// primary engine to a secondary one without caring which answered.
package search

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/modelmatch/review-harvester/internal/fetch"
)

// Result is one candidate link returned by a backend.
type Result struct {
	Title string
	URL   string
}

// Backend executes one query page against a search service. page is
// 1-based; implementations return at most ten results per page.
type Backend interface {
	Name() string
	Search(ctx context.Context, query string, page int) ([]Result, error)
}

// getter is the slice of the fetch client that backends need.
type getter interface {
	Get(ctx context.Context, rawURL string, class fetch.Class, header http.Header) ([]byte, error)
}

// Multi tries backends in order until one produces results. An errored or
// empty backend falls through to the next; an error is returned only when
// every backend errored.
type Multi struct {
	backends []Backend
	logger   *zap.Logger
}

// NewMulti wires the fallback chain in the order given.
func NewMulti(logger *zap.Logger, backends ...Backend) *Multi {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Multi{backends: backends, logger: logger}
}

// Len reports how many backends are configured.
func (m *Multi) Len() int {
	return len(m.backends)
}

// Search runs the query against each backend in turn and returns the first
// non-empty result set. All backends empty means an empty, error-free
// answer: the query simply found nothing.
func (m *Multi) Search(ctx context.Context, query string, page int) ([]Result, error) {
	var lastErr error
	failures := 0
	for _, b := range m.backends {
		results, err := b.Search(ctx, query, page)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			m.logger.Warn("search backend failed",
				zap.String("backend", b.Name()),
				zap.String("query", query),
				zap.Error(err))
			lastErr = err
			failures++
			continue
		}
		if len(results) == 0 {
			m.logger.Debug("search backend returned no results",
				zap.String("backend", b.Name()),
				zap.String("query", query))
			continue
		}
		return results, nil
	}
	if failures == len(m.backends) && lastErr != nil {
		return nil, lastErr
	}
	return nil, nil
}
