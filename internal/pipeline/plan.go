package pipeline

import (
	"sync"

	"github.com/modelmatch/review-harvester/internal/catalog"
)

// planKey addresses one source's resolution result within a run.
type planKey struct {
	product string
	slot    string
	url     string
}

// Plan is the hand-off between snapshot resolution and extraction: ranked
// replay URLs per (product, slot, source URL). Candidates live here rather
// than on the catalog entities, so a crash between phases never persists
// half-resolved state.
type Plan struct {
	mu         sync.Mutex
	candidates map[planKey][]string
}

// NewPlan returns an empty plan.
func NewPlan() *Plan {
	return &Plan{candidates: make(map[planKey][]string)}
}

// Set stores the ranked replay URLs for one source.
func (pl *Plan) Set(p *catalog.Product, st catalog.SourceType, sourceURL string, replayURLs []string) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	pl.candidates[planKey{product: p.Key(), slot: st.Name, url: sourceURL}] = replayURLs
}

// Get returns the ranked replay URLs for one source, nil when resolution
// found none.
func (pl *Plan) Get(p *catalog.Product, st catalog.SourceType, sourceURL string) []string {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return pl.candidates[planKey{product: p.Key(), slot: st.Name, url: sourceURL}]
}

// Len reports how many sources hold candidates.
func (pl *Plan) Len() int {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return len(pl.candidates)
}

// ScrapeTask is one unit of phase-three work: fill one slot of one product
// from one source, trying the planned captures in ranked order.
type ScrapeTask struct {
	Product     *catalog.Product
	Type        catalog.SourceType
	Source      catalog.Source
	ArchiveURLs []string
}

// taskQueue is the shared phase-three work list. Workers pop under the mutex
// so every task runs exactly once.
type taskQueue struct {
	mu    sync.Mutex
	next  int
	tasks []ScrapeTask
}

func (q *taskQueue) pop() (ScrapeTask, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.next >= len(q.tasks) {
		return ScrapeTask{}, false
	}
	t := q.tasks[q.next]
	q.next++
	return t, true
}
