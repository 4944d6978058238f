// Package discovery fills a product's source-type slots with candidate pages
// found through web search. Three passes run in order: a foundation query
// against the canonical spec site, a dragnet over every review domain, and a
// sniper query per still-empty priority slot. Slots that already hold sources
// are never re-queried, which makes discovery idempotent across runs.
package discovery

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/modelmatch/review-harvester/internal/catalog"
	"github.com/modelmatch/review-harvester/internal/metrics"
	"github.com/modelmatch/review-harvester/internal/search"
)

// dragnetMaxPages bounds the paginated dragnet query; backends return at
// most ten results per page.
const dragnetMaxPages = 3

// searcher is the slice of search.Multi the discoverer needs.
type searcher interface {
	Search(ctx context.Context, query string, page int) ([]search.Result, error)
}

// Discoverer fills empty source slots on products. It mutates products in
// memory only; registry persistence stays with the orchestrator.
type Discoverer struct {
	engine searcher
	logger *zap.Logger
}

// New wires the search engine chain into a Discoverer.
func New(engine searcher, logger *zap.Logger) *Discoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discoverer{engine: engine, logger: logger}
}

// Discover runs the three passes for one product and reports how many
// sources were added. Failed queries are logged and skipped; only context
// cancellation aborts the pass sequence.
func (d *Discoverer) Discover(ctx context.Context, p *catalog.Product) (int, error) {
	added := d.foundation(ctx, p)
	if err := ctx.Err(); err != nil {
		return added, err
	}
	added += d.dragnet(ctx, p)
	if err := ctx.Err(); err != nil {
		return added, err
	}
	added += d.sniper(ctx, p)
	return added, ctx.Err()
}

// foundation issues one exact-phrase query against the canonical spec site
// when the spec slot is still empty.
func (d *Discoverer) foundation(ctx context.Context, p *catalog.Product) int {
	specType, ok := specSlot()
	if !ok || p.HasSources(specType.Name) {
		return 0
	}
	query := fmt.Sprintf("%q specifications site:%s", p.FullName(), catalog.SpecSiteDomain)
	results, err := d.engine.Search(ctx, query, 1)
	if err != nil {
		d.logger.Warn("foundation query failed",
			zap.String("product", p.Key()),
			zap.Error(err))
		return 0
	}
	return d.acceptAll(p, results)
}

// dragnet issues one OR-combined query spanning every review domain and
// pages through up to dragnetMaxPages, stopping early once no slot is empty.
func (d *Discoverer) dragnet(ctx context.Context, p *catalog.Product) int {
	if countEmptySlots(p) == 0 {
		return 0
	}
	sites := make([]string, 0, len(catalog.ReviewDomains()))
	for _, domain := range catalog.ReviewDomains() {
		sites = append(sites, "site:"+domain)
	}
	query := fmt.Sprintf("%q review (%s)", p.FullName(), strings.Join(sites, " OR "))

	added := 0
	for page := 1; page <= dragnetMaxPages; page++ {
		results, err := d.engine.Search(ctx, query, page)
		if err != nil {
			d.logger.Warn("dragnet query failed",
				zap.String("product", p.Key()),
				zap.Int("page", page),
				zap.Error(err))
			break
		}
		if len(results) == 0 {
			break
		}
		added += d.acceptAll(p, results)
		if countEmptySlots(p) == 0 {
			break
		}
	}
	return added
}

// sniper issues one narrow query per priority review slot that survived the
// dragnet empty. The spec slot is the foundation pass's job and is skipped.
func (d *Discoverer) sniper(ctx context.Context, p *catalog.Product) int {
	added := 0
	for _, st := range catalog.SourceTypes() {
		if !st.Priority || st.Kind != catalog.KindReview || p.HasSources(st.Name) {
			continue
		}
		if ctx.Err() != nil {
			return added
		}
		query := fmt.Sprintf("%q review site:%s", p.FullName(), st.Domain)
		results, err := d.engine.Search(ctx, query, 1)
		if err != nil {
			d.logger.Warn("sniper query failed",
				zap.String("product", p.Key()),
				zap.String("slot", st.Name),
				zap.Error(err))
			continue
		}
		added += d.acceptAll(p, results)
	}
	return added
}

func (d *Discoverer) acceptAll(p *catalog.Product, results []search.Result) int {
	added := 0
	for _, res := range results {
		if d.accept(p, res) {
			added++
		}
	}
	return added
}

// accept validates one candidate, assigns it to its slot, and reports whether
// the product gained a source.
func (d *Discoverer) accept(p *catalog.Product, res search.Result) bool {
	st, host, reason := checkCandidate(p, res)
	if reason != "" {
		metrics.ObserveDiscoveryCandidate("rejected")
		d.logger.Debug("candidate rejected",
			zap.String("product", p.Key()),
			zap.String("url", res.URL),
			zap.String("reason", reason))
		return false
	}
	src := catalog.Source{URL: res.URL, Title: res.Title, OriginDomain: host}
	if !p.AddSource(st.Name, src) {
		metrics.ObserveDiscoveryCandidate("duplicate")
		return false
	}
	metrics.ObserveDiscoveryCandidate("accepted")
	d.logger.Info("source discovered",
		zap.String("product", p.Key()),
		zap.String("slot", st.Name),
		zap.String("url", res.URL))
	return true
}

func countEmptySlots(p *catalog.Product) int {
	empty := 0
	for _, st := range catalog.SourceTypes() {
		if !p.HasSources(st.Name) {
			empty++
		}
	}
	return empty
}

func specSlot() (catalog.SourceType, bool) {
	for _, st := range catalog.SourceTypes() {
		if st.Kind == catalog.KindSpec {
			return st, true
		}
	}
	return catalog.SourceType{}, false
}
