package catalog

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/modelmatch/review-harvester/internal/fsatomic"
)

// productRecord is the persisted form of one product.
type productRecord struct {
	ReleaseDate string              `json:"releaseDate,omitempty"`
	URLs        map[string][]Source `json:"urls"`
}

// Registry is the durable product catalog, stored as a single JSON document
// mapping brand to model to record. It is the sole interface between this
// pipeline and the downstream enrichment collaborators, so the on-disk shape
// is load-bearing.
type Registry struct {
	mu       sync.Mutex
	path     string
	logger   *zap.Logger
	products []*Product
}

// LoadRegistry reads the registry file. A missing or unreadable file is a
// configuration error and aborts the run; individually malformed product
// records are skipped and logged so one bad entry cannot poison the rest.
func LoadRegistry(path string, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var doc map[string]map[string]json.RawMessage
	if err := fsatomic.LoadJSON(path, &doc); err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}

	r := &Registry{path: path, logger: logger}
	for brand, models := range doc {
		if brand == "" {
			logger.Warn("registry entry with empty brand skipped")
			continue
		}
		for model, raw := range models {
			if model == "" {
				logger.Warn("registry entry with empty model skipped", zap.String("brand", brand))
				continue
			}
			var rec productRecord
			if err := json.Unmarshal(raw, &rec); err != nil {
				logger.Warn("malformed registry entry skipped",
					zap.String("brand", brand),
					zap.String("model", model),
					zap.Error(err))
				continue
			}
			if rec.URLs == nil {
				rec.URLs = make(map[string][]Source)
			}
			r.products = append(r.products, &Product{
				Brand:       brand,
				Model:       model,
				ReleaseDate: rec.ReleaseDate,
				Sources:     rec.URLs,
			})
		}
	}

	sort.Slice(r.products, func(i, j int) bool {
		if r.products[i].Brand != r.products[j].Brand {
			return r.products[i].Brand < r.products[j].Brand
		}
		return r.products[i].Model < r.products[j].Model
	})
	return r, nil
}

// Products returns every tracked product ordered by brand then model, which
// keeps run output and registry writes deterministic.
func (r *Registry) Products() []*Product {
	return r.products
}

// Save writes the registry back to disk atomically.
func (r *Registry) Save() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveLocked()
}

func (r *Registry) saveLocked() error {
	doc := make(map[string]map[string]productRecord, len(r.products))
	for _, p := range r.products {
		models, ok := doc[p.Brand]
		if !ok {
			models = make(map[string]productRecord)
			doc[p.Brand] = models
		}
		urls := p.Sources
		if urls == nil {
			urls = make(map[string][]Source)
		}
		models[p.Model] = productRecord{ReleaseDate: p.ReleaseDate, URLs: urls}
	}
	if err := fsatomic.SaveJSON(r.path, doc); err != nil {
		return fmt.Errorf("save registry: %w", err)
	}
	return nil
}

// UpdateReleaseDate records a discovered release date if none is known yet
// and persists the change. Safe for concurrent use by scrape workers.
func (r *Registry) UpdateReleaseDate(p *Product, date string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if date == "" || p.ReleaseDate != "" {
		return nil
	}
	p.ReleaseDate = date
	return r.saveLocked()
}
