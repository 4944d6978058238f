// Package pipeline drives a harvest run end to end: discover missing source
// URLs, resolve archived captures for every known source, then extract and
// persist article text exactly once per product and slot. Each phase walks
// the registry fresh, so an interrupted run resumes wherever durable state
// says work remains.
package pipeline

import (
	"context"
	"time"

	"github.com/modelmatch/review-harvester/internal/catalog"
	"github.com/modelmatch/review-harvester/internal/fetch"
	"github.com/modelmatch/review-harvester/internal/retrycache"
)

// Discoverer fills empty registry slots from the search backends.
type Discoverer interface {
	Discover(ctx context.Context, p *catalog.Product) (int, error)
}

// SnapshotResolver picks ranked replay URLs for a source URL.
type SnapshotResolver interface {
	Resolve(ctx context.Context, pageURL string, specPage bool, from time.Time) ([]string, error)
}

// Saver asks the archive to capture a live page that has no snapshot yet.
type Saver interface {
	RequestSave(ctx context.Context, pageURL string) error
}

// Fetcher is the slice of the fetch client the scrape workers use.
type Fetcher interface {
	FetchPage(ctx context.Context, rawURL string) (fetch.Page, error)
	FetchBinary(ctx context.Context, rawURL string, timeout time.Duration) ([]byte, string, error)
}

// Extractor turns archived publisher HTML into article text.
type Extractor interface {
	Extract(body []byte, pageURL string, st catalog.SourceType) (string, error)
}

// ContentStore persists extracted text and product hero images.
type ContentStore interface {
	HasText(p *catalog.Product, st catalog.SourceType) bool
	WriteText(p *catalog.Product, st catalog.SourceType, text string) error
	HasHeroImage(p *catalog.Product) bool
	WriteHeroImage(p *catalog.Product, data []byte) error
}

// Caches bundles the persistent retry caches a run consults. All three are
// keyed by source URL.
type Caches struct {
	Failure    *retrycache.FailureCache
	NoSnapshot *retrycache.NoSnapshotCache
	Extraction *retrycache.ExtractionCache
}

const (
	defaultWorkers          = 2
	defaultMaxAttempts      = 5
	defaultHeroImageTimeout = time.Minute
)

// Config tunes a run. Zero values select the defaults.
type Config struct {
	// Workers is the width of the phase-three scrape pool.
	Workers int
	// MaxAttempts bounds how many ranked captures one task tries.
	MaxAttempts int
	// RefreshHeroImages re-fetches hero images even when one is stored.
	RefreshHeroImages bool
	// HeroImageTimeout bounds a single hero image download.
	HeroImageTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.HeroImageTimeout <= 0 {
		c.HeroImageTimeout = defaultHeroImageTimeout
	}
	return c
}
