// Package catalog owns the product registry: tracked phone models, their
// discovered sources, and the source-type table that names every slot a
// product can fill.
package catalog

import (
	"strings"
	"unicode"
)

// Source is one discovered page for a product. Once an archive URL has been
// attached the record is append-only.
type Source struct {
	URL          string `json:"url"`
	Title        string `json:"title,omitempty"`
	OriginDomain string `json:"originDomain,omitempty"`
	ArchiveURL   string `json:"archiveUrl,omitempty"`
}

// Product is one tracked phone model and its per-source-type slot map.
// Products are created by registry bootstrap, enriched by discovery, and
// never deleted.
type Product struct {
	Brand       string
	Model       string
	ReleaseDate string
	Sources     map[string][]Source
}

// FullName returns the display name, e.g. "OnePlus 13".
func (p *Product) FullName() string {
	return p.Brand + " " + p.Model
}

// Key returns a stable lowercase identifier used for directories and logs.
func (p *Product) Key() string {
	return safeName(p.Brand) + "_" + safeName(p.Model)
}

// SourcesFor returns the slot contents for a source type, possibly empty.
func (p *Product) SourcesFor(name string) []Source {
	return p.Sources[name]
}

// HasSources reports whether the named slot already holds at least one source.
func (p *Product) HasSources(name string) bool {
	return len(p.Sources[name]) > 0
}

// AddSource appends src to the named slot unless its URL is already present
// anywhere on the product. It reports whether the source was added.
func (p *Product) AddSource(name string, src Source) bool {
	for _, list := range p.Sources {
		for _, existing := range list {
			if existing.URL == src.URL {
				return false
			}
		}
	}
	if p.Sources == nil {
		p.Sources = make(map[string][]Source)
	}
	p.Sources[name] = append(p.Sources[name], src)
	return true
}

// DistinctiveTokens returns the lowercase model-name tokens usable for
// word-boundary matching: tokens containing a digit, or alphabetic tokens
// longer than two characters. Short alphabetic tokens ("SE", "5G") are too
// ambiguous to identify a model on their own.
func (p *Product) DistinctiveTokens() []string {
	var tokens []string
	for _, tok := range strings.Fields(strings.ToLower(p.Model)) {
		if tok == "" {
			continue
		}
		if containsDigit(tok) || len(tok) > 2 {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

func containsDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// safeName lowers s and squashes every non-alphanumeric run to a single
// underscore so brand/model strings are safe as path segments.
func safeName(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
