// Package extract turns archived publisher HTML into plain review text and
// decides whether that text is good enough to keep.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/modelmatch/review-harvester/internal/archive"
	"github.com/modelmatch/review-harvester/internal/catalog"
)

// ErrNoContent reports that a page yielded no usable text through either the
// selector table or the heuristic fallback.
var ErrNoContent = errors.New("no extractable content")

const (
	// maxTextLen caps stored article text. Archived pages occasionally
	// replay with duplicated bodies; anything past this is noise.
	maxTextLen = 100000

	// minNodeChars is the floor below which a node is not worth scoring.
	minNodeChars = 50
)

// waybackChrome matches the playback toolbar and other elements the archive
// injects around the original page.
const waybackChrome = "#wm-ipp-base, #wm-ipp, #wm-ipp-print, #donato, .wb-autocomplete-suggestions"

// nonContent matches tags that never carry article text.
const nonContent = "script, style, noscript, nav, footer, header, aside, iframe"

// domainSelectors maps publisher domains to article-body selectors, tried in
// order. The spec site lists its spec table separately from its review body.
var domainSelectors = map[string][]string{
	"gsmarena.com":         {"#review-body", "#specs-list"},
	"phonearena.com":       {".review-body", "article .content-body", ".article__body"},
	"techradar.com":        {"#article-body", ".text-copy"},
	"tomsguide.com":        {"#article-body", ".text-copy"},
	"androidauthority.com": {".post-content", "article"},
	"trustedreviews.com":   {".article-content", "article"},
	"notebookcheck.net":    {".ttcl_0", "article", "#content"},
	"dxomark.com":          {".post-content", "article"},
}

var contentClassKeywords = []string{"article", "content", "body", "review", "post", "main", "text", "story"}

var chromeClassKeywords = []string{"footer", "nav", "sidebar", "menu", "comment", "share", "related", "promo", "banner"}

// Extractor produces cleaned plain text from archived HTML.
type Extractor struct {
	logger *zap.Logger
}

// NewExtractor builds an Extractor.
func NewExtractor(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

// Extract cleans body and returns its article text. pageURL may be a replay
// URL; the publisher domain is recovered from it to pick a selector set. The
// selector path wins only when it yields more than the slot's minimum
// characters; otherwise the highest-scoring text node wins.
func (e *Extractor) Extract(body []byte, pageURL string, st catalog.SourceType) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find(waybackChrome).Remove()
	doc.Find(nonContent).Remove()

	host := originHost(pageURL)
	for _, sel := range selectorsFor(host) {
		text := normalizeText(doc.Find(sel).First().Text())
		if len(text) > st.MinChars {
			e.logger.Debug("extracted via selector",
				zap.String("host", host),
				zap.String("selector", sel),
				zap.Int("chars", len(text)))
			return truncate(text, maxTextLen), nil
		}
	}

	text := e.bestScoringText(doc)
	if text == "" {
		return "", ErrNoContent
	}
	e.logger.Debug("extracted via heuristic",
		zap.String("host", host),
		zap.Int("chars", len(text)))
	return truncate(text, maxTextLen), nil
}

// bestScoringText scores every candidate text node and returns the winner.
// Length dominates; commas and periods reward prose over link farms; class
// names nudge article containers up and page chrome down.
func (e *Extractor) bestScoringText(doc *goquery.Document) string {
	var best string
	bestScore := 0.0
	doc.Find("p, div, article, section").Each(func(_ int, s *goquery.Selection) {
		text := normalizeText(s.Text())
		if len(text) < minNodeChars {
			return
		}
		score := 0.5 * float64(len(text))
		score += 5 * float64(strings.Count(text, ","))
		score += 5 * float64(strings.Count(text, "."))
		class := strings.ToLower(s.AttrOr("class", ""))
		if containsAny(class, contentClassKeywords) {
			score += 50
		}
		if containsAny(class, chromeClassKeywords) {
			score -= 100
		}
		if score > bestScore {
			bestScore = score
			best = text
		}
	})
	return best
}

func selectorsFor(host string) []string {
	for domain, sels := range domainSelectors {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return sels
		}
	}
	return nil
}

// originHost returns the publisher host for pageURL, unwrapping the replay
// form when needed.
func originHost(pageURL string) string {
	raw := pageURL
	if orig, ok := archive.OriginalURL(pageURL); ok {
		raw = orig
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func containsAny(s string, keywords []string) bool {
	if s == "" {
		return false
	}
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// truncate cuts s at limit without splitting a rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
