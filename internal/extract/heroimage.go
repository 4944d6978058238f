package extract

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/modelmatch/review-harvester/internal/archive"
)

// heroImageSelectors locate the product photo when no og:image is present.
var heroImageSelectors = []string{
	".specs-photo-main img",
	".article-hero img",
}

// HeroImageURL finds the product photo inside an archived specification page
// and returns it in the archive's raw-asset form, ready for a binary fetch.
func HeroImageURL(body []byte) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", false
	}
	if u, ok := doc.Find(`meta[property="og:image"]`).First().Attr("content"); ok {
		if u = strings.TrimSpace(u); u != "" {
			return archive.RawAssetURL(u), true
		}
	}
	for _, sel := range heroImageSelectors {
		if u, ok := doc.Find(sel).First().Attr("src"); ok {
			if u = strings.TrimSpace(u); u != "" {
				return archive.RawAssetURL(u), true
			}
		}
	}
	return "", false
}
