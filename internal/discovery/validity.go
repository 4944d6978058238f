package discovery

import (
	"net/url"
	"strings"

	"github.com/modelmatch/review-harvester/internal/catalog"
	"github.com/modelmatch/review-harvester/internal/search"
)

// blockedPathFragments mark a page as non-editorial: forums, comment feeds,
// news tickers, tag indexes, and comparison tools never hold review prose.
var blockedPathFragments = []string{
	"/forum",
	"/comments",
	"/news/",
	"/blog/",
	"/threads/",
	"/tag/",
	"/compare",
	"/glossary",
}

// variantSuffixes distinguish sibling models within a family. A candidate
// naming the queried model plus one of these is a page about a different
// phone.
var variantSuffixes = []string{"pro", "max", "ultra", "plus", "mini", "lite", "fe"}

// checkCandidate applies the validity rules in order and resolves the slot a
// candidate belongs to. A non-empty reason means rejection.
func checkCandidate(p *catalog.Product, res search.Result) (catalog.SourceType, string, string) {
	u, err := url.Parse(res.URL)
	if err != nil || u.Hostname() == "" {
		return catalog.SourceType{}, "", "unparseable url"
	}
	lowerPath := strings.ToLower(u.Path)
	for _, frag := range blockedPathFragments {
		if strings.Contains(lowerPath, frag) {
			return catalog.SourceType{}, "", "blocked path " + frag
		}
	}

	haystack := fold(res.URL) + " " + fold(res.Title)
	if !mentionsModel(haystack, p) {
		return catalog.SourceType{}, "", "brand and model absent"
	}
	if suffix := wrongVariant(haystack, p); suffix != "" {
		return catalog.SourceType{}, "", "wrong variant " + suffix
	}

	host := strings.ToLower(u.Hostname())
	if !catalog.AllowedDomain(host) {
		return catalog.SourceType{}, "", "domain not allowlisted"
	}
	st, ok := slotFor(host, lowerPath)
	if !ok {
		return catalog.SourceType{}, "", "no slot for domain"
	}
	return st, host, ""
}

// slotFor maps a host to its source type. The spec site publishes both a
// spec sheet and a review; its review URLs carry "review" in the path.
func slotFor(host, lowerPath string) (catalog.SourceType, bool) {
	types := catalog.TypesForDomain(host)
	if len(types) == 0 {
		return catalog.SourceType{}, false
	}
	if len(types) == 1 {
		return types[0], true
	}
	wantReview := strings.Contains(lowerPath, "review")
	for _, st := range types {
		if (st.Kind == catalog.KindReview) == wantReview {
			return st, true
		}
	}
	return types[0], true
}

// mentionsModel reports whether the candidate names the product: brand plus
// full model, or brand plus the model's first token, spaced or concatenated.
func mentionsModel(haystack string, p *catalog.Product) bool {
	brand := fold(p.Brand)
	model := fold(p.Model)
	if brand == "" || model == "" {
		return false
	}
	first := strings.Fields(model)[0]
	needles := []string{
		brand + " " + model,
		brand + strings.ReplaceAll(model, " ", ""),
		brand + " " + first,
		brand + first,
	}
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}

// wrongVariant reports the variant suffix that marks the candidate as a
// sibling model, or "" when none applies. Suffixes already part of the
// product's own model name are never wrong.
func wrongVariant(haystack string, p *catalog.Product) string {
	model := fold(p.Model)
	if model == "" {
		return ""
	}
	own := make(map[string]bool)
	for _, tok := range strings.Fields(model) {
		own[tok] = true
	}
	padded := " " + haystack + " "
	compact := strings.ReplaceAll(model, " ", "")
	for _, suffix := range variantSuffixes {
		if own[suffix] {
			continue
		}
		if strings.Contains(padded, " "+model+" "+suffix+" ") ||
			strings.Contains(padded, " "+compact+suffix+" ") {
			return suffix
		}
	}
	return ""
}

// fold lowercases s and squashes every non-alphanumeric run to one space so
// "OnePlus-13_Review" and "oneplus 13 review" compare equal.
func fold(s string) string {
	var b strings.Builder
	pendingSpace := false
	for _, r := range strings.ToLower(s) {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if isAlnum {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
			continue
		}
		pendingSpace = true
	}
	return b.String()
}
