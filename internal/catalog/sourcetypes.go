package catalog

import (
	"fmt"
	"strings"
)

// Kind separates terse specification pages from long-form reviews; validation
// floors and capture selection differ between the two.
type Kind string

// Supported source kinds.
const (
	KindSpec   Kind = "spec"
	KindReview Kind = "review"
)

// SourceType is one named slot in a product's source map. The ordinal gives
// content files a stable prefix; MinChars/MinWords are the validation floors
// for text extracted from this slot, tuned per publisher.
type SourceType struct {
	Name     string
	Ordinal  int
	Domain   string
	Kind     Kind
	Priority bool
	MinChars int
	MinWords int
}

// ContentFileName returns the artifact name for this slot, e.g.
// "04_review-techradar.txt".
func (st SourceType) ContentFileName() string {
	return fmt.Sprintf("%02d_%s.txt", st.Ordinal, st.Name)
}

// SpecSiteDomain is the canonical specification publisher queried by the
// discovery foundation pass.
const SpecSiteDomain = "gsmarena.com"

// sourceTypes is the authoritative slot table. Order matters: it fixes file
// ordinals and the sequence in which slots are discovered and scraped.
var sourceTypes = []SourceType{
	{Name: "specs", Ordinal: 1, Domain: "gsmarena.com", Kind: KindSpec, Priority: true, MinChars: 350, MinWords: 60},
	{Name: "review-gsmarena", Ordinal: 2, Domain: "gsmarena.com", Kind: KindReview, Priority: true, MinChars: 1500, MinWords: 250},
	{Name: "review-phonearena", Ordinal: 3, Domain: "phonearena.com", Kind: KindReview, Priority: true, MinChars: 1200, MinWords: 200},
	{Name: "review-techradar", Ordinal: 4, Domain: "techradar.com", Kind: KindReview, Priority: true, MinChars: 1200, MinWords: 200},
	{Name: "review-tomsguide", Ordinal: 5, Domain: "tomsguide.com", Kind: KindReview, MinChars: 1200, MinWords: 200},
	{Name: "review-androidauthority", Ordinal: 6, Domain: "androidauthority.com", Kind: KindReview, MinChars: 1200, MinWords: 200},
	{Name: "review-trustedreviews", Ordinal: 7, Domain: "trustedreviews.com", Kind: KindReview, MinChars: 1200, MinWords: 200},
	{Name: "review-notebookcheck", Ordinal: 8, Domain: "notebookcheck.net", Kind: KindReview, MinChars: 2000, MinWords: 330},
	{Name: "review-dxomark", Ordinal: 9, Domain: "dxomark.com", Kind: KindReview, MinChars: 700, MinWords: 120},
}

// SourceTypes returns the slot table in ordinal order.
func SourceTypes() []SourceType {
	out := make([]SourceType, len(sourceTypes))
	copy(out, sourceTypes)
	return out
}

// SourceTypeByName looks a slot up by its registry key.
func SourceTypeByName(name string) (SourceType, bool) {
	for _, st := range sourceTypes {
		if st.Name == name {
			return st, true
		}
	}
	return SourceType{}, false
}

// ReviewDomains returns the distinct publisher domains of review slots, in
// table order. Discovery uses these for the dragnet OR-query.
func ReviewDomains() []string {
	var out []string
	seen := make(map[string]bool)
	for _, st := range sourceTypes {
		if st.Kind != KindReview || seen[st.Domain] {
			continue
		}
		seen[st.Domain] = true
		out = append(out, st.Domain)
	}
	return out
}

// AllowedDomain reports whether host belongs to a known-good publisher.
// Subdomains of a listed domain are allowed ("m.gsmarena.com").
func AllowedDomain(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for _, st := range sourceTypes {
		if host == st.Domain || strings.HasSuffix(host, "."+st.Domain) {
			return true
		}
	}
	return false
}

// TypesForDomain returns every slot published by host, in table order.
// Most publishers carry a single slot; the spec site carries both the spec
// page and its own review.
func TypesForDomain(host string) []SourceType {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	var out []SourceType
	for _, st := range sourceTypes {
		if host == st.Domain || strings.HasSuffix(host, "."+st.Domain) {
			out = append(out, st)
		}
	}
	return out
}
