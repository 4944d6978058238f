package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/modelmatch/review-harvester/internal/catalog"
)

// Rejection reasons recorded in the extraction-failure cache.
const (
	ReasonTooShort         = "too_short"
	ReasonTooFewWords      = "too_few_words"
	ReasonNoProductMention = "no_product_mention"
)

// ValidationError explains why extracted text was rejected. Reason is a
// stable token; Detail carries the specifics for logs and triage.
type ValidationError struct {
	Reason string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("content rejected (%s): %s", e.Reason, e.Detail)
}

// Validate accepts text when it clears the slot's length and word floors and
// actually talks about the product: the brand, or a distinctive model token,
// must appear at a true word boundary. Substring hits inside longer
// alphanumeric runs ("13" inside "130", "OnePlus13") do not count.
func Validate(text string, product *catalog.Product, st catalog.SourceType) error {
	if len(text) < st.MinChars {
		return &ValidationError{
			Reason: ReasonTooShort,
			Detail: fmt.Sprintf("%d chars, need %d", len(text), st.MinChars),
		}
	}
	words := len(strings.Fields(text))
	if words < st.MinWords {
		return &ValidationError{
			Reason: ReasonTooFewWords,
			Detail: fmt.Sprintf("%d words, need %d", words, st.MinWords),
		}
	}
	if !mentionsProduct(text, product) {
		return &ValidationError{
			Reason: ReasonNoProductMention,
			Detail: fmt.Sprintf("%s not found at a word boundary", product.FullName()),
		}
	}
	return nil
}

func mentionsProduct(text string, product *catalog.Product) bool {
	lower := strings.ToLower(text)
	if wordBoundaryMatch(lower, strings.ToLower(product.Brand)) {
		return true
	}
	for _, tok := range product.DistinctiveTokens() {
		if wordBoundaryMatch(lower, tok) {
			return true
		}
	}
	return false
}

// wordBoundaryMatch reports whether needle occurs in text with no adjacent
// alphanumeric characters. Both arguments must already be lowercase.
func wordBoundaryMatch(text, needle string) bool {
	if needle == "" {
		return false
	}
	re, err := regexp.Compile(`(?:^|[^a-z0-9])` + regexp.QuoteMeta(needle) + `(?:[^a-z0-9]|$)`)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}
