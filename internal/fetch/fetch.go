// Package fetch issues HTTP requests against the external services the
// pipeline depends on. Every request belongs to a resource class with its own
// pacing gate, and transient failures are retried with exponential backoff
// before an error ever reaches a caller.
package fetch

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Class identifies one of the request pools with an independent pacing gate.
type Class string

// Resource classes. Each external service gets its own minimum
// inter-request interval so a burst against one never starves or hammers
// another.
const (
	ClassSearch         Class = "search"
	ClassArchive        Class = "archive"
	ClassScrape         Class = "scrape"
	ClassSearchFallback Class = "search_fallback"
)

// Page is one fetched document.
type Page struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        []byte
}

// StatusError reports a non-retryable HTTP response: any 4xx other than 429.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
}

// ErrUnsupportedContentType marks a document whose Content-Type can never
// yield article text (PDF, image, binary). The condition is permanent for
// the URL.
var ErrUnsupportedContentType = errors.New("unsupported content type")

func isHTMLContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	if ct == "" {
		// Archived captures occasionally replay without a Content-Type;
		// let extraction decide.
		return true
	}
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}

// retryableStatus reports whether the response status warrants another
// attempt: 429 and the 5xx family are transient, everything else is not.
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code < 600)
}

func statusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "other"
	}
}
