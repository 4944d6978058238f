package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/modelmatch/review-harvester/internal/fetch"
	"github.com/modelmatch/review-harvester/internal/metrics"
)

const braveEndpoint = "https://api.search.brave.com/res/v1/web/search"

// Brave queries the Brave Search API. It serves as the fallback backend and
// runs under its own rate class so fallback traffic never competes with the
// primary engine's quota.
type Brave struct {
	client getter
	apiKey string
	base   string
}

// NewBrave builds the fallback backend.
func NewBrave(client getter, apiKey string) *Brave {
	return &Brave{client: client, apiKey: apiKey, base: braveEndpoint}
}

// Name identifies the backend in logs and metrics.
func (b *Brave) Name() string { return "brave" }

// Search runs one query page. Brave addresses pages with a 0-based offset.
func (b *Brave) Search(ctx context.Context, query string, page int) ([]Result, error) {
	if page < 1 {
		page = 1
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("count", "10")
	params.Set("offset", strconv.Itoa(page-1))

	header := http.Header{}
	header.Set("Accept", "application/json")
	header.Set("X-Subscription-Token", b.apiKey)

	body, err := b.client.Get(ctx, b.base+"?"+params.Encode(), fetch.ClassSearchFallback, header)
	if err != nil {
		metrics.ObserveSearch(b.Name(), "error")
		return nil, fmt.Errorf("brave search: %w", err)
	}

	var payload struct {
		Web struct {
			Results []struct {
				Title string `json:"title"`
				URL   string `json:"url"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		metrics.ObserveSearch(b.Name(), "error")
		return nil, fmt.Errorf("decode brave response: %w", err)
	}

	results := make([]Result, 0, len(payload.Web.Results))
	for _, item := range payload.Web.Results {
		if item.URL == "" {
			continue
		}
		results = append(results, Result{Title: item.Title, URL: item.URL})
	}
	if len(results) == 0 {
		metrics.ObserveSearch(b.Name(), "empty")
	} else {
		metrics.ObserveSearch(b.Name(), "results")
	}
	return results, nil
}
