package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/modelmatch/review-harvester/internal/fetch"
	"github.com/modelmatch/review-harvester/internal/metrics"
)

const googleEndpoint = "https://www.googleapis.com/customsearch/v1"

// Google queries the Programmable Search JSON API. It is the primary
// backend and runs under the search rate class.
type Google struct {
	client getter
	apiKey string
	cx     string
	base   string
}

// NewGoogle builds the primary backend; cx is the search engine ID that
// scopes which sites the engine indexes.
func NewGoogle(client getter, apiKey, cx string) *Google {
	return &Google{client: client, apiKey: apiKey, cx: cx, base: googleEndpoint}
}

// Name identifies the backend in logs and metrics.
func (g *Google) Name() string { return "google" }

// Search runs one query page. The API caps num at 10 and addresses pages
// with a 1-based start offset.
func (g *Google) Search(ctx context.Context, query string, page int) ([]Result, error) {
	if page < 1 {
		page = 1
	}
	params := url.Values{}
	params.Set("key", g.apiKey)
	params.Set("cx", g.cx)
	params.Set("q", query)
	params.Set("num", "10")
	params.Set("start", strconv.Itoa((page-1)*10+1))

	body, err := g.client.Get(ctx, g.base+"?"+params.Encode(), fetch.ClassSearch, nil)
	if err != nil {
		metrics.ObserveSearch(g.Name(), "error")
		return nil, fmt.Errorf("google search: %w", err)
	}

	var payload struct {
		Items []struct {
			Title string `json:"title"`
			Link  string `json:"link"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		metrics.ObserveSearch(g.Name(), "error")
		return nil, fmt.Errorf("decode google response: %w", err)
	}

	results := make([]Result, 0, len(payload.Items))
	for _, item := range payload.Items {
		if item.Link == "" {
			continue
		}
		results = append(results, Result{Title: item.Title, URL: item.Link})
	}
	if len(results) == 0 {
		metrics.ObserveSearch(g.Name(), "empty")
	} else {
		metrics.ObserveSearch(g.Name(), "results")
	}
	return results, nil
}
