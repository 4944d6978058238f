package fetch

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
)

// pageFetcher wraps a colly collector for article-page fetches. Cloning the
// collector per request keeps response handlers isolated while reusing the
// transport and its connection pool.
type pageFetcher struct {
	base *colly.Collector
}

func newPageFetcher(cfg Config) (*pageFetcher, error) {
	base := colly.NewCollector(
		colly.Async(true),
		colly.UserAgent(cfg.UserAgent),
		colly.MaxBodySize(int(cfg.MaxBodyBytes)),
		// Replay URLs are served by the archive; origin robots files do
		// not govern them, and retries must be able to revisit a URL.
		colly.IgnoreRobotsTxt(),
		colly.AllowURLRevisit(),
	)
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.RequestTimeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(cfg.RequestTimeout)
	return &pageFetcher{base: base}, nil
}

type pageResult struct {
	page   Page
	status int
	err    error
}

// fetch retrieves one page. The returned status is non-zero when the server
// answered with an HTTP error, zero for connection-level failures.
func (f *pageFetcher) fetch(ctx context.Context, rawURL string) (Page, int, error) {
	collector := f.base.Clone()
	resultCh := make(chan pageResult, 1)
	var once sync.Once
	send := func(res pageResult) {
		once.Do(func() {
			resultCh <- res
		})
	}

	collector.OnResponse(func(r *colly.Response) {
		contentType := ""
		if r.Headers != nil {
			contentType = r.Headers.Get("Content-Type")
		}
		send(pageResult{page: Page{
			URL:         rawURL,
			FinalURL:    r.Request.URL.String(),
			StatusCode:  r.StatusCode,
			ContentType: contentType,
			Body:        append([]byte{}, r.Body...),
		}})
	})

	collector.OnError(func(r *colly.Response, err error) {
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		if err == nil {
			err = errors.New("unknown colly error")
		}
		send(pageResult{status: status, err: err})
	})

	if err := collector.Visit(rawURL); err != nil {
		return Page{}, 0, err
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return Page{}, 0, err
		}
		return res.page, res.status, res.err
	default:
		return Page{}, 0, errors.New("page fetch produced no result")
	}
}
