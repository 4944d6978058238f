package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/modelmatch/review-harvester/internal/metrics"
)

// Config tunes the shared fetch client.
type Config struct {
	UserAgent      string
	RequestTimeout time.Duration
	RetryBudget    uint64
	MaxBodyBytes   int64
	Intervals      Intervals
}

func (c *Config) applyDefaults() {
	if c.UserAgent == "" {
		c.UserAgent = "review-harvester/1.0 (+https://github.com/modelmatch/review-harvester)"
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 15 * time.Second
	}
	if c.RetryBudget == 0 {
		c.RetryBudget = 3
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 5 << 20
	}
}

// Client issues rate-limited requests with transparent retry of transient
// failures: connection errors, 429, and the 5xx family. Other 4xx responses
// surface immediately as *StatusError.
type Client struct {
	cfg     Config
	limiter *Limiter
	httpc   *http.Client
	pages   *pageFetcher
	logger  *zap.Logger
}

// NewClient builds the shared fetcher used by every external call the
// pipeline makes.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	pages, err := newPageFetcher(cfg)
	if err != nil {
		return nil, fmt.Errorf("init page fetcher: %w", err)
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.RequestTimeout,
		ForceAttemptHTTP2:     true,
	}

	return &Client{
		cfg:     cfg,
		limiter: NewLimiter(cfg.Intervals),
		// Deadlines come from the per-call context so FetchBinary can
		// override them; the transport still bounds header waits.
		httpc:  &http.Client{Transport: transport},
		pages:  pages,
		logger: logger,
	}, nil
}

// Fetch retrieves rawURL under the given class and returns the body.
func (c *Client) Fetch(ctx context.Context, rawURL string, class Class) ([]byte, error) {
	page, err := c.roundTrip(ctx, http.MethodGet, rawURL, class, nil, nil, c.cfg.RequestTimeout)
	if err != nil {
		return nil, err
	}
	return page.Body, nil
}

// Get is Fetch with extra request headers, for authenticated APIs.
func (c *Client) Get(ctx context.Context, rawURL string, class Class, header http.Header) ([]byte, error) {
	page, err := c.roundTrip(ctx, http.MethodGet, rawURL, class, header, nil, c.cfg.RequestTimeout)
	if err != nil {
		return nil, err
	}
	return page.Body, nil
}

// PostForm sends a urlencoded form under the class gate. The archive save
// escalation is the only caller.
func (c *Client) PostForm(ctx context.Context, rawURL string, class Class, header http.Header, form url.Values) ([]byte, error) {
	page, err := c.roundTrip(ctx, http.MethodPost, rawURL, class, header, form, c.cfg.RequestTimeout)
	if err != nil {
		return nil, err
	}
	return page.Body, nil
}

// FetchBinary retrieves a binary asset with a per-call timeout override,
// returning the body and its Content-Type. Image assets can dwarf article
// pages, hence the separate deadline.
func (c *Client) FetchBinary(ctx context.Context, rawURL string, timeout time.Duration) ([]byte, string, error) {
	if timeout <= 0 {
		timeout = c.cfg.RequestTimeout
	}
	page, err := c.roundTrip(ctx, http.MethodGet, rawURL, ClassScrape, nil, nil, timeout)
	if err != nil {
		return nil, "", err
	}
	return page.Body, page.ContentType, nil
}

// FetchPage retrieves an HTML document through the page collector under the
// scrape class. A capture served with a non-HTML Content-Type returns
// ErrUnsupportedContentType, which callers treat as permanent for the URL.
func (c *Client) FetchPage(ctx context.Context, rawURL string) (Page, error) {
	page, err := c.withRetry(ctx, ClassScrape, rawURL, func(ctx context.Context) (Page, error) {
		p, status, err := c.pages.fetch(ctx, rawURL)
		if err != nil {
			return Page{}, classifyFetchError(ctx, rawURL, status, err)
		}
		metrics.ObserveFetch(string(ClassScrape), statusClass(p.StatusCode), rawURL, len(p.Body))
		return p, nil
	})
	if err != nil {
		return Page{}, err
	}
	if !isHTMLContentType(page.ContentType) {
		return page, fmt.Errorf("%s served %q: %w", rawURL, page.ContentType, ErrUnsupportedContentType)
	}
	return page, nil
}

// withRetry runs op under the class gate with the configured retry budget.
// op reports terminal failures wrapped in backoff.Permanent; everything else
// is retried.
func (c *Client) withRetry(ctx context.Context, class Class, rawURL string, op func(ctx context.Context) (Page, error)) (Page, error) {
	var page Page
	attempt := 0
	operation := func() error {
		if err := c.limiter.Wait(ctx, class); err != nil {
			return backoff.Permanent(err)
		}
		if attempt > 0 {
			metrics.ObserveFetchRetry(string(class))
			c.logger.Debug("retrying fetch",
				zap.String("url", rawURL),
				zap.String("class", string(class)),
				zap.Int("attempt", attempt))
		}
		attempt++

		p, err := op(ctx)
		if err != nil {
			return err
		}
		page = p
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.cfg.RetryBudget), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		return Page{}, err
	}
	return page, nil
}

func (c *Client) roundTrip(ctx context.Context, method, rawURL string, class Class, header http.Header, form url.Values, timeout time.Duration) (Page, error) {
	return c.withRetry(ctx, class, rawURL, func(ctx context.Context) (Page, error) {
		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		var body io.Reader
		if form != nil {
			body = strings.NewReader(form.Encode())
		}
		req, err := http.NewRequestWithContext(reqCtx, method, rawURL, body)
		if err != nil {
			return Page{}, backoff.Permanent(fmt.Errorf("build request %s: %w", rawURL, err))
		}
		req.Header.Set("User-Agent", c.cfg.UserAgent)
		if form != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
		for k, vals := range header {
			for _, v := range vals {
				req.Header.Add(k, v)
			}
		}

		resp, err := c.httpc.Do(req)
		if err != nil {
			return Page{}, classifyFetchError(ctx, rawURL, 0, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			metrics.ObserveFetch(string(class), statusClass(resp.StatusCode), rawURL, 0)
			return Page{}, classifyFetchError(ctx, rawURL, resp.StatusCode, nil)
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes))
		if err != nil {
			return Page{}, classifyFetchError(ctx, rawURL, 0, fmt.Errorf("read body: %w", err))
		}
		metrics.ObserveFetch(string(class), statusClass(resp.StatusCode), rawURL, len(data))

		return Page{
			URL:         rawURL,
			FinalURL:    resp.Request.URL.String(),
			StatusCode:  resp.StatusCode,
			ContentType: resp.Header.Get("Content-Type"),
			Body:        data,
		}, nil
	})
}

// classifyFetchError decides retryability. status carries the HTTP code when
// the transport produced a response; zero means a connection-level failure.
func classifyFetchError(ctx context.Context, rawURL string, status int, err error) error {
	if status > 0 {
		if retryableStatus(status) {
			return fmt.Errorf("fetch %s: status %d", rawURL, status)
		}
		return backoff.Permanent(&StatusError{URL: rawURL, StatusCode: status})
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return backoff.Permanent(ctxErr)
	}
	if err == nil {
		err = fmt.Errorf("fetch %s: unknown failure", rawURL)
	}
	return fmt.Errorf("fetch %s: %w", rawURL, err)
}
