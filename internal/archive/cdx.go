// Package archive talks to the Wayback Machine: the CDX capture index, the
// replay URL scheme, and the save-page-now escalation.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/modelmatch/review-harvester/internal/fetch"
	"github.com/modelmatch/review-harvester/internal/metrics"
)

const (
	cdxTimeLayout     = "20060102150405"
	defaultCDXBase    = "https://web.archive.org/cdx/search/cdx"
	defaultReplayBase = "https://web.archive.org"
)

// Capture is one archived copy of a URL listed by the CDX index.
type Capture struct {
	Timestamp string
	Original  string
	MimeType  string
	Length    int64
}

// Time parses the 14-digit capture timestamp.
func (c Capture) Time() (time.Time, error) {
	t, err := time.Parse(cdxTimeLayout, c.Timestamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse capture timestamp %q: %w", c.Timestamp, err)
	}
	return t, nil
}

// ReplayURL returns the playback address for the capture.
func (c Capture) ReplayURL() string {
	return fmt.Sprintf("%s/web/%s/%s", defaultReplayBase, c.Timestamp, c.Original)
}

// fetcher is the slice of the fetch client the index needs.
type fetcher interface {
	Fetch(ctx context.Context, rawURL string, class fetch.Class) ([]byte, error)
}

// CDXClient queries the capture index under the archive rate class.
type CDXClient struct {
	client fetcher
	base   string
	logger *zap.Logger
}

// NewCDXClient builds an index client.
func NewCDXClient(client fetcher, logger *zap.Logger) *CDXClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CDXClient{client: client, base: defaultCDXBase, logger: logger}
}

// Captures lists the HTTP-200 captures of pageURL from the given date
// onward, in index order (oldest first).
func (c *CDXClient) Captures(ctx context.Context, pageURL string, from time.Time) ([]Capture, error) {
	params := url.Values{}
	params.Set("url", pageURL)
	params.Set("output", "json")
	params.Set("filter", "statuscode:200")
	if !from.IsZero() {
		params.Set("from", from.Format("20060102"))
	}

	body, err := c.client.Fetch(ctx, c.base+"?"+params.Encode(), fetch.ClassArchive)
	if err != nil {
		metrics.ObserveSnapshotLookup("error")
		return nil, fmt.Errorf("cdx query %s: %w", pageURL, err)
	}
	return c.parse(body)
}

// parse decodes the row-array format: the first row names the columns, each
// further row is one capture. Malformed rows are skipped so one bad line
// cannot sink the lookup.
func (c *CDXClient) parse(body []byte) ([]Capture, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	var rows [][]string
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode cdx rows: %w", err)
	}
	if len(rows) <= 1 {
		return nil, nil
	}

	cols := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		cols[name] = i
	}
	tsIdx, okTS := cols["timestamp"]
	origIdx, okOrig := cols["original"]
	if !okTS || !okOrig {
		return nil, fmt.Errorf("cdx header missing timestamp/original: %v", rows[0])
	}
	mimeIdx, hasMime := cols["mimetype"]
	lenIdx, hasLen := cols["length"]

	captures := make([]Capture, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if tsIdx >= len(row) || origIdx >= len(row) {
			c.logger.Debug("short cdx row skipped", zap.Strings("row", row))
			continue
		}
		capture := Capture{Timestamp: row[tsIdx], Original: row[origIdx]}
		if len(capture.Timestamp) != len(cdxTimeLayout) || capture.Original == "" {
			c.logger.Debug("malformed cdx row skipped", zap.Strings("row", row))
			continue
		}
		if hasMime && mimeIdx < len(row) {
			capture.MimeType = row[mimeIdx]
		}
		if hasLen && lenIdx < len(row) {
			if n, err := strconv.ParseInt(row[lenIdx], 10, 64); err == nil {
				capture.Length = n
			}
		}
		captures = append(captures, capture)
	}
	return captures, nil
}
