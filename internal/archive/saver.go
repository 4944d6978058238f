package archive

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/modelmatch/review-harvester/internal/fetch"
	"github.com/modelmatch/review-harvester/internal/metrics"
)

const defaultSaveBase = "https://web.archive.org/save"

type poster interface {
	Get(ctx context.Context, rawURL string, class fetch.Class, header http.Header) ([]byte, error)
	PostForm(ctx context.Context, rawURL string, class fetch.Class, header http.Header, form url.Values) ([]byte, error)
}

// Saver asks the archive to capture a live URL. With API credentials it uses
// the authenticated capture endpoint; without them it falls back to the
// anonymous save path, which is best-effort and more aggressively throttled.
type Saver struct {
	client    poster
	base      string
	accessKey string
	secretKey string
	logger    *zap.Logger
}

// NewSaver builds a Saver. Keys may be empty, in which case save requests go
// through the anonymous endpoint.
func NewSaver(client poster, accessKey, secretKey string, logger *zap.Logger) *Saver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Saver{
		client:    client,
		base:      defaultSaveBase,
		accessKey: accessKey,
		secretKey: secretKey,
		logger:    logger,
	}
}

// RequestSave submits pageURL for archival. The capture itself completes
// asynchronously on the archive's side; success here only means the request
// was accepted.
func (s *Saver) RequestSave(ctx context.Context, pageURL string) error {
	var err error
	if s.accessKey != "" && s.secretKey != "" {
		err = s.saveAuthenticated(ctx, pageURL)
	} else {
		err = s.saveAnonymous(ctx, pageURL)
	}
	if err != nil {
		return fmt.Errorf("requesting archive save for %s: %w", pageURL, err)
	}
	metrics.ObserveArchiveSaveRequest()
	s.logger.Info("archive save requested", zap.String("url", pageURL))
	return nil
}

func (s *Saver) saveAuthenticated(ctx context.Context, pageURL string) error {
	form := url.Values{}
	form.Set("url", pageURL)
	form.Set("capture_all", "1")

	header := http.Header{}
	header.Set("Accept", "application/json")
	header.Set("Authorization", fmt.Sprintf("LOW %s:%s", s.accessKey, s.secretKey))

	_, err := s.client.PostForm(ctx, s.base, fetch.ClassArchive, header, form)
	return err
}

func (s *Saver) saveAnonymous(ctx context.Context, pageURL string) error {
	_, err := s.client.Get(ctx, s.base+"/"+pageURL, fetch.ClassArchive, nil)
	return err
}
