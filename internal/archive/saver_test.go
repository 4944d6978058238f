package archive

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelmatch/review-harvester/internal/fetch"
)

type fakePoster struct {
	method string
	url    string
	form   url.Values
	header http.Header
	class  fetch.Class
	err    error
}

func (f *fakePoster) Get(_ context.Context, rawURL string, class fetch.Class, header http.Header) ([]byte, error) {
	f.method = http.MethodGet
	f.url = rawURL
	f.header = header
	f.class = class
	return nil, f.err
}

func (f *fakePoster) PostForm(_ context.Context, rawURL string, class fetch.Class, header http.Header, form url.Values) ([]byte, error) {
	f.method = http.MethodPost
	f.url = rawURL
	f.form = form
	f.header = header
	f.class = class
	return nil, f.err
}

func TestRequestSaveAuthenticated(t *testing.T) {
	fp := &fakePoster{}
	s := NewSaver(fp, "ak", "sk", nil)

	err := s.RequestSave(context.Background(), "https://example.com/acme-one-review")
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, fp.method)
	assert.Equal(t, defaultSaveBase, fp.url)
	assert.Equal(t, "https://example.com/acme-one-review", fp.form.Get("url"))
	assert.Equal(t, "1", fp.form.Get("capture_all"))
	assert.Equal(t, "LOW ak:sk", fp.header.Get("Authorization"))
	assert.Equal(t, "application/json", fp.header.Get("Accept"))
	assert.Equal(t, fetch.ClassArchive, fp.class)
}

func TestRequestSaveAnonymous(t *testing.T) {
	fp := &fakePoster{}
	s := NewSaver(fp, "", "", nil)

	err := s.RequestSave(context.Background(), "https://example.com/acme-one-review")
	require.NoError(t, err)

	assert.Equal(t, http.MethodGet, fp.method)
	assert.Equal(t, defaultSaveBase+"/https://example.com/acme-one-review", fp.url)
	assert.Equal(t, fetch.ClassArchive, fp.class)
}

func TestRequestSaveError(t *testing.T) {
	fp := &fakePoster{err: errors.New("rejected")}
	s := NewSaver(fp, "ak", "sk", nil)

	err := s.RequestSave(context.Background(), "https://example.com/acme-one-review")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected")
	assert.Contains(t, err.Error(), "https://example.com/acme-one-review")
}
