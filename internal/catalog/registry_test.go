package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeRegistry(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "registry.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadRegistrySortsProducts(t *testing.T) {
	t.Parallel()

	path := writeRegistry(t, `{
		"OnePlus": {"13": {"urls": {}}},
		"Google": {
			"Pixel 9 Pro": {"urls": {}},
			"Pixel 9": {"releaseDate": "2024-08-22", "urls": {"specs": [{"url": "https://www.gsmarena.com/google_pixel_9-13220.php"}]}}
		}
	}`)

	reg, err := LoadRegistry(path, zap.NewNop())
	require.NoError(t, err)

	products := reg.Products()
	require.Len(t, products, 3)
	require.Equal(t, "Google", products[0].Brand)
	require.Equal(t, "Pixel 9", products[0].Model)
	require.Equal(t, "Pixel 9 Pro", products[1].Model)
	require.Equal(t, "OnePlus", products[2].Brand)

	require.Equal(t, "2024-08-22", products[0].ReleaseDate)
	require.True(t, products[0].HasSources("specs"))
	require.False(t, products[0].HasSources("review-techradar"))
}

func TestLoadRegistryMissingFileFails(t *testing.T) {
	t.Parallel()

	_, err := LoadRegistry(filepath.Join(t.TempDir(), "absent.json"), zap.NewNop())
	require.Error(t, err)
}

func TestLoadRegistrySkipsMalformedEntries(t *testing.T) {
	t.Parallel()

	path := writeRegistry(t, `{
		"Google": {
			"Pixel 9": {"urls": {}},
			"Pixel 8": "not an object"
		}
	}`)

	reg, err := LoadRegistry(path, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, reg.Products(), 1)
	require.Equal(t, "Pixel 9", reg.Products()[0].Model)
}

func TestRegistrySaveRoundTrip(t *testing.T) {
	t.Parallel()

	path := writeRegistry(t, `{"Google": {"Pixel 9": {"urls": {}}}}`)
	reg, err := LoadRegistry(path, zap.NewNop())
	require.NoError(t, err)

	p := reg.Products()[0]
	require.True(t, p.AddSource("specs", Source{
		URL:          "https://www.gsmarena.com/google_pixel_9-13220.php",
		Title:        "Google Pixel 9 - Full phone specifications",
		OriginDomain: "gsmarena.com",
	}))
	require.NoError(t, reg.Save())

	again, err := LoadRegistry(path, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, again.Products(), 1)
	got := again.Products()[0].SourcesFor("specs")
	require.Len(t, got, 1)
	require.Equal(t, "gsmarena.com", got[0].OriginDomain)
}

func TestUpdateReleaseDateOnlyFillsEmpty(t *testing.T) {
	t.Parallel()

	path := writeRegistry(t, `{"Google": {"Pixel 9": {"releaseDate": "2024-08-22", "urls": {}}}}`)
	reg, err := LoadRegistry(path, zap.NewNop())
	require.NoError(t, err)

	p := reg.Products()[0]
	require.NoError(t, reg.UpdateReleaseDate(p, "2025-01-01"))
	require.Equal(t, "2024-08-22", p.ReleaseDate)
}

func TestAddSourceDeduplicatesAcrossSlots(t *testing.T) {
	t.Parallel()

	p := &Product{Brand: "Google", Model: "Pixel 9"}
	src := Source{URL: "https://www.techradar.com/reviews/google-pixel-9"}
	require.True(t, p.AddSource("review-techradar", src))
	require.False(t, p.AddSource("review-techradar", src))
	require.False(t, p.AddSource("review-tomsguide", src))
	require.Len(t, p.SourcesFor("review-techradar"), 1)
}
