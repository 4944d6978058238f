package extract

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelmatch/review-harvester/internal/catalog"
)

func mustType(t *testing.T, name string) catalog.SourceType {
	t.Helper()
	st, ok := catalog.SourceTypeByName(name)
	require.True(t, ok, "unknown source type %s", name)
	return st
}

func prose(n int) string {
	const sentence = "The camera system impresses in daylight, with punchy colors and reliable autofocus. Battery life easily stretches into a second day. "
	return strings.TrimSpace(strings.Repeat(sentence, n))
}

func TestExtractUsesDomainSelector(t *testing.T) {
	article := prose(12)
	page := fmt.Sprintf(`<html><head><title>Acme One review</title></head><body>
<nav>Home News Reviews Deals</nav>
<div id="wm-ipp-base">INTERNET ARCHIVE Wayback Machine toolbar</div>
<div id="article-body"><p>%s</p></div>
<footer>About us. Contact. Privacy policy.</footer>
</body></html>`, article)

	e := NewExtractor(nil)
	text, err := e.Extract([]byte(page),
		"https://web.archive.org/web/20230115103000/https://www.techradar.com/reviews/acme-one",
		mustType(t, "review-techradar"))
	require.NoError(t, err)
	assert.Contains(t, text, "camera system impresses")
	assert.NotContains(t, text, "Wayback")
	assert.NotContains(t, text, "Home News")
}

func TestExtractSpecTableViaSelector(t *testing.T) {
	specs := prose(4)
	page := fmt.Sprintf(`<html><body>
<div id="review-body"></div>
<div id="specs-list"><table><tr><td>%s</td></tr></table></div>
</body></html>`, specs)

	e := NewExtractor(nil)
	text, err := e.Extract([]byte(page),
		"https://web.archive.org/web/20230115103000/https://www.gsmarena.com/acme_one-12345.php",
		mustType(t, "specs"))
	require.NoError(t, err)
	assert.Contains(t, text, "camera system impresses")
}

func TestExtractHeuristicPrefersContentOverChrome(t *testing.T) {
	article := prose(3)
	page := fmt.Sprintf(`<html><body>
<div class="sidebar">trending phones best deals hot topics popular brands latest uploads weekly poll archive</div>
<div class="article-body">%s</div>
</body></html>`, article)

	e := NewExtractor(nil)
	text, err := e.Extract([]byte(page), "https://example.com/acme-one-review", mustType(t, "review-techradar"))
	require.NoError(t, err)
	assert.Contains(t, text, "camera system impresses")
	assert.NotContains(t, text, "trending phones")
}

func TestExtractStripsWaybackChromeBeforeScoring(t *testing.T) {
	toolbar := prose(10)
	page := fmt.Sprintf(`<html><body>
<div id="wm-ipp">%s</div>
<p>%s</p>
</body></html>`, toolbar, prose(1))

	e := NewExtractor(nil)
	text, err := e.Extract([]byte(page), "https://example.com/acme-one-review", mustType(t, "review-techradar"))
	require.NoError(t, err)
	assert.Equal(t, prose(1), text)
}

func TestExtractNormalizesWhitespace(t *testing.T) {
	page := `<html><body><p>The   display gets
	remarkably		bright outdoors,  and the glass resists scratches well.</p></body></html>`

	e := NewExtractor(nil)
	text, err := e.Extract([]byte(page), "https://example.com/acme-one-review", mustType(t, "review-techradar"))
	require.NoError(t, err)
	assert.Equal(t, "The display gets remarkably bright outdoors, and the glass resists scratches well.", text)
}

func TestExtractNoContent(t *testing.T) {
	e := NewExtractor(nil)
	_, err := e.Extract([]byte("<html><body><p>tiny</p></body></html>"),
		"https://example.com/x", mustType(t, "review-techradar"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoContent))
}

func TestExtractCapsLength(t *testing.T) {
	page := fmt.Sprintf(`<html><body><div class="article-body">%s</div></body></html>`, prose(900))

	e := NewExtractor(nil)
	text, err := e.Extract([]byte(page), "https://example.com/acme-one-review", mustType(t, "review-techradar"))
	require.NoError(t, err)
	assert.LessOrEqual(t, len(text), maxTextLen)
}

func TestSelectorsForSubdomain(t *testing.T) {
	assert.NotEmpty(t, selectorsFor("www.gsmarena.com"))
	assert.NotEmpty(t, selectorsFor("gsmarena.com"))
	assert.Empty(t, selectorsFor("example.com"))
}

func TestOriginHost(t *testing.T) {
	assert.Equal(t, "www.phonearena.com",
		originHost("https://web.archive.org/web/20230115103000/https://www.phonearena.com/reviews/x"))
	assert.Equal(t, "example.com", originHost("https://example.com/a"))
}

func TestTruncateKeepsRuneBoundary(t *testing.T) {
	s := strings.Repeat("é", 10)
	got := truncate(s, 5)
	assert.True(t, len(got) <= 5)
	assert.Equal(t, strings.Repeat("é", 2), got)
}
