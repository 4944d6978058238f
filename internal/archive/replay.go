package archive

import "regexp"

// replayRe splits a playback URL into host, /web/<timestamp>, an optional
// rendering modifier ("im_", "id_", ...) and the originally archived URL.
var replayRe = regexp.MustCompile(`^(https?://[^/]+)?(/web/\d{14})([a-z]{2}_)?/(.+)$`)

// OriginalURL recovers the originally archived URL from a replay URL. It
// reports false when replayURL is not in playback form.
func OriginalURL(replayURL string) (string, bool) {
	m := replayRe.FindStringSubmatch(replayURL)
	if m == nil {
		return "", false
	}
	return m[4], true
}

// RawAssetURL rewrites a replay URL into its im_ form, which serves the
// archived bytes without playback chrome. Root-relative /web/ references,
// the form the archive rewrites asset URLs into, are made absolute.
// Anything that is not a replay URL passes through unchanged.
func RawAssetURL(rawURL string) string {
	m := replayRe.FindStringSubmatch(rawURL)
	if m == nil {
		return rawURL
	}
	base := m[1]
	if base == "" {
		base = defaultReplayBase
	}
	return base + m[2] + "im_/" + m[4]
}
