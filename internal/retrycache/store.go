// Package retrycache persists what has been tried and why it failed, so
// repeated runs skip work that cannot succeed yet. Each cache is one flat
// JSON file keyed by source URL, written atomically after every mutation.
package retrycache

import (
	"errors"
	"os"

	"github.com/modelmatch/review-harvester/internal/fsatomic"
)

const dateLayout = "2006-01-02"

// loadEntries reads a cache file into a URL-keyed map. A cache that does not
// exist yet is an empty map, not an error.
func loadEntries[E any](path string) (map[string]*E, error) {
	entries := make(map[string]*E)
	if err := fsatomic.LoadJSON(path, &entries); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return entries, nil
		}
		return nil, err
	}
	if entries == nil {
		entries = make(map[string]*E)
	}
	return entries, nil
}
