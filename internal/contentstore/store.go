// Package contentstore lays out extracted artifacts on disk: one directory
// per product holding a text file per source type, and a separate processed
// directory for hero images.
package contentstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/modelmatch/review-harvester/internal/catalog"
	"github.com/modelmatch/review-harvester/internal/fsatomic"
)

// Store writes extraction artifacts. Text and images are written atomically
// so a file either exists complete or not at all, which is what makes the
// skip-if-present check safe.
type Store struct {
	contentDir   string
	processedDir string
	logger       *zap.Logger
}

// New validates both directories, creating them when absent, and probes that
// they are writable before any crawling starts.
func New(contentDir, processedDir string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, dir := range []string{contentDir, processedDir} {
		if err := ensureWritableDir(dir); err != nil {
			return nil, err
		}
	}
	return &Store{contentDir: contentDir, processedDir: processedDir, logger: logger}, nil
}

func ensureWritableDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("content store directory is required")
	}
	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(dir, 0o750); mkErr != nil {
			return fmt.Errorf("create %s: %w", dir, mkErr)
		}
	case err != nil:
		return fmt.Errorf("stat %s: %w", dir, err)
	case !info.IsDir():
		return fmt.Errorf("%s is not a directory", dir)
	}

	probe := filepath.Join(dir, ".writable_test")
	if err := os.WriteFile(probe, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("%s is not writable: %w", dir, err)
	}
	if err := os.Remove(probe); err != nil {
		return fmt.Errorf("clean up probe in %s: %w", dir, err)
	}
	return nil
}

// TextPath returns where the extracted text for a product and slot lives.
func (s *Store) TextPath(p *catalog.Product, st catalog.SourceType) string {
	return filepath.Join(s.contentDir, p.Key(), st.ContentFileName())
}

// HasText reports whether a non-empty artifact already exists for the slot.
func (s *Store) HasText(p *catalog.Product, st catalog.SourceType) bool {
	info, err := os.Stat(s.TextPath(p, st))
	return err == nil && info.Size() > 0
}

// WriteText persists extracted text atomically.
func (s *Store) WriteText(p *catalog.Product, st catalog.SourceType, text string) error {
	path := s.TextPath(p, st)
	if err := fsatomic.WriteFile(path, []byte(text), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	s.logger.Info("content written",
		zap.String("product", p.Key()),
		zap.String("sourceType", st.Name),
		zap.Int("chars", len(text)))
	return nil
}

// HeroImagePath returns the processed-asset path for the product photo.
func (s *Store) HeroImagePath(p *catalog.Product) string {
	return filepath.Join(s.processedDir, p.Key()+"_hero.jpg")
}

// HasHeroImage reports whether the product photo is already on disk.
func (s *Store) HasHeroImage(p *catalog.Product) bool {
	info, err := os.Stat(s.HeroImagePath(p))
	return err == nil && info.Size() > 0
}

// WriteHeroImage persists the product photo atomically.
func (s *Store) WriteHeroImage(p *catalog.Product, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("hero image for %s is empty", p.Key())
	}
	path := s.HeroImagePath(p)
	if err := fsatomic.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	s.logger.Info("hero image written",
		zap.String("product", p.Key()),
		zap.Int("bytes", len(data)))
	return nil
}
