// Package config loads and validates harvester configuration via Viper.
// Every key can come from a config file or from the environment with the
// HARVESTER_ prefix; credentials are expected from the environment only.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/modelmatch/review-harvester/internal/fetch"
)

// Config captures all harvester knobs loaded via Viper.
type Config struct {
	Development bool           `mapstructure:"development"`
	LogLevel    string         `mapstructure:"log_level"`
	Registry    RegistryConfig `mapstructure:"registry"`
	Content     ContentConfig  `mapstructure:"content"`
	Caches      CachesConfig   `mapstructure:"caches"`
	Fetch       FetchConfig    `mapstructure:"fetch"`
	Search      SearchConfig   `mapstructure:"search"`
	Archive     ArchiveConfig  `mapstructure:"archive"`
	Pipeline    PipelineConfig `mapstructure:"pipeline"`
	Metrics     MetricsConfig  `mapstructure:"metrics"`
}

// RegistryConfig locates the durable product registry.
type RegistryConfig struct {
	Path string `mapstructure:"path"`
}

// ContentConfig sets the artifact directories.
type ContentConfig struct {
	Dir          string `mapstructure:"dir"`
	ProcessedDir string `mapstructure:"processed_dir"`
}

// CachesConfig locates the retry cache directory. The individual cache files
// live at fixed names inside it.
type CachesConfig struct {
	Dir string `mapstructure:"dir"`
}

// FailurePath returns the request-failure cache file.
func (c CachesConfig) FailurePath() string {
	return filepath.Join(c.Dir, "failure_cache.json")
}

// NoSnapshotPath returns the no-snapshot escalation cache file.
func (c CachesConfig) NoSnapshotPath() string {
	return filepath.Join(c.Dir, "no_snapshot_cache.json")
}

// ExtractionPath returns the extraction-failure cache file.
func (c CachesConfig) ExtractionPath() string {
	return filepath.Join(c.Dir, "extraction_failure_cache.json")
}

// FetchConfig tunes the shared HTTP client and its per-class pacing gates.
type FetchConfig struct {
	UserAgent               string `mapstructure:"user_agent"`
	TimeoutSeconds          int    `mapstructure:"timeout_seconds"`
	RetryBudget             int    `mapstructure:"retry_budget"`
	MaxBodyMB               int    `mapstructure:"max_body_mb"`
	SearchIntervalSeconds   int    `mapstructure:"search_interval_seconds"`
	FallbackIntervalSeconds int    `mapstructure:"fallback_interval_seconds"`
	ArchiveIntervalSeconds  int    `mapstructure:"archive_interval_seconds"`
	ScrapeIntervalSeconds   int    `mapstructure:"scrape_interval_seconds"`
}

// ClientConfig converts the fetch section into the fetch client's form.
func (c FetchConfig) ClientConfig() fetch.Config {
	return fetch.Config{
		UserAgent:      c.UserAgent,
		RequestTimeout: time.Duration(c.TimeoutSeconds) * time.Second,
		RetryBudget:    uint64(c.RetryBudget),
		MaxBodyBytes:   int64(c.MaxBodyMB) << 20,
		Intervals: fetch.Intervals{
			fetch.ClassSearch:         time.Duration(c.SearchIntervalSeconds) * time.Second,
			fetch.ClassSearchFallback: time.Duration(c.FallbackIntervalSeconds) * time.Second,
			fetch.ClassArchive:        time.Duration(c.ArchiveIntervalSeconds) * time.Second,
			fetch.ClassScrape:         time.Duration(c.ScrapeIntervalSeconds) * time.Second,
		},
	}
}

// SearchConfig holds the search backend credentials. These come from the
// environment: HARVESTER_SEARCH_GOOGLE_API_KEY, HARVESTER_SEARCH_GOOGLE_ENGINE_ID,
// HARVESTER_SEARCH_BRAVE_API_KEY.
type SearchConfig struct {
	GoogleAPIKey   string `mapstructure:"google_api_key"`
	GoogleEngineID string `mapstructure:"google_engine_id"`
	BraveAPIKey    string `mapstructure:"brave_api_key"`
}

// GoogleConfigured reports whether the primary backend has complete
// credentials.
func (c SearchConfig) GoogleConfigured() bool {
	return c.GoogleAPIKey != "" && c.GoogleEngineID != ""
}

// BraveConfigured reports whether the fallback backend is usable.
func (c SearchConfig) BraveConfigured() bool {
	return c.BraveAPIKey != ""
}

// ArchiveConfig tunes Wayback Machine access. The save keys authenticate
// save-page-now requests and are optional; without them saves go out
// anonymously.
type ArchiveConfig struct {
	SaveAccessKey string `mapstructure:"save_access_key"`
	SaveSecretKey string `mapstructure:"save_secret_key"`
	MaxCaptures   int    `mapstructure:"max_captures"`
}

// PipelineConfig tunes the orchestrator.
type PipelineConfig struct {
	Workers     int `mapstructure:"workers"`
	MaxAttempts int `mapstructure:"max_attempts"`
}

// MetricsConfig controls the observability listener.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// Load builds a Config from defaults, an optional config file, and the
// environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("development", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("registry.path", "data/phones.json")
	v.SetDefault("content.dir", "data/content")
	v.SetDefault("content.processed_dir", "data/processed")
	v.SetDefault("caches.dir", "data/caches")
	v.SetDefault("fetch.user_agent", "review-harvester/1.0 (+https://github.com/modelmatch/review-harvester)")
	v.SetDefault("fetch.timeout_seconds", 15)
	v.SetDefault("fetch.retry_budget", 3)
	v.SetDefault("fetch.max_body_mb", 5)
	v.SetDefault("fetch.search_interval_seconds", 1)
	v.SetDefault("fetch.fallback_interval_seconds", 1)
	v.SetDefault("fetch.archive_interval_seconds", 4)
	v.SetDefault("fetch.scrape_interval_seconds", 2)
	// Secrets default to empty so AutomaticEnv can bind them without a
	// config file.
	v.SetDefault("search.google_api_key", "")
	v.SetDefault("search.google_engine_id", "")
	v.SetDefault("search.brave_api_key", "")
	v.SetDefault("archive.save_access_key", "")
	v.SetDefault("archive.save_secret_key", "")
	v.SetDefault("archive.max_captures", 20)
	v.SetDefault("pipeline.workers", 2)
	v.SetDefault("pipeline.max_attempts", 5)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.listen_addr", ":9090")
}

// Validate enforces required values. A run without a registry, artifact
// directories, or any search credentials cannot do useful work, so these
// fail fast instead of surfacing mid-run.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Registry.Path) == "" {
		return fmt.Errorf("registry.path is required")
	}
	if strings.TrimSpace(c.Content.Dir) == "" {
		return fmt.Errorf("content.dir is required")
	}
	if strings.TrimSpace(c.Content.ProcessedDir) == "" {
		return fmt.Errorf("content.processed_dir is required")
	}
	if strings.TrimSpace(c.Caches.Dir) == "" {
		return fmt.Errorf("caches.dir is required")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Fetch.RetryBudget < 0 {
		return fmt.Errorf("fetch.retry_budget must be >= 0")
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline.workers must be > 0")
	}
	if c.Pipeline.MaxAttempts <= 0 {
		return fmt.Errorf("pipeline.max_attempts must be > 0")
	}
	if !c.Search.GoogleConfigured() && !c.Search.BraveConfigured() {
		return fmt.Errorf("search credentials are required: set search.google_api_key and search.google_engine_id, or search.brave_api_key")
	}
	if c.Metrics.Enabled && strings.TrimSpace(c.Metrics.ListenAddr) == "" {
		return fmt.Errorf("metrics.listen_addr must be set when metrics are enabled")
	}
	return nil
}
