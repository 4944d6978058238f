package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/modelmatch/review-harvester/internal/fetch"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
development: true
log_level: debug
registry:
  path: /data/phones.json
content:
  dir: /data/content
  processed_dir: /data/processed
caches:
  dir: /data/caches
fetch:
  user_agent: harvester-test/1.0
  timeout_seconds: 30
  retry_budget: 5
  max_body_mb: 10
  search_interval_seconds: 2
  archive_interval_seconds: 6
search:
  google_api_key: key
  google_engine_id: cx
archive:
  max_captures: 10
pipeline:
  workers: 4
  max_attempts: 3
metrics:
  enabled: true
  listen_addr: ":9191"
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !cfg.Development || cfg.LogLevel != "debug" {
		t.Fatalf("expected logging overrides to apply, got %+v", cfg)
	}
	if cfg.Registry.Path != "/data/phones.json" {
		t.Fatalf("expected registry path override, got %q", cfg.Registry.Path)
	}
	if cfg.Caches.FailurePath() != filepath.Join("/data/caches", "failure_cache.json") {
		t.Fatalf("unexpected failure cache path %q", cfg.Caches.FailurePath())
	}
	if cfg.Pipeline.Workers != 4 || cfg.Pipeline.MaxAttempts != 3 {
		t.Fatalf("expected pipeline overrides, got %+v", cfg.Pipeline)
	}
	if cfg.Archive.MaxCaptures != 10 {
		t.Fatalf("expected archive.max_captures 10, got %d", cfg.Archive.MaxCaptures)
	}
	if cfg.Metrics.ListenAddr != ":9191" {
		t.Fatalf("expected metrics listener override, got %q", cfg.Metrics.ListenAddr)
	}

	fc := cfg.Fetch.ClientConfig()
	if fc.UserAgent != "harvester-test/1.0" {
		t.Fatalf("expected user agent override, got %q", fc.UserAgent)
	}
	if fc.RequestTimeout != 30*time.Second || fc.RetryBudget != 5 {
		t.Fatalf("expected fetch overrides, got %+v", fc)
	}
	if fc.MaxBodyBytes != 10<<20 {
		t.Fatalf("expected 10 MiB body cap, got %d", fc.MaxBodyBytes)
	}
	if fc.Intervals[fetch.ClassSearch] != 2*time.Second {
		t.Fatalf("expected search interval 2s, got %v", fc.Intervals[fetch.ClassSearch])
	}
	if fc.Intervals[fetch.ClassArchive] != 6*time.Second {
		t.Fatalf("expected archive interval 6s, got %v", fc.Intervals[fetch.ClassArchive])
	}
	if fc.Intervals[fetch.ClassScrape] != 2*time.Second {
		t.Fatalf("expected scrape interval default 2s, got %v", fc.Intervals[fetch.ClassScrape])
	}
}

func TestLoadDefaultsNeedOnlyCredentials(t *testing.T) {
	t.Setenv("HARVESTER_SEARCH_BRAVE_API_KEY", "brave-key")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Search.BraveConfigured() {
		t.Fatalf("expected brave credentials from environment, got %+v", cfg.Search)
	}
	if cfg.Search.GoogleConfigured() {
		t.Fatalf("google should not be configured, got %+v", cfg.Search)
	}
	if cfg.Pipeline.Workers != 2 || cfg.Pipeline.MaxAttempts != 5 {
		t.Fatalf("expected pipeline defaults, got %+v", cfg.Pipeline)
	}
	if cfg.Registry.Path == "" || cfg.Content.Dir == "" {
		t.Fatalf("expected path defaults, got %+v", cfg)
	}
}

func TestLoadFailsWithoutSearchCredentials(t *testing.T) {
	t.Parallel()

	_, err := Load("")
	if err == nil || !strings.Contains(err.Error(), "search credentials") {
		t.Fatalf("expected search credential error, got %v", err)
	}
}

func TestGoogleNeedsBothKeyAndEngine(t *testing.T) {
	t.Parallel()

	c := SearchConfig{GoogleAPIKey: "key"}
	if c.GoogleConfigured() {
		t.Fatal("api key alone must not count as configured")
	}
	c.GoogleEngineID = "cx"
	if !c.GoogleConfigured() {
		t.Fatal("key plus engine id should be configured")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Registry: RegistryConfig{Path: "data/phones.json"},
		Content:  ContentConfig{Dir: "data/content", ProcessedDir: "data/processed"},
		Caches:   CachesConfig{Dir: "data/caches"},
		Fetch:    FetchConfig{TimeoutSeconds: 15},
		Search:   SearchConfig{BraveAPIKey: "key"},
		Pipeline: PipelineConfig{Workers: 2, MaxAttempts: 5},
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "missing registry path",
			cfg: func() Config {
				c := base
				c.Registry.Path = " "
				return c
			}(),
			want: "registry.path",
		},
		{
			name: "missing content dir",
			cfg: func() Config {
				c := base
				c.Content.Dir = ""
				return c
			}(),
			want: "content.dir",
		},
		{
			name: "missing caches dir",
			cfg: func() Config {
				c := base
				c.Caches.Dir = ""
				return c
			}(),
			want: "caches.dir",
		},
		{
			name: "invalid timeout",
			cfg: func() Config {
				c := base
				c.Fetch.TimeoutSeconds = 0
				return c
			}(),
			want: "fetch.timeout_seconds",
		},
		{
			name: "invalid workers",
			cfg: func() Config {
				c := base
				c.Pipeline.Workers = 0
				return c
			}(),
			want: "pipeline.workers",
		},
		{
			name: "invalid attempts",
			cfg: func() Config {
				c := base
				c.Pipeline.MaxAttempts = 0
				return c
			}(),
			want: "pipeline.max_attempts",
		},
		{
			name: "no search backend",
			cfg: func() Config {
				c := base
				c.Search = SearchConfig{}
				return c
			}(),
			want: "search credentials",
		},
		{
			name: "metrics enabled without listener",
			cfg: func() Config {
				c := base
				c.Metrics = MetricsConfig{Enabled: true, ListenAddr: ""}
				return c
			}(),
			want: "metrics.listen_addr",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
