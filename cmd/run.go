package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/modelmatch/review-harvester/internal/api"
	"github.com/modelmatch/review-harvester/internal/archive"
	"github.com/modelmatch/review-harvester/internal/catalog"
	"github.com/modelmatch/review-harvester/internal/clock"
	"github.com/modelmatch/review-harvester/internal/config"
	"github.com/modelmatch/review-harvester/internal/contentstore"
	"github.com/modelmatch/review-harvester/internal/discovery"
	"github.com/modelmatch/review-harvester/internal/extract"
	"github.com/modelmatch/review-harvester/internal/fetch"
	"github.com/modelmatch/review-harvester/internal/logging"
	"github.com/modelmatch/review-harvester/internal/pipeline"
	"github.com/modelmatch/review-harvester/internal/progress"
	"github.com/modelmatch/review-harvester/internal/progress/sinks"
	"github.com/modelmatch/review-harvester/internal/retrycache"
	"github.com/modelmatch/review-harvester/internal/search"
)

// newRunCmd creates and configures the 'run' subcommand, which executes one
// harvest pass over the whole registry.
func newRunCmd() *cobra.Command {
	var refreshHeroImages bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Executes one harvest run over the registry",
		Long: `Runs the three harvest phases in order: discover missing source URLs
through the configured search backends, resolve archived captures for
every source, then fetch and extract article text for the slots that
still need it. Runs are resumable; work recorded as done is skipped on
the next invocation.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runHarvest(ctx, refreshHeroImages)
		},
	}
	cmd.Flags().BoolVar(&refreshHeroImages, "refresh-hero-images", false,
		"re-download hero images even when one is already stored")
	return cmd
}

func runHarvest(ctx context.Context, refreshHeroImages bool) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Development, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	zap.ReplaceGlobals(logger)

	client, err := fetch.NewClient(cfg.Fetch.ClientConfig(), logger.Named("fetch"))
	if err != nil {
		return fmt.Errorf("init fetch client: %w", err)
	}

	var backends []search.Backend
	if cfg.Search.GoogleConfigured() {
		backends = append(backends, search.NewGoogle(client, cfg.Search.GoogleAPIKey, cfg.Search.GoogleEngineID))
	}
	if cfg.Search.BraveConfigured() {
		backends = append(backends, search.NewBrave(client, cfg.Search.BraveAPIKey))
	}
	engine := search.NewMulti(logger.Named("search"), backends...)

	clk := clock.System{}
	index := archive.NewCDXClient(client, logger.Named("cdx"))
	resolver := archive.NewResolver(index, clk, cfg.Archive.MaxCaptures, logger.Named("resolver"))
	saver := archive.NewSaver(client, cfg.Archive.SaveAccessKey, cfg.Archive.SaveSecretKey, logger.Named("saver"))
	extractor := extract.NewExtractor(logger.Named("extract"))

	registry, err := catalog.LoadRegistry(cfg.Registry.Path, logger.Named("registry"))
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}
	store, err := contentstore.New(cfg.Content.Dir, cfg.Content.ProcessedDir, logger.Named("content"))
	if err != nil {
		return fmt.Errorf("init content store: %w", err)
	}
	caches, err := loadCaches(cfg.Caches, clk, logger)
	if err != nil {
		return err
	}

	statusSink := sinks.NewStatusSink()
	hubSinks := []progress.Sink{sinks.NewLogSink(logger.Named("progress")), statusSink}
	if cfg.Metrics.Enabled {
		promSink, err := sinks.NewPrometheusSink(prometheus.DefaultRegisterer)
		if err != nil {
			return fmt.Errorf("init prometheus sink: %w", err)
		}
		hubSinks = append(hubSinks, promSink)
	}
	hub := progress.NewHub(progress.Config{Logger: logger.Named("progress")}, hubSinks...)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hub.Close(closeCtx); err != nil {
			logger.Warn("progress hub close failed", zap.Error(err))
		}
	}()

	if cfg.Metrics.Enabled {
		srv := &http.Server{
			Addr:              cfg.Metrics.ListenAddr,
			Handler:           api.NewServer(statusSink, logger.Named("api")).Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("ops listener started", zap.String("addr", cfg.Metrics.ListenAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("ops listener error", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("ops listener shutdown error", zap.Error(err))
			}
		}()
	}

	orc := pipeline.New(
		pipeline.Config{
			Workers:           cfg.Pipeline.Workers,
			MaxAttempts:       cfg.Pipeline.MaxAttempts,
			RefreshHeroImages: refreshHeroImages,
		},
		registry,
		discovery.New(engine, logger.Named("discovery")),
		resolver,
		saver,
		client,
		extractor,
		store,
		caches,
		hub,
		clk,
		logger.Named("pipeline"),
	)

	if err := orc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run harvest: %w", err)
	}
	logger.Info("run command finished")
	return nil
}

func loadCaches(cfg config.CachesConfig, clk clock.Clock, logger *zap.Logger) (pipeline.Caches, error) {
	failure, err := retrycache.LoadFailureCache(cfg.FailurePath(), clk, logger.Named("failure_cache"))
	if err != nil {
		return pipeline.Caches{}, fmt.Errorf("load failure cache: %w", err)
	}
	noSnapshot, err := retrycache.LoadNoSnapshotCache(cfg.NoSnapshotPath(), clk, logger.Named("no_snapshot_cache"))
	if err != nil {
		return pipeline.Caches{}, fmt.Errorf("load no-snapshot cache: %w", err)
	}
	extraction, err := retrycache.LoadExtractionCache(cfg.ExtractionPath(), clk, logger.Named("extraction_cache"))
	if err != nil {
		return pipeline.Caches{}, fmt.Errorf("load extraction cache: %w", err)
	}
	return pipeline.Caches{Failure: failure, NoSnapshot: noSnapshot, Extraction: extraction}, nil
}
