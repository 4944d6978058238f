package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/modelmatch/review-harvester/internal/archive"
	"github.com/modelmatch/review-harvester/internal/catalog"
	"github.com/modelmatch/review-harvester/internal/extract"
	"github.com/modelmatch/review-harvester/internal/fetch"
	"github.com/modelmatch/review-harvester/internal/metrics"
	"github.com/modelmatch/review-harvester/internal/progress"
)

// Snapshot rejection reasons recorded beside the validator's.
const (
	reasonWrongContentType = "wrong_content_type"
	reasonFetchError       = "fetch_error"
	reasonNoContent        = "no_content"
)

// widenLookbackYears are the historical windows tried in order when a task
// arrives without pre-resolved captures.
var widenLookbackYears = []int{4, 8, 16}

// extractAll drains the flattened task list with a bounded worker pool.
func (o *Orchestrator) extractAll(ctx context.Context, runID [16]byte, plan *Plan, stats *runStats) (int64, error) {
	queue := &taskQueue{tasks: o.buildTasks(plan)}
	var processed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < o.cfg.Workers; w++ {
		g.Go(func() error {
			for {
				if err := gctx.Err(); err != nil {
					return err
				}
				task, ok := queue.pop()
				if !ok {
					return nil
				}
				metrics.WorkerStarted()
				start := o.clock.Now()
				outcome := o.runTask(gctx, task)
				metrics.WorkerDone()

				stats.record(outcome)
				processed.Add(1)
				o.emit(progress.Event{
					RunID:      runID,
					TS:         o.clock.Now(),
					Stage:      progress.StageTaskDone,
					Phase:      PhaseExtract,
					Product:    task.Product.Key(),
					SourceType: task.Type.Name,
					Outcome:    outcome,
					Dur:        o.clock.Now().Sub(start),
				})
			}
		})
	}
	err := g.Wait()
	return processed.Load(), err
}

// buildTasks flattens the registry into one task per (product, slot, source),
// in registry order so runs process work deterministically.
func (o *Orchestrator) buildTasks(plan *Plan) []ScrapeTask {
	var tasks []ScrapeTask
	for _, p := range o.registry.Products() {
		for _, st := range catalog.SourceTypes() {
			for _, src := range p.SourcesFor(st.Name) {
				tasks = append(tasks, ScrapeTask{
					Product:     p,
					Type:        st,
					Source:      src,
					ArchiveURLs: plan.Get(p, st, src.URL),
				})
			}
		}
	}
	return tasks
}

// runTask attempts to fill one slot. It consults the caches, walks the
// planned captures in ranked order, and records the outcome so the next run
// neither repeats completed work nor hammers a failing source.
func (o *Orchestrator) runTask(ctx context.Context, task ScrapeTask) progress.Outcome {
	logger := o.logger.With(
		zap.String("product", task.Product.Key()),
		zap.String("slot", task.Type.Name),
		zap.String("url", task.Source.URL))

	if o.store.HasText(task.Product, task.Type) {
		o.refreshHeroImage(ctx, task, logger)
		logger.Debug("content already stored")
		return progress.OutcomeSkipped
	}
	if o.caches.Extraction.ShouldSkip(task.Source.URL) {
		logger.Debug("extraction cache skip")
		return progress.OutcomeSkipped
	}
	if o.caches.Failure.ShouldSkip(task.Source.URL) {
		logger.Debug("failure cache skip")
		return progress.OutcomeSkipped
	}

	candidates := task.ArchiveURLs
	if len(candidates) == 0 {
		if o.caches.NoSnapshot.ShouldSkip(task.Source.URL) {
			logger.Debug("no-snapshot cache skip")
			return progress.OutcomeSkipped
		}
		candidates = o.widenAndResolve(ctx, task, logger)
		if len(candidates) == 0 {
			return progress.OutcomeFailed
		}
	}
	if len(candidates) > o.cfg.MaxAttempts {
		candidates = candidates[:o.cfg.MaxAttempts]
	}

	reasons := make(map[string]string, len(candidates))
	permanent := false
	transient := false
	for _, captureURL := range candidates {
		if ctx.Err() != nil {
			return progress.OutcomeFailed
		}
		text, body, reason := o.attemptCapture(ctx, task, captureURL)
		if reason == "" {
			return o.storeSuccess(ctx, task, captureURL, text, body, logger)
		}
		logger.Debug("capture rejected",
			zap.String("capture", captureURL),
			zap.String("reason", reason))
		reasons[captureURL] = reason
		switch reason {
		case reasonWrongContentType:
			permanent = true
		case reasonFetchError:
			if ctx.Err() != nil {
				return progress.OutcomeFailed
			}
			transient = true
		}
		if permanent {
			break
		}
	}

	if err := o.caches.Extraction.RecordFailure(task.Source.URL, reasons, permanent); err != nil {
		logger.Warn("extraction cache update failed", zap.Error(err))
	}
	if permanent || transient {
		if err := o.caches.Failure.RecordFailure(task.Source.URL, "scrape", permanent); err != nil {
			logger.Warn("failure cache update failed", zap.Error(err))
		}
	}
	logger.Warn("no capture yielded usable content", zap.Int("attempts", len(reasons)))
	return progress.OutcomeFailed
}

// attemptCapture fetches one capture and runs extraction and validation over
// it. An empty reason means text is ready to store.
func (o *Orchestrator) attemptCapture(ctx context.Context, task ScrapeTask, captureURL string) (string, []byte, string) {
	page, err := o.fetcher.FetchPage(ctx, captureURL)
	if err != nil {
		metrics.ObserveExtraction("fetch_error")
		if errors.Is(err, fetch.ErrUnsupportedContentType) {
			return "", nil, reasonWrongContentType
		}
		return "", nil, reasonFetchError
	}
	text, err := o.extractor.Extract(page.Body, captureURL, task.Type)
	if err != nil {
		metrics.ObserveExtraction("empty")
		return "", nil, reasonNoContent
	}
	if err := extract.Validate(text, task.Product, task.Type); err != nil {
		metrics.ObserveExtraction("invalid")
		var verr *extract.ValidationError
		if errors.As(err, &verr) {
			return "", nil, verr.Reason
		}
		return "", nil, err.Error()
	}
	metrics.ObserveExtraction("ok")
	return text, page.Body, ""
}

// storeSuccess persists the extracted text and the spec-page extras, then
// clears retry state for the source.
func (o *Orchestrator) storeSuccess(ctx context.Context, task ScrapeTask, captureURL, text string, body []byte, logger *zap.Logger) progress.Outcome {
	if err := o.store.WriteText(task.Product, task.Type, text); err != nil {
		logger.Error("content write failed", zap.Error(err))
		return progress.OutcomeFailed
	}
	logger.Info("content stored",
		zap.String("capture", captureURL),
		zap.Int("chars", len(text)))

	if task.Type.Kind == catalog.KindSpec {
		o.recordReleaseDate(task.Product, text, logger)
		o.storeHeroImage(ctx, task.Product, body, logger)
	}
	if err := o.caches.Failure.Clear(task.Source.URL); err != nil {
		logger.Warn("failure cache update failed", zap.Error(err))
	}
	if err := o.caches.Extraction.Clear(task.Source.URL); err != nil {
		logger.Warn("extraction cache update failed", zap.Error(err))
	}
	return progress.OutcomeSuccess
}

// recordReleaseDate backfills the registry from specification-page text.
func (o *Orchestrator) recordReleaseDate(p *catalog.Product, text string, logger *zap.Logger) {
	if p.ReleaseDate != "" {
		return
	}
	date, ok := extract.ReleaseDate(text)
	if !ok {
		return
	}
	if err := o.registry.UpdateReleaseDate(p, date); err != nil {
		logger.Warn("release date save failed", zap.Error(err))
		return
	}
	logger.Info("release date recorded", zap.String("date", date))
}

// storeHeroImage finds the product photo in spec-page HTML and downloads it
// through the archive's raw asset form.
func (o *Orchestrator) storeHeroImage(ctx context.Context, p *catalog.Product, body []byte, logger *zap.Logger) {
	if o.store.HasHeroImage(p) && !o.cfg.RefreshHeroImages {
		return
	}
	assetURL, ok := extract.HeroImageURL(body)
	if !ok {
		logger.Debug("capture lists no hero image")
		return
	}
	data, contentType, err := o.fetcher.FetchBinary(ctx, assetURL, o.cfg.HeroImageTimeout)
	if err != nil {
		logger.Warn("hero image fetch failed", zap.String("asset", assetURL), zap.Error(err))
		return
	}
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		logger.Debug("hero asset is not an image", zap.String("contentType", contentType))
		return
	}
	if err := o.store.WriteHeroImage(p, data); err != nil {
		logger.Warn("hero image write failed", zap.Error(err))
		return
	}
	logger.Info("hero image stored", zap.Int("bytes", len(data)))
}

// refreshHeroImage re-checks the hero image for an already satisfied spec
// task. The capture is only re-fetched when an image is actually wanted.
func (o *Orchestrator) refreshHeroImage(ctx context.Context, task ScrapeTask, logger *zap.Logger) {
	if task.Type.Kind != catalog.KindSpec {
		return
	}
	if o.store.HasHeroImage(task.Product) && !o.cfg.RefreshHeroImages {
		return
	}
	captureURL := task.Source.ArchiveURL
	if captureURL == "" && len(task.ArchiveURLs) > 0 {
		captureURL = task.ArchiveURLs[0]
	}
	if captureURL == "" {
		return
	}
	page, err := o.fetcher.FetchPage(ctx, captureURL)
	if err != nil {
		logger.Warn("hero image capture fetch failed", zap.Error(err))
		return
	}
	o.storeHeroImage(ctx, task.Product, page.Body, logger)
}

// widenAndResolve retries resolution with progressively older windows. A
// final miss advances the no-snapshot ladder.
func (o *Orchestrator) widenAndResolve(ctx context.Context, task ScrapeTask, logger *zap.Logger) []string {
	specPage := task.Type.Kind == catalog.KindSpec
	now := o.clock.Now()
	for _, years := range widenLookbackYears {
		from := now.AddDate(-years, 0, 0)
		urls, err := o.resolver.Resolve(ctx, task.Source.URL, specPage, from)
		if err != nil {
			if errors.Is(err, archive.ErrNoSnapshot) {
				continue
			}
			logger.Warn("snapshot re-resolution failed",
				zap.Int("lookbackYears", years),
				zap.Error(err))
			return nil
		}
		if len(urls) > 0 {
			logger.Debug("captures found on widened window",
				zap.Int("lookbackYears", years),
				zap.Int("captures", len(urls)))
			return urls
		}
	}
	o.escalateNoSnapshot(ctx, task.Source.URL, logger)
	return nil
}
