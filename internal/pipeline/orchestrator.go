package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/modelmatch/review-harvester/internal/archive"
	"github.com/modelmatch/review-harvester/internal/catalog"
	"github.com/modelmatch/review-harvester/internal/clock"
	iduuid "github.com/modelmatch/review-harvester/internal/id/uuid"
	"github.com/modelmatch/review-harvester/internal/progress"
)

// Phase names as they appear in progress events and logs.
const (
	PhaseDiscover = "discover"
	PhaseResolve  = "resolve"
	PhaseExtract  = "extract"
)

// Orchestrator owns one harvest run over the whole registry. Collaborators
// are injected; the orchestrator sequences them and performs all registry and
// cache writes itself.
type Orchestrator struct {
	cfg       Config
	registry  *catalog.Registry
	discover  Discoverer
	resolver  SnapshotResolver
	saver     Saver
	fetcher   Fetcher
	extractor Extractor
	store     ContentStore
	caches    Caches
	emitter   progress.Emitter
	ids       *iduuid.Generator
	clock     clock.Clock
	logger    *zap.Logger
}

// New wires an Orchestrator. emitter may be nil when no progress consumers
// are configured.
func New(cfg Config, registry *catalog.Registry, discover Discoverer, resolver SnapshotResolver, saver Saver, fetcher Fetcher, extractor Extractor, store ContentStore, caches Caches, emitter progress.Emitter, clk clock.Clock, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:       cfg.withDefaults(),
		registry:  registry,
		discover:  discover,
		resolver:  resolver,
		saver:     saver,
		fetcher:   fetcher,
		extractor: extractor,
		store:     store,
		caches:    caches,
		emitter:   emitter,
		ids:       iduuid.NewGenerator(),
		clock:     clk,
		logger:    logger,
	}
}

// Run executes the three phases in order: discover, resolve, extract. Phase
// errors are fatal; per-source failures are absorbed into the retry caches
// and never abort the run.
func (o *Orchestrator) Run(ctx context.Context) error {
	rawID, err := o.ids.NewRawID()
	if err != nil {
		return fmt.Errorf("allocate run id: %w", err)
	}
	runID := progress.UUIDToBytes(rawID)
	start := o.clock.Now()
	o.emit(progress.Event{RunID: runID, TS: start, Stage: progress.StageRunStart})
	o.logger.Info("run starting",
		zap.String("run_id", rawID.String()),
		zap.Int("products", len(o.registry.Products())))

	stats := &runStats{}
	err = o.runPhases(ctx, runID, stats)
	dur := o.clock.Now().Sub(start)
	if err != nil {
		o.emit(progress.Event{
			RunID: runID,
			TS:    o.clock.Now(),
			Stage: progress.StageRunError,
			Dur:   dur,
			Note:  err.Error(),
		})
		return err
	}

	o.logger.Info("run complete",
		zap.Int64("sources_discovered", stats.discovered),
		zap.Int64("sources_resolved", stats.resolved),
		zap.Int64("tasks_succeeded", stats.succeeded),
		zap.Int64("tasks_failed", stats.failed),
		zap.Int64("tasks_skipped", stats.skipped),
		zap.Duration("dur", dur))
	o.emit(progress.Event{RunID: runID, TS: o.clock.Now(), Stage: progress.StageRunDone, Dur: dur})
	return nil
}

func (o *Orchestrator) runPhases(ctx context.Context, runID [16]byte, stats *runStats) error {
	if err := o.phase(ctx, runID, PhaseDiscover, func(ctx context.Context) (int64, error) {
		n, err := o.discoverAll(ctx)
		stats.discovered = n
		return n, err
	}); err != nil {
		return err
	}

	plan := NewPlan()
	if err := o.phase(ctx, runID, PhaseResolve, func(ctx context.Context) (int64, error) {
		n, err := o.resolveAll(ctx, plan)
		stats.resolved = n
		return n, err
	}); err != nil {
		return err
	}

	return o.phase(ctx, runID, PhaseExtract, func(ctx context.Context) (int64, error) {
		return o.extractAll(ctx, runID, plan, stats)
	})
}

// phase brackets fn with progress events, carrying its item count into the
// completion event.
func (o *Orchestrator) phase(ctx context.Context, runID [16]byte, name string, fn func(context.Context) (int64, error)) error {
	start := o.clock.Now()
	o.emit(progress.Event{RunID: runID, TS: start, Stage: progress.StagePhaseStart, Phase: name})
	o.logger.Info("phase starting", zap.String("phase", name))

	count, err := fn(ctx)
	dur := o.clock.Now().Sub(start)
	if err != nil {
		return fmt.Errorf("%s phase: %w", name, err)
	}
	o.logger.Info("phase complete",
		zap.String("phase", name),
		zap.Int64("count", count),
		zap.Duration("dur", dur))
	o.emit(progress.Event{
		RunID: runID,
		TS:    o.clock.Now(),
		Stage: progress.StagePhaseDone,
		Phase: name,
		Count: count,
		Dur:   dur,
	})
	return nil
}

// discoverAll runs discovery product by product, persisting the registry
// after each product that gained sources. An interrupted run loses at most
// one product's findings.
func (o *Orchestrator) discoverAll(ctx context.Context) (int64, error) {
	var added int64
	for _, p := range o.registry.Products() {
		n, err := o.discover.Discover(ctx, p)
		if n > 0 {
			added += int64(n)
			if saveErr := o.registry.Save(); saveErr != nil {
				return added, saveErr
			}
		}
		if err != nil {
			return added, err
		}
	}
	return added, nil
}

// resolveAll resolves archive captures for every known source and records
// them in plan. The first capture of a fresh resolution is pinned to the
// source record so the registry always names a canonical archived copy.
func (o *Orchestrator) resolveAll(ctx context.Context, plan *Plan) (int64, error) {
	var resolved int64
	dirty := false
	for _, p := range o.registry.Products() {
		from := releaseCutoff(p.ReleaseDate)
		for _, st := range catalog.SourceTypes() {
			sources := p.Sources[st.Name]
			for i := range sources {
				if err := ctx.Err(); err != nil {
					return resolved, err
				}
				added, pinned, err := o.resolveSource(ctx, p, st, &sources[i], from, plan)
				if err != nil {
					return resolved, err
				}
				if added {
					resolved++
				}
				dirty = dirty || pinned
			}
		}
	}
	if dirty {
		if err := o.registry.Save(); err != nil {
			return resolved, err
		}
	}
	return resolved, nil
}

// resolveSource resolves one source URL. It reports whether candidates
// entered the plan and whether the source record changed.
func (o *Orchestrator) resolveSource(ctx context.Context, p *catalog.Product, st catalog.SourceType, src *catalog.Source, from time.Time, plan *Plan) (bool, bool, error) {
	logger := o.logger.With(
		zap.String("product", p.Key()),
		zap.String("slot", st.Name),
		zap.String("url", src.URL))

	if o.caches.NoSnapshot.ShouldSkip(src.URL) {
		logger.Debug("no-snapshot cache skip")
		return false, false, nil
	}
	if o.caches.Failure.ShouldSkip(src.URL) {
		logger.Debug("failure cache skip")
		return false, false, nil
	}

	urls, err := o.resolver.Resolve(ctx, src.URL, st.Kind == catalog.KindSpec, from)
	switch {
	case errors.Is(err, archive.ErrNoSnapshot):
		o.escalateNoSnapshot(ctx, src.URL, logger)
		return false, false, nil
	case err != nil:
		if ctx.Err() != nil {
			return false, false, ctx.Err()
		}
		logger.Warn("snapshot resolution failed", zap.Error(err))
		if recErr := o.caches.Failure.RecordFailure(src.URL, "resolve", false); recErr != nil {
			logger.Warn("failure cache update failed", zap.Error(recErr))
		}
		return false, false, nil
	}

	if err := o.caches.NoSnapshot.Clear(src.URL); err != nil {
		logger.Warn("no-snapshot cache update failed", zap.Error(err))
	}
	plan.Set(p, st, src.URL, urls)
	pinned := false
	if src.ArchiveURL == "" && len(urls) > 0 {
		src.ArchiveURL = urls[0]
		pinned = true
	}
	logger.Debug("captures resolved", zap.Int("captures", len(urls)))
	return true, pinned, nil
}

// escalateNoSnapshot advances the no-snapshot ladder for url: count the daily
// miss, fire a save-page request once the threshold is reached, and record
// the request so the cooldown starts.
func (o *Orchestrator) escalateNoSnapshot(ctx context.Context, url string, logger *zap.Logger) {
	requestSave, err := o.caches.NoSnapshot.RecordMiss(url)
	if err != nil {
		logger.Warn("no-snapshot cache update failed", zap.Error(err))
		return
	}
	if !requestSave {
		return
	}
	if err := o.saver.RequestSave(ctx, url); err != nil {
		logger.Warn("archive save request failed", zap.Error(err))
		return
	}
	if err := o.caches.NoSnapshot.MarkSaveRequested(url); err != nil {
		logger.Warn("no-snapshot cache update failed", zap.Error(err))
	}
}

func (o *Orchestrator) emit(evt progress.Event) {
	if o.emitter == nil {
		return
	}
	o.emitter.Emit(evt)
}

// releaseCutoff turns a product release date into the resolution window
// start. Captures older than the launch cannot review the product, so they
// are not requested. Unknown dates leave the window open.
func releaseCutoff(release string) time.Time {
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		if t, err := time.Parse(layout, release); err == nil {
			return t
		}
	}
	return time.Time{}
}

// runStats tallies a run for the completion log line.
type runStats struct {
	mu         sync.Mutex
	discovered int64
	resolved   int64
	succeeded  int64
	failed     int64
	skipped    int64
}

func (s *runStats) record(outcome progress.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch outcome {
	case progress.OutcomeSuccess:
		s.succeeded++
	case progress.OutcomeSkipped:
		s.skipped++
	default:
		s.failed++
	}
}
