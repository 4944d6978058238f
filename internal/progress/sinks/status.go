package sinks

import (
	"context"
	"sync"
	"time"

	"github.com/modelmatch/review-harvester/internal/progress"
)

// Run status values reported by StatusSink snapshots.
const (
	RunRunning = "running"
	RunSuccess = "success"
	RunError   = "error"
)

// PhaseSnapshot records timing for one pipeline phase within a run.
type PhaseSnapshot struct {
	Name       string
	StartedAt  time.Time
	FinishedAt *time.Time
	Count      int64
	Dur        time.Duration
}

// TaskTally counts task completions by outcome.
type TaskTally struct {
	Succeeded int64
	Failed    int64
	Skipped   int64
}

// RunSnapshot is a point-in-time view of the most recent harvest run.
type RunSnapshot struct {
	RunID      string
	Status     string
	StartedAt  time.Time
	FinishedAt *time.Time
	Note       string
	Phases     []PhaseSnapshot
	Tasks      TaskTally
}

// StatusSink folds progress events into an in-memory view of the latest run
// so the ops API can answer "what is the harvester doing right now" without
// a durable store. A new RUN_START replaces the previous run's view.
type StatusSink struct {
	mu    sync.Mutex
	runID [16]byte
	run   *RunSnapshot
}

// NewStatusSink returns an empty sink; Snapshot reports ok=false until the
// first RUN_START arrives.
func NewStatusSink() *StatusSink {
	return &StatusSink{}
}

// Consume applies each event in batch order. Events belonging to a run other
// than the one currently tracked are ignored.
func (s *StatusSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		s.apply(evt)
	}
	return nil
}

func (s *StatusSink) apply(evt progress.Event) {
	if evt.Stage == progress.StageRunStart {
		s.runID = evt.RunID
		s.run = &RunSnapshot{
			RunID:     evt.RunUUID().String(),
			Status:    RunRunning,
			StartedAt: evt.TS,
		}
		return
	}
	if s.run == nil || evt.RunID != s.runID {
		return
	}
	switch evt.Stage {
	case progress.StagePhaseStart:
		s.run.Phases = append(s.run.Phases, PhaseSnapshot{Name: evt.Phase, StartedAt: evt.TS})
	case progress.StagePhaseDone:
		s.finishPhase(evt)
	case progress.StageTaskDone:
		switch evt.Outcome {
		case progress.OutcomeSuccess:
			s.run.Tasks.Succeeded++
		case progress.OutcomeSkipped:
			s.run.Tasks.Skipped++
		default:
			s.run.Tasks.Failed++
		}
	case progress.StageRunDone:
		ts := evt.TS
		s.run.Status = RunSuccess
		s.run.FinishedAt = &ts
	case progress.StageRunError:
		ts := evt.TS
		s.run.Status = RunError
		s.run.FinishedAt = &ts
		s.run.Note = evt.Note
	}
}

// finishPhase closes the most recent open phase with a matching name. A
// PHASE_DONE without a matching PHASE_START records the phase as already
// complete so partial batches still produce a usable view.
func (s *StatusSink) finishPhase(evt progress.Event) {
	ts := evt.TS
	for i := len(s.run.Phases) - 1; i >= 0; i-- {
		ph := &s.run.Phases[i]
		if ph.Name == evt.Phase && ph.FinishedAt == nil {
			ph.FinishedAt = &ts
			ph.Count = evt.Count
			ph.Dur = evt.Dur
			return
		}
	}
	s.run.Phases = append(s.run.Phases, PhaseSnapshot{
		Name:       evt.Phase,
		StartedAt:  evt.TS.Add(-evt.Dur),
		FinishedAt: &ts,
		Count:      evt.Count,
		Dur:        evt.Dur,
	})
}

// Snapshot returns a copy of the latest run view. ok is false until the sink
// has seen a RUN_START.
func (s *StatusSink) Snapshot() (RunSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run == nil {
		return RunSnapshot{}, false
	}
	cp := *s.run
	cp.Phases = append([]PhaseSnapshot(nil), s.run.Phases...)
	return cp, true
}

// Close implements the Sink interface; it performs no action.
func (s *StatusSink) Close(context.Context) error {
	return nil
}
