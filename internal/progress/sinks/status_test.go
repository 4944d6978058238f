package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/modelmatch/review-harvester/internal/progress"
)

// TestStatusSinkFoldsRunLifecycle walks a full run through the sink and
// checks the resulting snapshot.
func TestStatusSinkFoldsRunLifecycle(t *testing.T) {
	t.Parallel()

	sink := NewStatusSink()
	if _, ok := sink.Snapshot(); ok {
		t.Fatal("expected no snapshot before the first run")
	}

	runUUID := uuid.New()
	runID := progress.UUIDToBytes(runUUID)
	start := time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC)

	batch := []progress.Event{
		{RunID: runID, TS: start, Stage: progress.StageRunStart},
		{RunID: runID, TS: start, Stage: progress.StagePhaseStart, Phase: "discover"},
		{RunID: runID, TS: start.Add(time.Minute), Stage: progress.StagePhaseDone, Phase: "discover", Count: 3, Dur: time.Minute},
		{RunID: runID, TS: start.Add(time.Minute), Stage: progress.StagePhaseStart, Phase: "extract"},
		{
			RunID:      runID,
			TS:         start.Add(2 * time.Minute),
			Stage:      progress.StageTaskDone,
			Phase:      "extract",
			Product:    "oneplus/13",
			SourceType: "specs",
			Outcome:    progress.OutcomeSuccess,
			Dur:        time.Second,
		},
		{
			RunID:   runID,
			TS:      start.Add(2 * time.Minute),
			Stage:   progress.StageTaskDone,
			Phase:   "extract",
			Outcome: progress.OutcomeSkipped,
			Dur:     time.Millisecond,
		},
		{
			RunID:   runID,
			TS:      start.Add(3 * time.Minute),
			Stage:   progress.StageTaskDone,
			Phase:   "extract",
			Outcome: progress.OutcomeFailed,
			Dur:     time.Second,
		},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	snap, ok := sink.Snapshot()
	require.True(t, ok)
	require.Equal(t, runUUID.String(), snap.RunID)
	require.Equal(t, RunRunning, snap.Status)
	require.Nil(t, snap.FinishedAt)
	require.Equal(t, TaskTally{Succeeded: 1, Failed: 1, Skipped: 1}, snap.Tasks)

	require.Len(t, snap.Phases, 2)
	require.Equal(t, "discover", snap.Phases[0].Name)
	require.NotNil(t, snap.Phases[0].FinishedAt)
	require.Equal(t, int64(3), snap.Phases[0].Count)
	require.Equal(t, time.Minute, snap.Phases[0].Dur)
	require.Equal(t, "extract", snap.Phases[1].Name)
	require.Nil(t, snap.Phases[1].FinishedAt)

	done := progress.Event{RunID: runID, TS: start.Add(4 * time.Minute), Stage: progress.StageRunDone, Dur: 4 * time.Minute}
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{done}))

	snap, ok = sink.Snapshot()
	require.True(t, ok)
	require.Equal(t, RunSuccess, snap.Status)
	require.NotNil(t, snap.FinishedAt)
	require.Equal(t, start.Add(4*time.Minute), *snap.FinishedAt)
}

// TestStatusSinkRecordsRunError checks error runs carry the note forward.
func TestStatusSinkRecordsRunError(t *testing.T) {
	t.Parallel()

	sink := NewStatusSink()
	runID := progress.UUIDToBytes(uuid.New())
	start := time.Now().UTC()

	batch := []progress.Event{
		{RunID: runID, TS: start, Stage: progress.StageRunStart},
		{RunID: runID, TS: start.Add(time.Second), Stage: progress.StageRunError, Note: "resolve phase: boom", Dur: time.Second},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	snap, ok := sink.Snapshot()
	require.True(t, ok)
	require.Equal(t, RunError, snap.Status)
	require.Equal(t, "resolve phase: boom", snap.Note)
	require.NotNil(t, snap.FinishedAt)
}

// TestStatusSinkTracksLatestRunOnly verifies a new RUN_START supersedes the
// previous run and stale events are dropped.
func TestStatusSinkTracksLatestRunOnly(t *testing.T) {
	t.Parallel()

	sink := NewStatusSink()
	oldRun := progress.UUIDToBytes(uuid.New())
	newUUID := uuid.New()
	newRun := progress.UUIDToBytes(newUUID)
	start := time.Now().UTC()

	batch := []progress.Event{
		{RunID: oldRun, TS: start, Stage: progress.StageRunStart},
		{RunID: oldRun, TS: start, Stage: progress.StageTaskDone, Phase: "extract", Outcome: progress.OutcomeSuccess},
		{RunID: newRun, TS: start.Add(time.Hour), Stage: progress.StageRunStart},
		{RunID: oldRun, TS: start.Add(time.Hour), Stage: progress.StageRunDone},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	snap, ok := sink.Snapshot()
	require.True(t, ok)
	require.Equal(t, newUUID.String(), snap.RunID)
	require.Equal(t, RunRunning, snap.Status)
	require.Zero(t, snap.Tasks.Succeeded)
	require.Nil(t, snap.FinishedAt)
}

// TestStatusSinkClosesUnmatchedPhase covers PHASE_DONE arriving without its
// start event, e.g. when the hub dropped the earlier batch.
func TestStatusSinkClosesUnmatchedPhase(t *testing.T) {
	t.Parallel()

	sink := NewStatusSink()
	runID := progress.UUIDToBytes(uuid.New())
	start := time.Now().UTC()

	batch := []progress.Event{
		{RunID: runID, TS: start, Stage: progress.StageRunStart},
		{RunID: runID, TS: start.Add(time.Minute), Stage: progress.StagePhaseDone, Phase: "resolve", Count: 7, Dur: time.Minute},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	snap, ok := sink.Snapshot()
	require.True(t, ok)
	require.Len(t, snap.Phases, 1)
	require.Equal(t, "resolve", snap.Phases[0].Name)
	require.Equal(t, start, snap.Phases[0].StartedAt)
	require.NotNil(t, snap.Phases[0].FinishedAt)
	require.Equal(t, int64(7), snap.Phases[0].Count)
}
