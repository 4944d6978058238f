package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the milestone an Event represents.
type Stage string

// Supported progress stages.
const (
	StageRunStart   Stage = "RUN_START"
	StageRunDone    Stage = "RUN_DONE"
	StageRunError   Stage = "RUN_ERROR"
	StagePhaseStart Stage = "PHASE_START"
	StagePhaseDone  Stage = "PHASE_DONE"
	StageTaskDone   Stage = "TASK_DONE"
)

// Outcome classifies a completed scrape task.
type Outcome string

// Supported task outcomes.
const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// Event captures a single harvest-run milestone.
type Event struct {
	// RunID identifies the run in its 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// Phase scopes phase and task events (discover, resolve, extract).
	Phase string
	// Product optionally carries the product key for task events.
	Product string
	// SourceType optionally carries the slot name for task events.
	SourceType string
	// Outcome classifies task completions.
	Outcome Outcome
	// Count carries the number of items a completed phase handled.
	Count int64
	// Dur captures execution latency for phases, tasks, and runs.
	Dur time.Duration
	// Note lets emitters attach low-volume context, e.g. error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError:
	case StagePhaseStart, StagePhaseDone:
		if e.Phase == "" {
			return errors.New("phase events require a phase")
		}
	case StageTaskDone:
		if e.Phase == "" {
			return errors.New("task done requires a phase")
		}
		switch e.Outcome {
		case OutcomeSuccess, OutcomeFailed, OutcomeSkipped:
		default:
			return fmt.Errorf("unknown task outcome %q", e.Outcome)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
