package api

import (
	"net/http"
	"time"

	"github.com/modelmatch/review-harvester/internal/progress/sinks"
)

// RunStatusSource provides the latest harvest run view for /api/run.
// *sinks.StatusSink satisfies it.
type RunStatusSource interface {
	Snapshot() (sinks.RunSnapshot, bool)
}

// getRun handles GET /api/run. It returns {"run": {...}} for the most recent
// run, 404 before the first run has started, or 503 when the server was built
// without a status source.
func (s *Server) getRun(w http.ResponseWriter, _ *http.Request) {
	if s.status == nil {
		writeError(w, http.StatusServiceUnavailable, "run status unavailable")
		return
	}
	snap, ok := s.status.Snapshot()
	if !ok {
		writeError(w, http.StatusNotFound, "no run recorded yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": toRunDTO(snap)})
}

func toRunDTO(snap sinks.RunSnapshot) runDTO {
	dto := runDTO{
		RunID:      snap.RunID,
		Status:     snap.Status,
		StartedAt:  snap.StartedAt,
		FinishedAt: snap.FinishedAt,
		Note:       snap.Note,
		Phases:     make([]phaseDTO, 0, len(snap.Phases)),
		Tasks: taskTallyDTO{
			Succeeded: snap.Tasks.Succeeded,
			Failed:    snap.Tasks.Failed,
			Skipped:   snap.Tasks.Skipped,
		},
	}
	for _, ph := range snap.Phases {
		dto.Phases = append(dto.Phases, phaseDTO{
			Name:       ph.Name,
			StartedAt:  ph.StartedAt,
			FinishedAt: ph.FinishedAt,
			Count:      ph.Count,
			DurMS:      ph.Dur.Milliseconds(),
		})
	}
	return dto
}

type runDTO struct {
	RunID      string       `json:"run_id"`
	Status     string       `json:"status"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
	Note       string       `json:"note,omitempty"`
	Phases     []phaseDTO   `json:"phases"`
	Tasks      taskTallyDTO `json:"tasks"`
}

type phaseDTO struct {
	Name       string     `json:"name"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Count      int64      `json:"count"`
	DurMS      int64      `json:"dur_ms"`
}

type taskTallyDTO struct {
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
	Skipped   int64 `json:"skipped"`
}
