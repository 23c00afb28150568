package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/prospecthq/prospector/internal/api/response"
	"github.com/prospecthq/prospector/internal/jobstore"
)

// JobReader reads job snapshots by ID.
type JobReader interface {
	Status(id uuid.UUID) (jobstore.Snapshot, bool)
}

// progressBody is the poll-facing view of a running job.
type progressBody struct {
	Status     jobstore.Status `json:"status"`
	Phase      jobstore.Phase  `json:"phase,omitempty"`
	Step       int             `json:"step"`
	TotalSteps int             `json:"total_steps"`
	Message    string          `json:"message"`
	Milestones []string        `json:"milestones"`
}

// NewStatusHandler returns an http.HandlerFunc for GET /api/v1/profiles/{jobID}/status.
func NewStatusHandler(jobs JobReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found", nil)
			return
		}

		snap, ok := jobs.Status(id)
		if !ok {
			response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found", nil)
			return
		}

		switch snap.Status {
		case jobstore.StatusComplete:
			response.JSON(w, map[string]any{
				"status": snap.Status,
				"result": snap.Result,
			})
		case jobstore.StatusFailed:
			response.JSON(w, map[string]any{
				"status": snap.Status,
				"error":  snap.Error,
			})
		case jobstore.StatusCancelled:
			response.JSON(w, map[string]any{
				"status": snap.Status,
			})
		default:
			response.JSON(w, progressBody{
				Status:     snap.Status,
				Phase:      snap.Phase,
				Step:       snap.CurrentStep,
				TotalSteps: snap.TotalSteps,
				Message:    snap.LatestMessage(),
				Milestones: snap.Milestones(),
			})
		}
	}
}
