package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/prospecthq/prospector/internal/api/response"
	"github.com/prospecthq/prospector/internal/jobstore"
)

// JobCanceller cancels running jobs.
type JobCanceller interface {
	Cancel(ctx context.Context, id uuid.UUID) (jobstore.CancelOutcome, error)
}

// NewCancelHandler returns an http.HandlerFunc for POST /api/v1/profiles/{jobID}/cancel.
// Cancelling an already-finished job is not an error; the final status is
// returned either way.
func NewCancelHandler(svc JobCanceller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found", nil)
			return
		}

		outcome, err := svc.Cancel(r.Context(), id)
		if err != nil {
			if errors.Is(err, jobstore.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not cancel job", nil)
			return
		}

		response.JSON(w, map[string]any{
			"status": outcome.Status,
		})
	}
}
