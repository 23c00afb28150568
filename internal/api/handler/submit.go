package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/prospecthq/prospector/internal/api/response"
	"github.com/prospecthq/prospector/internal/jobstore"
)

// ProfileStarter defines the interface the submit handler depends on.
type ProfileStarter interface {
	StartProfile(ctx context.Context, subjectName string, seedURLs []string) (jobstore.Snapshot, error)
}

// NewSubmitHandler returns an http.HandlerFunc for POST /api/v1/profiles.
// It starts the pipeline and returns immediately; progress is observed via
// the status and stream endpoints.
func NewSubmitHandler(svc ProfileStarter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			SubjectName string   `json:"subject_name"`
			SeedURLs    []string `json:"seed_urls"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		req.SubjectName = strings.TrimSpace(req.SubjectName)
		if req.SubjectName == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "subject_name is required", nil)
			return
		}

		snap, err := svc.StartProfile(r.Context(), req.SubjectName, req.SeedURLs)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not start profile generation", nil)
			return
		}

		response.Accepted(w, map[string]any{
			"job_id":      snap.ID,
			"status":      snap.Status,
			"total_steps": snap.TotalSteps,
		})
	}
}
