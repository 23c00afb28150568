package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/prospecthq/prospector/internal/api/response"
	"github.com/prospecthq/prospector/internal/config"
	"github.com/prospecthq/prospector/internal/jobstore"
	"github.com/prospecthq/prospector/pkg/models"
)

// streamFrame is a terminal SSE event: complete, error, or cancelled.
type streamFrame struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Result  any    `json:"result,omitempty"`
}

// streamProgress is the SSE view of a running job. It mirrors the poll body
// plus live research activity when the provider reports it.
type streamProgress struct {
	Type       string                   `json:"type"`
	Phase      jobstore.Phase           `json:"phase,omitempty"`
	Step       int                      `json:"step"`
	TotalSteps int                      `json:"total_steps"`
	Message    string                   `json:"message"`
	Milestones []string                 `json:"milestones"`
	Activity   *models.ResearchActivity `json:"activity,omitempty"`
}

// NewStreamHandler returns an http.HandlerFunc for GET /api/v1/profiles/{jobID}/stream.
// It serves progress as server-sent events: data-only frames on change,
// comment heartbeats to keep intermediaries from cutting the connection, and
// a hard session cap after which clients fall back to polling.
func NewStreamHandler(jobs JobReader, cfg config.StreamConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found", nil)
			return
		}
		if _, ok := jobs.Status(id); !ok {
			response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found", nil)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			response.Error(w, http.StatusInternalServerError, "STREAMING_UNSUPPORTED", "Streaming is not supported by this connection", nil)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache, no-transform")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		send := func(v any) {
			data, err := json.Marshal(v)
			if err != nil {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}

		var lastSent string
		// emit writes the current job state and reports whether the stream
		// should close. Unchanged progress frames are suppressed so idle jobs
		// produce heartbeats only.
		emit := func() bool {
			snap, ok := jobs.Status(id)
			if !ok {
				send(streamFrame{Type: "error", Message: "Job expired"})
				return true
			}
			switch snap.Status {
			case jobstore.StatusComplete:
				send(streamFrame{Type: "complete", Result: snap.Result})
				return true
			case jobstore.StatusFailed:
				msg := snap.Error
				if msg == "" {
					msg = "Profile generation failed"
				}
				send(streamFrame{Type: "error", Message: msg})
				return true
			case jobstore.StatusCancelled:
				send(streamFrame{Type: "cancelled"})
				return true
			}

			frame := streamProgress{
				Type:       "progress",
				Phase:      snap.Phase,
				Step:       snap.CurrentStep,
				TotalSteps: snap.TotalSteps,
				Message:    snap.LatestMessage(),
				Milestones: snap.Milestones(),
				Activity:   snap.Activity,
			}
			data, err := json.Marshal(frame)
			if err != nil {
				return false
			}
			if string(data) == lastSent {
				return false
			}
			lastSent = string(data)
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
			return false
		}

		if emit() {
			return
		}

		poll := time.NewTicker(cfg.PollInterval)
		defer poll.Stop()
		heartbeat := time.NewTicker(cfg.HeartbeatInterval)
		defer heartbeat.Stop()
		deadline := time.NewTimer(cfg.MaxSessionDuration)
		defer deadline.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-deadline.C:
				send(streamFrame{Type: "error", Message: "Stream session expired, fall back to polling"})
				return
			case <-heartbeat.C:
				fmt.Fprint(w, ":\n\n")
				flusher.Flush()
			case <-poll.C:
				if emit() {
					return
				}
			}
		}
	}
}
