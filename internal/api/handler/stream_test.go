package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prospecthq/prospector/internal/api/handler"
	"github.com/prospecthq/prospector/internal/config"
	"github.com/prospecthq/prospector/internal/jobstore"
)

func streamConfig() config.StreamConfig {
	return config.StreamConfig{
		PollInterval:       10 * time.Millisecond,
		HeartbeatInterval:  time.Hour,
		MaxSessionDuration: time.Hour,
	}
}

func streamRequest(id uuid.UUID) *http.Request {
	return httptest.NewRequest("GET", "/x/"+id.String()+"/stream", nil)
}

// frames splits an SSE body into its data payloads, dropping heartbeats.
func frames(body string) []string {
	var out []string
	for _, chunk := range strings.Split(body, "\n\n") {
		if strings.HasPrefix(chunk, "data: ") {
			out = append(out, strings.TrimPrefix(chunk, "data: "))
		}
	}
	return out
}

func TestStream_UnknownJob(t *testing.T) {
	h := handler.NewStreamHandler(storeReader{newJobStore()}, streamConfig())

	w := serve("GET", "/x/{jobID}/stream", h, streamRequest(uuid.New()))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
}

func TestStream_Headers(t *testing.T) {
	store := newJobStore()
	snap := store.Create("Ada", 38)
	require.NoError(t, store.Complete(snap.ID, "done"))

	h := handler.NewStreamHandler(storeReader{store}, streamConfig())
	w := serve("GET", "/x/{jobID}/stream", h, streamRequest(snap.ID))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no", w.Header().Get("X-Accel-Buffering"))
	assert.Contains(t, w.Header().Get("Cache-Control"), "no-cache")
}

func TestStream_TerminalJobGetsSingleFrame(t *testing.T) {
	store := newJobStore()
	snap := store.Create("Ada", 38)
	require.NoError(t, store.Complete(snap.ID, map[string]string{"profile": "text"}))

	h := handler.NewStreamHandler(storeReader{store}, streamConfig())
	w := serve("GET", "/x/{jobID}/stream", h, streamRequest(snap.ID))

	got := frames(w.Body.String())
	require.Len(t, got, 1)
	assert.Contains(t, got[0], `"type":"complete"`)
	assert.Contains(t, got[0], `"result"`)
}

func TestStream_FailedJobEmitsErrorFrame(t *testing.T) {
	store := newJobStore()
	snap := store.Create("Ada", 38)
	require.NoError(t, store.Fail(snap.ID, "writing: provider unavailable"))

	h := handler.NewStreamHandler(storeReader{store}, streamConfig())
	w := serve("GET", "/x/{jobID}/stream", h, streamRequest(snap.ID))

	got := frames(w.Body.String())
	require.Len(t, got, 1)
	assert.Contains(t, got[0], `"type":"error"`)
	assert.Contains(t, got[0], "writing: provider unavailable")
}

func TestStream_CancelledJobEmitsCancelledFrame(t *testing.T) {
	store := newJobStore()
	snap := store.Create("Ada", 38)
	_, err := store.Cancel(snap.ID)
	require.NoError(t, err)

	h := handler.NewStreamHandler(storeReader{store}, streamConfig())
	w := serve("GET", "/x/{jobID}/stream", h, streamRequest(snap.ID))

	got := frames(w.Body.String())
	require.Len(t, got, 1)
	assert.Contains(t, got[0], `"type":"cancelled"`)
}

func TestStream_ProgressThenComplete(t *testing.T) {
	store := newJobStore()
	snap := store.Create("Ada", 38)
	require.NoError(t, store.AddProgress(snap.ID, "Identifying Ada...", jobstore.PhaseResearch, 1))

	go func() {
		time.Sleep(40 * time.Millisecond)
		_ = store.AddProgress(snap.ID, "✓ Research complete: 3 sources", jobstore.PhaseResearch, 7)
		time.Sleep(40 * time.Millisecond)
		_ = store.Complete(snap.ID, "done")
	}()

	h := handler.NewStreamHandler(storeReader{store}, streamConfig())
	w := serve("GET", "/x/{jobID}/stream", h, streamRequest(snap.ID))

	got := frames(w.Body.String())
	require.GreaterOrEqual(t, len(got), 3)
	assert.Contains(t, got[0], `"type":"progress"`)
	assert.Contains(t, got[0], "Identifying Ada...")
	assert.Contains(t, got[len(got)-2], "✓ Research complete: 3 sources")
	assert.Contains(t, got[len(got)-1], `"type":"complete"`)
}

func TestStream_UnchangedStateIsDeduped(t *testing.T) {
	store := newJobStore()
	snap := store.Create("Ada", 38)
	require.NoError(t, store.AddProgress(snap.ID, "Working...", jobstore.PhaseResearch, 3))

	cfg := streamConfig()
	cfg.MaxSessionDuration = 100 * time.Millisecond

	h := handler.NewStreamHandler(storeReader{store}, cfg)
	w := serve("GET", "/x/{jobID}/stream", h, streamRequest(snap.ID))

	got := frames(w.Body.String())
	// One progress frame despite many polls, then the session-cap error.
	require.Len(t, got, 2)
	assert.Contains(t, got[0], `"type":"progress"`)
	assert.Contains(t, got[1], `"type":"error"`)
	assert.Contains(t, got[1], "fall back to polling")

	// The cap closes the stream, not the job.
	after, ok := store.Get(snap.ID)
	require.True(t, ok)
	assert.Equal(t, jobstore.StatusRunning, after.Status)
}

func TestStream_HeartbeatsKeepConnectionAlive(t *testing.T) {
	store := newJobStore()
	snap := store.Create("Ada", 38)

	cfg := config.StreamConfig{
		PollInterval:       time.Hour,
		HeartbeatInterval:  10 * time.Millisecond,
		MaxSessionDuration: 100 * time.Millisecond,
	}

	h := handler.NewStreamHandler(storeReader{store}, cfg)
	w := serve("GET", "/x/{jobID}/stream", h, streamRequest(snap.ID))

	// Comment-only heartbeat frames between the initial progress frame and
	// the session-cap error.
	assert.GreaterOrEqual(t, strings.Count(w.Body.String(), ":\n\n"), 2)
}

func TestStream_ClientDisconnectStopsHandler(t *testing.T) {
	store := newJobStore()
	snap := store.Create("Ada", 38)

	h := handler.NewStreamHandler(storeReader{store}, streamConfig())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = requestWithJobID(r, snap.ID.String())
		h.ServeHTTP(w, r)
	}))
	defer srv.Close()

	req, err := http.NewRequest("GET", srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	// The server handler must return once the client goes away; Close would
	// hang on a leaked handler goroutine.
	done := make(chan struct{})
	go func() {
		srv.CloseClientConnections()
		srv.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream handler leaked after client disconnect")
	}
}

// requestWithJobID injects a chi route parameter outside a router.
func requestWithJobID(r *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("jobID", id)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
