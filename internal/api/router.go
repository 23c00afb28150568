package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/prospecthq/prospector/internal/api/middleware"
	"github.com/prospecthq/prospector/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	RateLimit *mw.RateLimit

	HealthHandler http.HandlerFunc
	SubmitHandler http.HandlerFunc
	StatusHandler http.HandlerFunc
	StreamHandler http.HandlerFunc
	CancelHandler http.HandlerFunc
	ListProfiles  http.HandlerFunc
	GetProfile    http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimit.Limit)

		r.Post("/api/v1/profiles", orNotImplemented(deps.SubmitHandler))
		r.Get("/api/v1/profiles", orNotImplemented(deps.ListProfiles))
		r.Get("/api/v1/profiles/archive/{profileID}", orNotImplemented(deps.GetProfile))

		r.Get("/api/v1/profiles/{jobID}/status", orNotImplemented(deps.StatusHandler))
		r.Get("/api/v1/profiles/{jobID}/stream", orNotImplemented(deps.StreamHandler))
		r.Post("/api/v1/profiles/{jobID}/cancel", orNotImplemented(deps.CancelHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
