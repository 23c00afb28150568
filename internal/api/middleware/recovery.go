package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/prospecthq/prospector/internal/api/response"
)

// Recovery converts handler panics into 500 responses. Pipeline goroutines
// have their own recover; this one only covers the HTTP path.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("panic recovered",
					"method", r.Method,
					"path", r.URL.Path,
					"error", err,
					"stack", string(debug.Stack()),
				)
				response.Error(w, http.StatusInternalServerError,
					"INTERNAL_ERROR", "An unexpected error occurred", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
