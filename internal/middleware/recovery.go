package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/onnwee/particle-dynamics/internal/errorreporting"
	"github.com/onnwee/particle-dynamics/internal/logger"
)

// Recover turns handler panics into 500 responses and reports them.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.ErrorContext(r.Context(), "Panic recovered",
					"error", rec,
					"stack", string(debug.Stack()),
					"method", r.Method,
					"path", r.URL.Path,
				)
				errorreporting.CapturePanic(r.Method+" "+r.URL.Path, rec)
				WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
