package logging

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// HTTPMiddleware attaches a request-scoped logger to each request context
// and logs one line per completed request. It expects chi's RequestID
// middleware to run first.
func HTTPMiddleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			child := logger.With().
				Str(FieldRequestID, middleware.GetReqID(r.Context())).
				Str(FieldMethod, r.Method).
				Str(FieldPath, r.URL.Path).
				Logger()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(WithLogger(r.Context(), child)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			child.Info().
				Int(FieldStatus, status).
				Int64(FieldLatency, time.Since(start).Milliseconds()).
				Msg("request completed")
		})
	}
}
