package middleware

import (
	"net/http"
	"runtime/debug"

	"mediq/pkg/logger"
)

// Recovery turns a handler panic into a 500 instead of tearing down the
// connection, logging the stack so the crash is not lost.
func Recovery(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					log.Error("Panic recovered",
						"request_id", requestID(r.Context()),
						"error", v,
						"method", r.Method,
						"path", r.URL.Path,
						"stack", string(debug.Stack()),
					)

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = w.Write([]byte(`{"error":"Internal server error"}`))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
