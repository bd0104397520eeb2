package middleware

import (
	"net/http"
	"strings"

	"mediq/pkg/logger"
)

// ContentTypeValidation rejects body-carrying requests that are not JSON
// before they reach a handler. GET and DELETE pass through untouched.
func ContentTypeValidation(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch:
				// Strip parameters like "; charset=utf-8" before comparing.
				mediaType, _, _ := strings.Cut(r.Header.Get("Content-Type"), ";")
				if strings.TrimSpace(mediaType) != "application/json" {
					log.Warn("Invalid Content-Type header",
						"request_id", requestID(r.Context()),
						"content_type", mediaType,
						"path", r.URL.Path,
						"method", r.Method,
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusUnsupportedMediaType)
					_, _ = w.Write([]byte(`{"error":"Content-Type must be application/json"}`))
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
