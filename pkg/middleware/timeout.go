package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// deadlineWriter lets exactly one party produce the response: the handler
// goroutine, or the timeout path once the deadline passes. Late handler
// writes after a timeout are discarded instead of corrupting the reply.
type deadlineWriter struct {
	http.ResponseWriter

	mu      sync.Mutex
	expired bool
	replied bool
}

func (dw *deadlineWriter) WriteHeader(code int) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.expired || dw.replied {
		return
	}
	dw.replied = true
	dw.ResponseWriter.WriteHeader(code)
}

func (dw *deadlineWriter) Write(b []byte) (int, error) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.expired {
		return 0, http.ErrHandlerTimeout
	}
	dw.replied = true
	return dw.ResponseWriter.Write(b)
}

// expire claims the response for the timeout path. Returns true when the
// handler had not replied yet, meaning the caller must write the timeout
// body itself.
func (dw *deadlineWriter) expire() bool {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	dw.expired = true
	return !dw.replied
}

// RequestTimeout bounds request handling. The handler keeps running in its
// goroutine after expiry (repositories carry their own per-op timeouts and
// the request context is cancelled), but its writes no longer reach the
// client.
func RequestTimeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			dw := &deadlineWriter{ResponseWriter: w}
			done := make(chan struct{})

			go func() {
				next.ServeHTTP(dw, r.WithContext(ctx))
				close(done)
			}()

			select {
			case <-done:
			case <-ctx.Done():
				if dw.expire() {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusGatewayTimeout)
					_, _ = w.Write([]byte(`{"error":"Request timed out","code":"TIMEOUT"}`))
				}
			}
		})
	}
}
