package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hoffnungslabor/mediable/pkg/logger"
)

// accessWriter captures the status and byte count for the access log.
type accessWriter struct {
	http.ResponseWriter
	status  int
	written int
}

func (w *accessWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *accessWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.written += n
	return n, err
}

// correlateRequest reads the X-Correlation-ID header, minting a fresh ID when
// the caller sent none, stores it in the request context, and echoes it back
// on the response.
func correlateRequest(w http.ResponseWriter, r *http.Request) (*http.Request, string) {
	id := r.Header.Get("X-Correlation-ID")
	if id == "" {
		id = uuid.New().String()
	}
	w.Header().Set("X-Correlation-ID", id)
	return r.WithContext(logger.WithCorrelationID(r.Context(), id)), id
}

// RequestLogging writes one access-log line per request with method, path,
// status, duration, and correlation ID. Health and metrics probes log at
// debug level so they do not drown out the association traffic.
func RequestLogging(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			r, correlationID := correlateRequest(w, r)

			wrapped := &accessWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			attrs := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", wrapped.status),
				slog.Duration("duration", time.Since(start)),
				slog.Int("bytes", wrapped.written),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("user_agent", r.UserAgent()),
				slog.String("correlation_id", correlationID),
			}
			// Tag and match parameters drive query semantics, so keep them
			// visible in the access log.
			if q := r.URL.RawQuery; q != "" {
				attrs = append(attrs, slog.String("query", q))
			}

			if isProbePath(r.URL.Path) {
				l.DebugContext(r.Context(), "http request", attrs...)
				return
			}
			l.InfoContext(r.Context(), "http request", attrs...)
		}
		return http.HandlerFunc(fn)
	}
}

func isProbePath(path string) bool {
	switch path {
	case "/health/live", "/health/ready", "/metrics":
		return true
	}
	return false
}
