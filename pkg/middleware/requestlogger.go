package middleware

import (
	"log/slog"
	"net/http"

	"github.com/hoffnungslabor/mediable/pkg/logger"
)

// RequestLogger derives a request-scoped logger from base, enriched with the
// correlation ID and the active trace/span IDs, and stores it in the context
// for logger.FromContext. Mount it after RequestLogging and Tracing so both
// fields exist by the time the logger is built.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		}
		return http.HandlerFunc(fn)
	}
}
