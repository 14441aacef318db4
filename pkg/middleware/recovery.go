package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// recoveryBody is static so the panic path never depends on an encoder.
const recoveryBody = `{"error":{"code":"INTERNAL_ERROR","message":"an internal error occurred"}}` + "\n"

// Recovery converts handler panics into a 500 response and logs the stack.
// http.ErrAbortHandler passes through untouched; the server uses it to abort
// the connection without a reply.
func Recovery(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				l.ErrorContext(r.Context(), "panic recovered",
					slog.Any("panic", rec),
					slog.String("stack", string(debug.Stack())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(recoveryBody))
			}()

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(fn)
	}
}
