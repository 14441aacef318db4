package middleware

import "net/http"

// NoStore marks GET responses "Cache-Control: no-store". Association queries
// must reflect the latest mutation, so intermediaries never cache them.
func NoStore() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				w.Header().Set("Cache-Control", "no-store")
			}
			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(fn)
	}
}
