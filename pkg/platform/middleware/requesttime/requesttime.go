// Package requesttime pins one "now" per request so lock timestamps, job
// creation times and expiry checks within a request agree.
package requesttime

import (
	"net/http"
	"time"

	"casedocs/pkg/requestcontext"
)

// Middleware stores the arrival time on the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
