package testutil

import (
	"net/http"

	"casedocs/pkg/requestcontext"
)

// AsActor returns req carrying the principal the auth middleware would set.
func AsActor(req *http.Request, id string, roles ...string) *http.Request {
	ctx := requestcontext.WithActor(req.Context(), requestcontext.Principal{ID: id, Roles: roles})
	return req.WithContext(ctx)
}

// ActorMiddleware injects a fixed principal, for routers mounted without RequireAuth.
// current is read per request so a suite can switch actors between calls.
func ActorMiddleware(current *requestcontext.Principal) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(requestcontext.WithActor(r.Context(), *current)))
		})
	}
}
