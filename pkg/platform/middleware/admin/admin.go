package admin

import (
	"log/slog"
	"net/http"

	dErrors "casedocs/pkg/domain-errors"
	"casedocs/pkg/platform/httputil"
	"casedocs/pkg/requestcontext"
)

// RequireAdmin admits only principals holding the admin role.
// Mount behind auth.RequireAuth.
func RequireAdmin(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			actor := requestcontext.Actor(ctx)
			if !actor.Authenticated() {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
				return
			}
			if !actor.IsAdmin() {
				logger.WarnContext(ctx, "admin role required",
					"actor", actor.ID,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "admin role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
