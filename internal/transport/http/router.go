// Package httptransport assembles the chi router: global middleware, public
// health checks, authenticated API routes and the admin group.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"casedocs/pkg/platform/httputil"
	"casedocs/pkg/platform/middleware/admin"
	"casedocs/pkg/platform/middleware/auth"
	"casedocs/pkg/platform/middleware/metadata"
	"casedocs/pkg/platform/middleware/request"
	"casedocs/pkg/platform/middleware/requesttime"
)

// Module contributes authenticated routes and admin-only routes.
type Module interface {
	Register(r chi.Router)
	RegisterAdmin(r chi.Router)
}

// PublicRoutes are mounted without authentication (signed file retrieval).
type PublicRoutes interface {
	Register(r chi.Router)
}

// Check pings one dependency for /healthz.
type Check func(ctx context.Context) error

type Deps struct {
	Logger    *slog.Logger
	Validator auth.PrincipalValidator
	Auth      auth.Options
	Modules   []Module
	Public    []PublicRoutes
	Checks    map[string]Check
	Metrics   http.Handler
	Timeout   time.Duration
}

func NewRouter(d Deps) http.Handler {
	timeout := d.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(d.Logger))
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(request.Logger(d.Logger))

	r.Get("/healthz", healthHandler(d.Checks))
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}
	for _, p := range d.Public {
		p.Register(r)
	}

	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(timeout))
		r.Use(auth.RequireAuth(d.Validator, d.Auth, d.Logger))
		for _, m := range d.Modules {
			m.Register(r)
		}
		r.Group(func(r chi.Router) {
			r.Use(admin.RequireAdmin(d.Logger))
			for _, m := range d.Modules {
				m.RegisterAdmin(r)
			}
		})
	})
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]Check) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(names))}
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				resp.Status = "degraded"
				resp.Checks[name] = err.Error()
				continue
			}
			resp.Checks[name] = "ok"
		}
		status := http.StatusOK
		if resp.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, status, resp)
	}
}
