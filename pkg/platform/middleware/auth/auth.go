// Package auth authenticates bearer tokens and throttles clients that keep
// presenting bad ones.
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	dErrors "casedocs/pkg/domain-errors"
	"casedocs/pkg/platform/httputil"
	"casedocs/pkg/requestcontext"
)

// PrincipalValidator turns a bearer token into the authenticated caller.
type PrincipalValidator interface {
	ValidateToken(token string) (requestcontext.Principal, error)
}

// AttemptTracker counts failed authentications per client.
type AttemptTracker interface {
	Record(ctx context.Context, key string) (int, error)
	Count(ctx context.Context, key string) (int, error)
	Reset(ctx context.Context, key string) error
}

// RejectionRecorder is satisfied by the metrics collector.
type RejectionRecorder interface {
	IncrementAttemptRejections()
}

type Options struct {
	Tracker     AttemptTracker
	MaxFailures int
	Metrics     RejectionRecorder
}

// RequireAuth rejects requests without a valid bearer token and stores the
// principal for downstream handlers. Once a client IP reaches MaxFailures
// within the tracker window every further request is refused with 429
// before the token is looked at.
func RequireAuth(validator PrincipalValidator, opts Options, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			clientIP := requestcontext.ClientIP(ctx)

			failures := failureCount(ctx, opts, clientIP, logger)
			if opts.MaxFailures > 0 && failures >= opts.MaxFailures {
				if opts.Metrics != nil {
					opts.Metrics.IncrementAttemptRejections()
				}
				logger.WarnContext(ctx, "too many failed authentication attempts",
					"client_ip", clientIP,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeTooManyRequests, "too many failed authentication attempts"))
				return
			}

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				recordFailure(ctx, opts, clientIP, logger)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			principal, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				recordFailure(ctx, opts, clientIP, logger)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			if failures > 0 {
				if err := opts.Tracker.Reset(ctx, clientIP); err != nil {
					logger.ErrorContext(ctx, "failed to reset authentication attempts", "error", err)
				}
			}

			ctx = requestcontext.WithActor(ctx, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// failureCount fails open: a tracker outage reads as zero failures so it
// cannot lock every caller out.
func failureCount(ctx context.Context, opts Options, clientIP string, logger *slog.Logger) int {
	if opts.Tracker == nil || clientIP == "" {
		return 0
	}
	n, err := opts.Tracker.Count(ctx, clientIP)
	if err != nil {
		logger.ErrorContext(ctx, "failed to read authentication attempts", "error", err)
		return 0
	}
	return n
}

func recordFailure(ctx context.Context, opts Options, clientIP string, logger *slog.Logger) {
	if opts.Tracker == nil || clientIP == "" {
		return
	}
	if _, err := opts.Tracker.Record(ctx, clientIP); err != nil {
		logger.ErrorContext(ctx, "failed to record authentication attempt", "error", err)
	}
}
