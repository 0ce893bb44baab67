package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"

	"casedocs/pkg/requestcontext"
)

type stubValidator struct{}

func (stubValidator) ValidateToken(token string) (requestcontext.Principal, error) {
	if token == "good" {
		return requestcontext.Principal{ID: "staff-1", Roles: []string{requestcontext.RoleStaff}}, nil
	}
	return requestcontext.Principal{}, errors.New("invalid token")
}

type countingTracker struct {
	counts map[string]int
	resets int
	err    error
}

func (t *countingTracker) Record(_ context.Context, key string) (int, error) {
	if t.err != nil {
		return 0, t.err
	}
	t.counts[key]++
	return t.counts[key], nil
}

func (t *countingTracker) Count(_ context.Context, key string) (int, error) {
	if t.err != nil {
		return 0, t.err
	}
	return t.counts[key], nil
}

func (t *countingTracker) Reset(_ context.Context, key string) error {
	t.resets++
	delete(t.counts, key)
	return nil
}

type rejections struct{ n int }

func (r *rejections) IncrementAttemptRejections() { r.n++ }

type RequireAuthSuite struct {
	suite.Suite
	tracker  *countingTracker
	rejected *rejections
	handler  http.Handler
	actor    requestcontext.Principal
}

func TestRequireAuthSuite(t *testing.T) {
	suite.Run(t, new(RequireAuthSuite))
}

func (s *RequireAuthSuite) SetupTest() {
	s.tracker = &countingTracker{counts: map[string]int{}}
	s.rejected = &rejections{}
	s.actor = requestcontext.Principal{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mw := RequireAuth(stubValidator{}, Options{Tracker: s.tracker, MaxFailures: 3, Metrics: s.rejected}, logger)
	s.handler = mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.actor = requestcontext.Actor(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
}

func (s *RequireAuthSuite) do(auth string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if auth != "" {
		r.Header.Set("Authorization", auth)
	}
	r = r.WithContext(requestcontext.WithClientIP(r.Context(), "203.0.113.1"))
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, r)
	return w
}

func (s *RequireAuthSuite) TestValidTokenSetsActor() {
	w := s.do("Bearer good")
	s.Equal(http.StatusNoContent, w.Code)
	s.Equal("staff-1", s.actor.ID)
	s.True(s.actor.HasRole(requestcontext.RoleStaff))
}

func (s *RequireAuthSuite) TestMissingAndInvalidTokensAreCounted() {
	s.Equal(http.StatusUnauthorized, s.do("").Code)
	s.Equal(http.StatusUnauthorized, s.do("Bearer bad").Code)
	s.Equal(2, s.tracker.counts["203.0.113.1"])
}

// Justification: after the limit is reached even a valid token is refused,
// otherwise the limiter would only slow down guessing.
func (s *RequireAuthSuite) TestBlocksAfterMaxFailures() {
	for range 3 {
		s.Equal(http.StatusUnauthorized, s.do("Bearer bad").Code)
	}
	w := s.do("Bearer good")
	s.Equal(http.StatusTooManyRequests, w.Code)
	s.JSONEq(`{"error":"too_many_requests","error_description":"too many failed authentication attempts"}`, w.Body.String())
	s.Equal(1, s.rejected.n)
	s.False(s.actor.Authenticated())
}

func (s *RequireAuthSuite) TestTrackerOutageFailsOpen() {
	s.tracker.err = errors.New("redis down")
	s.Equal(http.StatusNoContent, s.do("Bearer good").Code)
	s.Equal(http.StatusUnauthorized, s.do("Bearer bad").Code)
}

func (s *RequireAuthSuite) TestSuccessClearsEarlierFailures() {
	s.Equal(http.StatusUnauthorized, s.do("Bearer bad").Code)
	s.Equal(http.StatusUnauthorized, s.do("Bearer bad").Code)

	s.Equal(http.StatusNoContent, s.do("Bearer good").Code)
	s.Zero(s.tracker.counts["203.0.113.1"])
	s.Equal(1, s.tracker.resets)

	s.Run("clean client is not reset again", func() {
		s.Equal(http.StatusNoContent, s.do("Bearer good").Code)
		s.Equal(1, s.tracker.resets)
	})
}
