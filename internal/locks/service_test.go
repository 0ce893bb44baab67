package locks

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"casedocs/pkg/platform/sentinel"
	"casedocs/pkg/requestcontext"
)

var (
	staffA = requestcontext.Principal{ID: "worker-a", Roles: []string{requestcontext.RoleStaff}}
	staffB = requestcontext.Principal{ID: "worker-b", Roles: []string{requestcontext.RoleStaff}}
	admin  = requestcontext.Principal{ID: "ops", Roles: []string{requestcontext.RoleAdmin}}
	viewer = requestcontext.Principal{ID: "viewer", Roles: []string{"viewer"}}
)

type ServiceSuite struct {
	suite.Suite
	store   *InMemoryStore
	service *Service
	now     time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.store.AddDocument(Document{ID: "doc-1", CaseID: "case-1"})
	s.store.AddDocument(Document{ID: "doc-2", CaseID: "case-1"})
	var err error
	s.service, err = New(s.store, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.Require().NoError(err)
	s.now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
}

func (s *ServiceSuite) as(p requestcontext.Principal) context.Context {
	ctx := requestcontext.WithActor(context.Background(), p)
	return requestcontext.WithTime(ctx, s.now)
}

func (s *ServiceSuite) lockAt(docID, worker string, at time.Time) {
	s.Require().NoError(s.store.SetLock(context.Background(), docID, worker, at))
}

// =============================================================================
// Acquire
// =============================================================================

func (s *ServiceSuite) TestAcquireFreeDocument() {
	res := s.service.Acquire(s.as(staffA), "doc-1", "", 0)
	s.True(res.Success)
	s.Equal(ReasonSuccess, res.Reason)
	s.Equal("worker-a", res.WorkerID)
	s.Require().NotNil(res.Timestamp)
	s.Equal(s.now, *res.Timestamp)

	doc, err := s.store.Get(context.Background(), "doc-1")
	s.Require().NoError(err)
	s.Equal("worker-a", doc.LockedBy)
}

func (s *ServiceSuite) TestAcquireHeldByOtherWorker() {
	s.lockAt("doc-1", "worker-b", s.now.Add(-time.Minute))

	res := s.service.Acquire(s.as(staffA), "doc-1", "", 0)
	s.False(res.Success)
	s.Equal(ReasonAlreadyLocked, res.Reason)
	s.Equal("worker-b", res.LockedBy)
	s.Require().NotNil(res.LockAgeSeconds)
	s.Equal(int64(60), *res.LockAgeSeconds)
}

// Justification: a lock older than the timeout is reclaimable by anyone.
func (s *ServiceSuite) TestAcquireReclaimsExpiredLock() {
	s.lockAt("doc-1", "worker-b", s.now.Add(-6*time.Minute))

	res := s.service.Acquire(s.as(staffA), "doc-1", "", 5*time.Minute)
	s.True(res.Success)
	s.Equal(ReasonSuccess, res.Reason)

	doc, _ := s.store.Get(context.Background(), "doc-1")
	s.Equal("worker-a", doc.LockedBy)
}

func (s *ServiceSuite) TestAcquireByHolderRefreshes() {
	s.lockAt("doc-1", "worker-a", s.now.Add(-time.Minute))
	res := s.service.Acquire(s.as(staffA), "doc-1", "", 0)
	s.True(res.Success)

	doc, _ := s.store.Get(context.Background(), "doc-1")
	s.Equal(s.now, *doc.LockedAt)
}

func (s *ServiceSuite) TestAdminBypassesActiveLock() {
	s.lockAt("doc-1", "worker-b", s.now.Add(-time.Minute))
	res := s.service.Acquire(s.as(admin), "doc-1", "", 0)
	s.True(res.Success)
	s.Equal("ops", res.WorkerID)
}

func (s *ServiceSuite) TestAcquireValidation() {
	tests := []struct {
		name   string
		actor  requestcontext.Principal
		doc    string
		worker string
		ttl    time.Duration
		want   Reason
	}{
		{"anonymous", requestcontext.Principal{}, "doc-1", "", 0, ReasonAuthenticationRequired},
		{"missing role", viewer, "doc-1", "", 0, ReasonAccessDenied},
		{"blank document", staffA, "  ", "", 0, ReasonInvalidInput},
		{"negative timeout", staffA, "doc-1", "", -time.Second, ReasonInvalidInput},
		{"foreign worker id", staffA, "doc-1", "worker-b", 0, ReasonAccessDenied},
		{"unknown document", staffA, "doc-9", "", 0, ReasonDocumentNotFound},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			res := s.service.Acquire(s.as(tt.actor), tt.doc, tt.worker, tt.ttl)
			s.False(res.Success)
			s.Equal(tt.want, res.Reason)
		})
	}
}

func (s *ServiceSuite) TestAdminMayLockForAnotherWorker() {
	res := s.service.Acquire(s.as(admin), "doc-1", "worker-b", 0)
	s.True(res.Success)
	s.Equal("worker-b", res.WorkerID)
}

// Justification: the core mutual-exclusion property; exactly one of many
// concurrent callers wins an unlocked document.
func (s *ServiceSuite) TestConcurrentAcquireSingleWinner() {
	const callers = 16
	var wg sync.WaitGroup
	results := make([]Result, callers)
	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := requestcontext.Principal{ID: "worker-" + string(rune('a'+i)), Roles: []string{requestcontext.RoleStaff}}
			results[i] = s.service.Acquire(s.as(p), "doc-2", "", 0)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, r := range results {
		if r.Success {
			winners++
			continue
		}
		s.Contains([]Reason{ReasonAlreadyLocked, ReasonSerializationConflict}, r.Reason)
	}
	s.Equal(1, winners)
}

// =============================================================================
// Release
// =============================================================================

func (s *ServiceSuite) TestReleaseByHolder() {
	s.lockAt("doc-1", "worker-a", s.now.Add(-time.Minute))
	res := s.service.Release(s.as(staffA), "doc-1")
	s.True(res.Success)
	s.Equal("worker-a", res.WorkerID)

	doc, _ := s.store.Get(context.Background(), "doc-1")
	s.False(doc.Locked())
}

func (s *ServiceSuite) TestReleaseByOtherWorkerDenied() {
	s.lockAt("doc-1", "worker-a", s.now.Add(-time.Minute))
	res := s.service.Release(s.as(staffB), "doc-1")
	s.False(res.Success)
	s.Equal(ReasonAccessDenied, res.Reason)
	s.Equal("worker-a", res.LockedBy)
}

func (s *ServiceSuite) TestReleaseByAdmin() {
	s.lockAt("doc-1", "worker-a", s.now.Add(-time.Minute))
	res := s.service.Release(s.as(admin), "doc-1")
	s.True(res.Success)
}

func (s *ServiceSuite) TestReleaseNotLocked() {
	res := s.service.Release(s.as(staffA), "doc-1")
	s.Equal(ReasonNotLocked, res.Reason)
}

func (s *ServiceSuite) TestReleaseUnknownDocument() {
	res := s.service.Release(s.as(staffA), "missing")
	s.Equal(ReasonDocumentNotFound, res.Reason)
}

// =============================================================================
// IsLocked
// =============================================================================

func (s *ServiceSuite) TestIsLocked() {
	st, err := s.service.IsLocked(s.as(staffA), "doc-1")
	s.Require().NoError(err)
	s.False(st.Locked)

	s.lockAt("doc-1", "worker-a", s.now.Add(-2*time.Minute))
	st, err = s.service.IsLocked(s.as(staffA), "doc-1")
	s.Require().NoError(err)
	s.True(st.Locked)
	s.False(st.Expired)
	s.Equal(int64(120), st.LockAgeSeconds)

	s.lockAt("doc-1", "worker-a", s.now.Add(-10*time.Minute))
	st, _ = s.service.IsLocked(s.as(staffA), "doc-1")
	s.False(st.Locked)
	s.True(st.Expired)
}

func (s *ServiceSuite) TestIsLockedUnknownDocument() {
	_, err := s.service.IsLocked(s.as(staffA), "missing")
	s.Error(err)
}

// =============================================================================
// CleanupExpired
// =============================================================================

func (s *ServiceSuite) TestCleanupReleasesOnlyExpired() {
	s.lockAt("doc-1", "worker-a", s.now.Add(-15*time.Minute))
	s.lockAt("doc-2", "worker-b", s.now.Add(-time.Minute))

	res := s.service.CleanupExpired(s.as(admin), 0)
	s.True(res.Success)
	s.Equal(1, res.Count)
	s.Equal([]Reclaimed{{ResourceID: "doc-1", WorkerID: "worker-a", HeldDurationSeconds: 900}}, res.Released)

	doc, _ := s.store.Get(context.Background(), "doc-2")
	s.True(doc.Locked())
}

func (s *ServiceSuite) TestCleanupRequiresAdmin() {
	res := s.service.CleanupExpired(s.as(staffA), 0)
	s.False(res.Success)
	s.Equal(ReasonAccessDenied, res.Reason)

	res = s.service.CleanupExpired(s.as(requestcontext.Principal{}), 0)
	s.Equal(ReasonAuthenticationRequired, res.Reason)
}

// =============================================================================
// Error normalisation
// =============================================================================

type failingRepo struct {
	*InMemoryStore
	err error
}

func (r failingRepo) RunInTx(context.Context, string, func(context.Context, Store) error) error {
	return r.err
}

func (r failingRepo) ReleaseOlderThan(context.Context, time.Time) ([]ReleasedLock, error) {
	return nil, r.err
}

func (s *ServiceSuite) TestStorageErrorsBecomeReasons() {
	tests := []struct {
		err  error
		want Reason
	}{
		{sentinel.ErrConflict, ReasonSerializationConflict},
		{errors.New("connection reset"), ReasonInternalError},
	}
	for _, tt := range tests {
		svc, err := New(failingRepo{InMemoryStore: s.store, err: tt.err}, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
		s.Require().NoError(err)

		s.Equal(tt.want, svc.Acquire(s.as(staffA), "doc-1", "", 0).Reason)
		s.Equal(tt.want, svc.Release(s.as(staffA), "doc-1").Reason)
		s.Equal(tt.want, svc.CleanupExpired(s.as(admin), 0).Reason)
	}
	s.True(ReasonSerializationConflict.Retryable())
}
