// Package locks is the document lock manager: a mutual-exclusion primitive
// over document rows, independent of the PDF pipeline.
//
// Every operation reports its outcome as a Result with a Reason. Contention,
// authorization and storage failures are never returned as Go errors.
package locks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"casedocs/internal/platform/metrics"
	dErrors "casedocs/pkg/domain-errors"
	"casedocs/pkg/platform/sentinel"
	"casedocs/pkg/requestcontext"
)

const (
	opAcquire = "acquire"
	opRelease = "release"
	opCleanup = "cleanup"
)

type Service struct {
	repo             Repository
	logger           *slog.Logger
	metrics          *metrics.Metrics
	acquireTimeout   time.Duration
	cleanupThreshold time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithDefaults overrides the acquire timeout and cleanup threshold used when
// callers pass zero.
func WithDefaults(acquireTimeout, cleanupThreshold time.Duration) Option {
	return func(s *Service) {
		if acquireTimeout > 0 {
			s.acquireTimeout = acquireTimeout
		}
		if cleanupThreshold > 0 {
			s.cleanupThreshold = cleanupThreshold
		}
	}
}

func New(repo Repository, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, errors.New("lock repository is required")
	}
	s := &Service{
		repo:             repo,
		logger:           slog.Default(),
		acquireTimeout:   DefaultAcquireTimeout,
		cleanupThreshold: DefaultCleanupThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Acquire locks documentID for workerID (the caller when empty). An existing
// lock older than timeout is reclaimed. Admins bypass an active lock, and only
// admins may acquire on behalf of another worker.
func (s *Service) Acquire(ctx context.Context, documentID, workerID string, timeout time.Duration) Result {
	res := s.acquire(ctx, documentID, workerID, timeout)
	s.metrics.IncrementLockResult(opAcquire, string(res.Reason))
	return res
}

func (s *Service) acquire(ctx context.Context, documentID, workerID string, timeout time.Duration) Result {
	actor := requestcontext.Actor(ctx)
	if res, ok := authorize(actor); !ok {
		return res
	}
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return failure(ReasonInvalidInput, "document id is required")
	}
	if timeout < 0 {
		return failure(ReasonInvalidInput, "timeout must not be negative")
	}
	if timeout == 0 {
		timeout = s.acquireTimeout
	}
	workerID = strings.TrimSpace(workerID)
	if workerID == "" {
		workerID = actor.ID
	}
	if workerID != actor.ID && !actor.IsAdmin() {
		return failure(ReasonAccessDenied, "only admins may lock on behalf of another worker")
	}

	now := requestcontext.Now(ctx)
	var res Result
	err := s.repo.RunInTx(ctx, documentID, func(ctx context.Context, store Store) error {
		doc, err := store.GetForUpdate(ctx, documentID)
		if err != nil {
			return err
		}
		if doc.Locked() && doc.LockedBy != workerID && doc.Age(now) < timeout && !actor.IsAdmin() {
			res = heldBy(doc, now, ReasonAlreadyLocked, "document is locked by another worker")
			return nil
		}
		if err := store.SetLock(ctx, documentID, workerID, now); err != nil {
			return err
		}
		if doc.Locked() && doc.LockedBy != workerID {
			s.logger.InfoContext(ctx, "lock taken over",
				"document_id", documentID,
				"previous_holder", doc.LockedBy,
				"worker_id", workerID,
				"admin_bypass", doc.Age(now) < timeout,
			)
		}
		res = Result{Success: true, Reason: ReasonSuccess, WorkerID: workerID, Timestamp: &now}
		return nil
	})
	if err != nil {
		return s.fromError(ctx, opAcquire, documentID, err)
	}
	return res
}

// Release clears the lock on documentID. Only the holder or an admin may release.
func (s *Service) Release(ctx context.Context, documentID string) Result {
	res := s.release(ctx, documentID)
	s.metrics.IncrementLockResult(opRelease, string(res.Reason))
	return res
}

func (s *Service) release(ctx context.Context, documentID string) Result {
	actor := requestcontext.Actor(ctx)
	if res, ok := authorize(actor); !ok {
		return res
	}
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return failure(ReasonInvalidInput, "document id is required")
	}

	now := requestcontext.Now(ctx)
	var res Result
	err := s.repo.RunInTx(ctx, documentID, func(ctx context.Context, store Store) error {
		doc, err := store.GetForUpdate(ctx, documentID)
		if err != nil {
			return err
		}
		if !doc.Locked() {
			res = failure(ReasonNotLocked, "document is not locked")
			return nil
		}
		if doc.LockedBy != actor.ID && !actor.IsAdmin() {
			res = heldBy(doc, now, ReasonAccessDenied, "lock is held by another worker")
			return nil
		}
		if err := store.ClearLock(ctx, documentID); err != nil {
			return err
		}
		res = Result{Success: true, Reason: ReasonSuccess, WorkerID: doc.LockedBy, Timestamp: &now}
		return nil
	})
	if err != nil {
		return s.fromError(ctx, opRelease, documentID, err)
	}
	return res
}

// IsLocked is a best-effort read outside any transaction. Callers must still
// handle ALREADY_LOCKED from Acquire.
func (s *Service) IsLocked(ctx context.Context, documentID string) (Status, error) {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return Status{}, dErrors.New(dErrors.CodeValidation, "document id is required")
	}
	doc, err := s.repo.Get(ctx, documentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Status{}, dErrors.New(dErrors.CodeNotFound, "document not found")
		}
		return Status{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read lock")
	}
	st := Status{DocumentID: doc.ID}
	if !doc.Locked() {
		return st, nil
	}
	now := requestcontext.Now(ctx)
	age := doc.Age(now)
	st.LockedBy = doc.LockedBy
	st.LockedAt = doc.LockedAt
	st.LockAgeSeconds = int64(age / time.Second)
	st.Expired = age >= s.acquireTimeout
	st.Locked = !st.Expired
	return st, nil
}

// CleanupExpired releases every lock held longer than threshold. Admin only.
func (s *Service) CleanupExpired(ctx context.Context, threshold time.Duration) CleanupResult {
	res := s.cleanup(ctx, threshold)
	s.metrics.IncrementLockResult(opCleanup, string(res.Reason))
	return res
}

func (s *Service) cleanup(ctx context.Context, threshold time.Duration) CleanupResult {
	actor := requestcontext.Actor(ctx)
	if !actor.Authenticated() {
		return CleanupResult{Reason: ReasonAuthenticationRequired, Message: "authentication required", Released: []Reclaimed{}}
	}
	if !actor.IsAdmin() {
		return CleanupResult{Reason: ReasonAccessDenied, Message: "admin role required", Released: []Reclaimed{}}
	}
	if threshold < 0 {
		return CleanupResult{Reason: ReasonInvalidInput, Message: "timeout must not be negative", Released: []Reclaimed{}}
	}
	if threshold == 0 {
		threshold = s.cleanupThreshold
	}

	now := requestcontext.Now(ctx)
	released, err := s.repo.ReleaseOlderThan(ctx, now.Add(-threshold))
	if err != nil {
		r := s.fromError(ctx, opCleanup, "", err)
		return CleanupResult{Reason: r.Reason, Message: r.Message, Released: []Reclaimed{}}
	}

	out := make([]Reclaimed, 0, len(released))
	for _, r := range released {
		out = append(out, Reclaimed{
			ResourceID:          r.DocumentID,
			WorkerID:            r.LockedBy,
			HeldDurationSeconds: int64(now.Sub(r.LockedAt) / time.Second),
		})
	}
	if len(out) > 0 {
		s.logger.InfoContext(ctx, "expired locks released",
			"count", len(out),
			"threshold", threshold.String(),
			"actor", actor.ID,
		)
	}
	return CleanupResult{Success: true, Reason: ReasonSuccess, Released: out, Count: len(out)}
}

func authorize(actor requestcontext.Principal) (Result, bool) {
	if !actor.Authenticated() {
		return failure(ReasonAuthenticationRequired, "authentication required"), false
	}
	if !actor.HasRole(requestcontext.RoleStaff) && !actor.IsAdmin() {
		return failure(ReasonAccessDenied, "staff or admin role required"), false
	}
	return Result{}, true
}

func heldBy(doc *Document, now time.Time, reason Reason, message string) Result {
	age := int64(doc.Age(now) / time.Second)
	return Result{
		Reason:         reason,
		Message:        message,
		LockedBy:       doc.LockedBy,
		LockedAt:       doc.LockedAt,
		LockAgeSeconds: &age,
	}
}

func (s *Service) fromError(ctx context.Context, op, documentID string, err error) Result {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return failure(ReasonDocumentNotFound, "document not found")
	case errors.Is(err, sentinel.ErrConflict):
		s.logger.InfoContext(ctx, "lock transaction lost a race",
			"operation", op,
			"document_id", documentID,
		)
		return failure(ReasonSerializationConflict, "concurrent update, retry")
	}
	s.logger.ErrorContext(ctx, "lock operation failed",
		"operation", op,
		"document_id", documentID,
		"error", err,
	)
	return failure(ReasonInternalError, fmt.Sprintf("%s failed", op))
}
