package jobs

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"casedocs/internal/pdffill/mapping"
	dErrors "casedocs/pkg/domain-errors"
	"casedocs/pkg/platform/sentinel"
)

// Service is the API-facing side of the queue: enqueue, inspect, reclaim.
type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

type ServiceOption func(*Service)

func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(store Store, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("job store is required")
	}
	s := &Service{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Enqueue queues a render of templateType (aliases accepted) for caseID.
func (s *Service) Enqueue(ctx context.Context, caseID, templateType string) (*Job, error) {
	caseID = strings.TrimSpace(caseID)
	if caseID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "case_id is required")
	}
	tt, err := mapping.ParseTemplateType(templateType)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "unknown template_type")
	}

	now := s.now()
	job := &Job{
		ID:           s.newID(),
		CaseID:       caseID,
		TemplateType: tt,
		Status:       StatusQueued,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, job); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to enqueue job")
	}
	s.logger.InfoContext(ctx, "job enqueued", "job_id", job.ID, "case_id", caseID, "template", tt.String())
	return job, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Job, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "job not found")
	}
	job, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "job not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load job")
	}
	return job, nil
}

// ReclaimStale requeues jobs that have been processing for longer than olderThan.
func (s *Service) ReclaimStale(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		return 0, dErrors.New(dErrors.CodeValidation, "older-than must be positive")
	}
	now := s.now()
	n, err := s.store.RequeueStale(ctx, now.Add(-olderThan), now)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reclaim stale jobs")
	}
	if n > 0 {
		s.logger.WarnContext(ctx, "stale jobs requeued", "count", n, "older_than", olderThan.String())
	}
	return n, nil
}
