package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"casedocs/pkg/platform/sentinel"
)

// InMemoryStore keeps jobs in a map. A single mutex makes ClaimNext atomic.
type InMemoryStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	// insertion order breaks created_at ties
	order []string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{jobs: make(map[string]*Job)}
}

func (s *InMemoryStore) Create(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s: %w", job.ID, sentinel.ErrConflict)
	}
	cp := *job
	s.jobs[job.ID] = &cp
	s.order = append(s.order, job.ID)
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, sentinel.ErrNotFound)
	}
	cp := *job
	return &cp, nil
}

func (s *InMemoryStore) ClaimNext(_ context.Context, now time.Time) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next *Job
	for _, id := range s.order {
		job := s.jobs[id]
		if job.Status != StatusQueued {
			continue
		}
		if next == nil || job.CreatedAt.Before(next.CreatedAt) {
			next = job
		}
	}
	if next == nil {
		return nil, fmt.Errorf("no queued job: %w", sentinel.ErrNotFound)
	}
	started := now
	next.Status = StatusProcessing
	next.StartedAt = &started
	next.UpdatedAt = now
	cp := *next
	return &cp, nil
}

func (s *InMemoryStore) processing(id string) (*Job, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, sentinel.ErrNotFound)
	}
	if job.Status != StatusProcessing {
		return nil, fmt.Errorf("job %s is %s: %w", id, job.Status, sentinel.ErrConflict)
	}
	return job, nil
}

func (s *InMemoryStore) Complete(_ context.Context, id string, c Completion, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, err := s.processing(id)
	if err != nil {
		return err
	}
	expires, completed, coverage := c.URLExpiresAt, now, c.Coverage
	job.Status = StatusCompleted
	job.ResultPath = c.ResultPath
	job.ResultURL = c.ResultURL
	job.URLExpiresAt = &expires
	job.Coverage = &coverage
	job.LastError = ""
	job.CompletedAt = &completed
	job.UpdatedAt = now
	return nil
}

func (s *InMemoryStore) Retry(_ context.Context, id string, next Retry, lastErr string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, err := s.processing(id)
	if err != nil {
		return err
	}
	job.Status = next.Status
	job.RetryCount = next.RetryCount
	job.LastError = lastErr
	job.UpdatedAt = now
	if next.Status == StatusQueued {
		job.StartedAt = nil
	} else {
		completed := now
		job.CompletedAt = &completed
	}
	return nil
}

func (s *InMemoryStore) RequeueStale(_ context.Context, cutoff, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, job := range s.jobs {
		if job.Status != StatusProcessing || job.StartedAt == nil || !job.StartedAt.Before(cutoff) {
			continue
		}
		job.Status = StatusQueued
		job.StartedAt = nil
		job.UpdatedAt = now
		n++
	}
	return n, nil
}
