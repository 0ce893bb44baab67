package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"casedocs/internal/blob"
	"casedocs/internal/pdffill/generator"
	"casedocs/internal/pdffill/mapping"
	"casedocs/internal/platform/metrics"
	"casedocs/pkg/platform/sentinel"
)

// DefaultURLTTL is the validity of the retrieval URL recorded on completed jobs.
const DefaultURLTTL = time.Hour

// Generator renders a case's document.
type Generator interface {
	Generate(ctx context.Context, caseID string, tt mapping.TemplateType) (*generator.Output, error)
}

// ResultStore receives rendered documents and signs retrieval URLs for them.
type ResultStore interface {
	Put(ctx context.Context, name string, data []byte, contentType string) error
	SignedURL(ctx context.Context, name string, ttl time.Duration) (string, error)
}

// EventPublisher receives job lifecycle events.
type EventPublisher interface {
	PublishJobEvent(ctx context.Context, event Event) error
}

// Outcome summarizes a worker pass.
type Outcome string

const (
	OutcomeIdle      Outcome = "idle"
	OutcomeCompleted Outcome = "completed"
	OutcomeRetrying  Outcome = "retrying"
	OutcomeFailed    Outcome = "failed"
)

// PassResult is returned by RunOnce. Job is nil when the queue was empty.
type PassResult struct {
	Outcome Outcome `json:"outcome"`
	Job     *Job    `json:"job,omitempty"`
	Error   string  `json:"error,omitempty"`
}

// Worker processes at most one job per pass.
type Worker struct {
	store      Store
	generator  Generator
	results    ResultStore
	events     EventPublisher
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	now        func() time.Time
	maxRetries int
	urlTTL     time.Duration
}

type WorkerOption func(*Worker)

func WithLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) {
		w.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) WorkerOption {
	return func(w *Worker) {
		w.metrics = m
	}
}

func WithEventPublisher(p EventPublisher) WorkerOption {
	return func(w *Worker) {
		w.events = p
	}
}

func WithClock(now func() time.Time) WorkerOption {
	return func(w *Worker) {
		w.now = now
	}
}

func WithMaxRetries(n int) WorkerOption {
	return func(w *Worker) {
		w.maxRetries = n
	}
}

func WithURLTTL(ttl time.Duration) WorkerOption {
	return func(w *Worker) {
		w.urlTTL = ttl
	}
}

func NewWorker(store Store, gen Generator, results ResultStore, opts ...WorkerOption) (*Worker, error) {
	if store == nil {
		return nil, errors.New("job store is required")
	}
	if gen == nil {
		return nil, errors.New("generator is required")
	}
	if results == nil {
		return nil, errors.New("result store is required")
	}
	w := &Worker{
		store:      store,
		generator:  gen,
		results:    results,
		events:     NoopPublisher{},
		logger:     slog.Default(),
		tracer:     otel.Tracer("casedocs/jobs"),
		now:        time.Now,
		maxRetries: MaxRetries,
		urlTTL:     DefaultURLTTL,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// RunOnce claims the oldest queued job and drives it to completed, queued or
// failed. Pipeline failures become transitions; only store failures are
// returned as errors.
func (w *Worker) RunOnce(ctx context.Context) (*PassResult, error) {
	ctx, span := w.tracer.Start(ctx, "jobs.RunOnce")
	defer span.End()

	job, err := w.store.ClaimNext(ctx, w.now())
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			w.metrics.IncrementJobOutcome(string(OutcomeIdle))
			return &PassResult{Outcome: OutcomeIdle}, nil
		}
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("claim job: %w", err)
	}
	span.SetAttributes(
		attribute.String("job_id", job.ID),
		attribute.String("case_id", job.CaseID),
		attribute.String("template", job.TemplateType.String()),
	)
	logger := w.logger.With("job_id", job.ID, "case_id", job.CaseID, "template", job.TemplateType.String())
	logger.InfoContext(ctx, "job claimed", "retry_count", job.RetryCount)

	completion, procErr := w.process(ctx, job)
	if procErr != nil {
		span.RecordError(procErr)
		return w.fail(ctx, logger, job, procErr)
	}

	now := w.now()
	if err := w.store.Complete(ctx, job.ID, completion, now); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("complete job %s: %w", job.ID, err)
	}
	job.Status = StatusCompleted
	job.ResultPath = completion.ResultPath
	job.ResultURL = completion.ResultURL
	job.URLExpiresAt = &completion.URLExpiresAt
	job.Coverage = &completion.Coverage
	job.CompletedAt = &now
	job.LastError = ""

	logger.InfoContext(ctx, "job completed", "result_path", completion.ResultPath, "coverage", completion.Coverage)
	w.metrics.IncrementJobOutcome(string(OutcomeCompleted))
	w.publish(ctx, logger, Event{
		Type:         EventCompleted,
		JobID:        job.ID,
		CaseID:       job.CaseID,
		TemplateType: job.TemplateType.String(),
		RetryCount:   job.RetryCount,
		ResultPath:   completion.ResultPath,
		Coverage:     job.Coverage,
		OccurredAt:   now,
	})
	return &PassResult{Outcome: OutcomeCompleted, Job: job}, nil
}

func (w *Worker) process(ctx context.Context, job *Job) (Completion, error) {
	out, err := w.generator.Generate(ctx, job.CaseID, job.TemplateType)
	if err != nil {
		return Completion{}, fmt.Errorf("generate: %w", err)
	}

	now := w.now()
	path := ResultPath(job.CaseID, job.TemplateType, now)
	if err := w.results.Put(ctx, path, out.PDF, blob.ContentTypePDF); err != nil {
		return Completion{}, fmt.Errorf("upload result: %w", err)
	}
	url, err := w.results.SignedURL(ctx, path, w.urlTTL)
	if err != nil {
		return Completion{}, fmt.Errorf("sign result url: %w", err)
	}
	return Completion{
		ResultPath:   path,
		ResultURL:    url,
		URLExpiresAt: now.Add(w.urlTTL),
		Coverage:     out.Result.Coverage(),
	}, nil
}

func (w *Worker) fail(ctx context.Context, logger *slog.Logger, job *Job, procErr error) (*PassResult, error) {
	next := NextAttempt(job.RetryCount, w.maxRetries)
	now := w.now()
	if err := w.store.Retry(ctx, job.ID, next, procErr.Error(), now); err != nil {
		return nil, fmt.Errorf("record failure for job %s: %w", job.ID, err)
	}
	job.Status = next.Status
	job.RetryCount = next.RetryCount
	job.LastError = procErr.Error()

	outcome, eventType := OutcomeRetrying, EventRetrying
	if next.Status == StatusFailed {
		outcome, eventType = OutcomeFailed, EventFailed
		job.CompletedAt = &now
		logger.ErrorContext(ctx, "job failed", "retry_count", job.RetryCount, "error", procErr)
	} else {
		job.StartedAt = nil
		logger.WarnContext(ctx, "job requeued", "retry_count", job.RetryCount, "error", procErr)
	}
	w.metrics.IncrementJobOutcome(string(outcome))
	w.publish(ctx, logger, Event{
		Type:         eventType,
		JobID:        job.ID,
		CaseID:       job.CaseID,
		TemplateType: job.TemplateType.String(),
		RetryCount:   job.RetryCount,
		Error:        job.LastError,
		OccurredAt:   now,
	})
	return &PassResult{Outcome: outcome, Job: job, Error: job.LastError}, nil
}

func (w *Worker) publish(ctx context.Context, logger *slog.Logger, event Event) {
	if err := w.events.PublishJobEvent(ctx, event); err != nil {
		w.metrics.IncrementEventPublishFailures()
		logger.WarnContext(ctx, "failed to publish job event", "event", string(event.Type), "error", err)
	}
}

// Run performs a pass immediately and then on every tick until ctx is done.
func (w *Worker) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.New("interval must be positive")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for ctx.Err() == nil {
		if _, err := w.RunOnce(ctx); err != nil {
			w.logger.ErrorContext(ctx, "worker pass failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}
