package jobs

import (
	"context"
	"time"
)

// Store persists jobs. It is pure I/O: transition rules live in the worker.
// Conditional updates return sentinel.ErrConflict when the job is no longer
// in the expected state and sentinel.ErrNotFound for unknown IDs.
type Store interface {
	Create(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	// ClaimNext atomically moves the oldest queued job to processing.
	// It returns sentinel.ErrNotFound when nothing is queued.
	ClaimNext(ctx context.Context, now time.Time) (*Job, error)
	Complete(ctx context.Context, id string, c Completion, now time.Time) error
	// Retry records a failed attempt as either a requeue or a terminal failure.
	Retry(ctx context.Context, id string, next Retry, lastErr string, now time.Time) error
	// RequeueStale returns processing jobs started before cutoff to the queue.
	RequeueStale(ctx context.Context, cutoff, now time.Time) (int, error)
}
