package locks

import (
	"context"
	"time"
)

// Store is pure I/O over the documents table. Missing documents surface as
// sentinel.ErrNotFound and lost races as sentinel.ErrConflict.
type Store interface {
	Get(ctx context.Context, documentID string) (*Document, error)
	// GetForUpdate reads the row and holds it until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, documentID string) (*Document, error)
	SetLock(ctx context.Context, documentID, workerID string, at time.Time) error
	ClearLock(ctx context.Context, documentID string) error
	// ReleaseOlderThan clears every lock taken before cutoff in one statement.
	ReleaseOlderThan(ctx context.Context, cutoff time.Time) ([]ReleasedLock, error)
}

// Repository adds the transactional boundary used by read-check-write sequences.
// key scopes the in-memory implementation's lock; Postgres ignores it.
type Repository interface {
	Store
	RunInTx(ctx context.Context, key string, fn func(ctx context.Context, store Store) error) error
}
