package masterdata

import "context"

// Store reads master records. The case database owns the schema; this side only reads.
type Store interface {
	// Get returns the record for caseID or an error wrapping sentinel.ErrNotFound.
	Get(ctx context.Context, caseID string) (Record, error)
}
