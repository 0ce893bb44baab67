package masterdata

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"casedocs/pkg/platform/sentinel"
	"casedocs/pkg/platform/tx"
)

// PostgresStore reads master records from the master_data table.
// Rows are projected to JSON so the column set can grow without code changes;
// keys of the extra column are flattened into the record.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed master record store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, caseID string) (Record, error) {
	query := `
		SELECT (to_jsonb(m) - 'extra') || COALESCE(m.extra, '{}'::jsonb)
		FROM master_data m
		WHERE m.case_id = $1
	`

	var raw []byte
	if err := tx.Execer(ctx, s.db).QueryRowContext(ctx, query, caseID).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("master record %s: %w", caseID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get master record: %w", err)
	}

	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decode master record: %w", err)
	}
	return record, nil
}
