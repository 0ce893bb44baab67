package locks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"casedocs/internal/platform/postgres"
	"casedocs/pkg/platform/sentinel"
	"casedocs/pkg/platform/tx"
)

// PostgresStore locks rows of the documents table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) execer(ctx context.Context) tx.Executor {
	return tx.Execer(ctx, s.db)
}

// RunInTx runs fn in a SERIALIZABLE transaction. Serialization failures,
// whether raised inside fn or at commit, come back as sentinel.ErrConflict.
func (s *PostgresStore) RunInTx(ctx context.Context, _ string, fn func(ctx context.Context, store Store) error) error {
	err := postgres.RunInTx(ctx, s.db, postgres.Serializable, func(ctx context.Context) error {
		return fn(ctx, s)
	})
	if err != nil && postgres.IsSerializationFailure(err) {
		return fmt.Errorf("%w: %w", sentinel.ErrConflict, err)
	}
	return err
}

const documentColumns = `id, case_id, name, COALESCE(locked_by, ''), locked_at`

func (s *PostgresStore) Get(ctx context.Context, documentID string) (*Document, error) {
	return s.get(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, documentID)
}

func (s *PostgresStore) GetForUpdate(ctx context.Context, documentID string) (*Document, error) {
	return s.get(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1 FOR UPDATE`, documentID)
}

func (s *PostgresStore) get(ctx context.Context, query, documentID string) (*Document, error) {
	var (
		doc      Document
		lockedAt sql.NullTime
	)
	err := s.execer(ctx).QueryRowContext(ctx, query, documentID).
		Scan(&doc.ID, &doc.CaseID, &doc.Name, &doc.LockedBy, &lockedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("document %s: %w", documentID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	if lockedAt.Valid {
		t := lockedAt.Time
		doc.LockedAt = &t
	}
	return &doc, nil
}

func (s *PostgresStore) SetLock(ctx context.Context, documentID, workerID string, at time.Time) error {
	res, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE documents SET locked_by = $2, locked_at = $3 WHERE id = $1`, documentID, workerID, at)
	if err != nil {
		return fmt.Errorf("set lock: %w", err)
	}
	return expectRow(res, documentID)
}

func (s *PostgresStore) ClearLock(ctx context.Context, documentID string) error {
	res, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE documents SET locked_by = NULL, locked_at = NULL WHERE id = $1`, documentID)
	if err != nil {
		return fmt.Errorf("clear lock: %w", err)
	}
	return expectRow(res, documentID)
}

// ReleaseOlderThan selects and clears expired locks in one statement so the
// report matches exactly the rows that were released.
func (s *PostgresStore) ReleaseOlderThan(ctx context.Context, cutoff time.Time) ([]ReleasedLock, error) {
	query := `
		WITH expired AS (
			SELECT id, locked_by, locked_at
			FROM documents
			WHERE locked_by IS NOT NULL AND locked_at < $1
			ORDER BY id
			FOR UPDATE SKIP LOCKED
		)
		UPDATE documents d
		SET locked_by = NULL, locked_at = NULL
		FROM expired e
		WHERE d.id = e.id
		RETURNING e.id, e.locked_by, e.locked_at
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("release expired locks: %w", err)
	}
	defer rows.Close()

	var released []ReleasedLock
	for rows.Next() {
		var r ReleasedLock
		if err := rows.Scan(&r.DocumentID, &r.LockedBy, &r.LockedAt); err != nil {
			return nil, fmt.Errorf("scan released lock: %w", err)
		}
		released = append(released, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate released locks: %w", err)
	}
	return released, nil
}

// CreateDocument inserts a lockable document. Documents are owned by the
// case system; this exists so integration tests can set up fixtures.
func (s *PostgresStore) CreateDocument(ctx context.Context, doc Document) error {
	_, err := s.execer(ctx).ExecContext(ctx,
		`INSERT INTO documents (id, case_id, name) VALUES ($1, $2, $3)`, doc.ID, doc.CaseID, doc.Name)
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

func expectRow(res sql.Result, documentID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("document %s: %w", documentID, sentinel.ErrNotFound)
	}
	return nil
}
