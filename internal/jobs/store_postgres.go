package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"casedocs/internal/pdffill/mapping"
	"casedocs/pkg/platform/sentinel"
	"casedocs/pkg/platform/tx"
)

// PostgresStore persists jobs in the pdf_jobs table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) execer(ctx context.Context) tx.Executor {
	return tx.Execer(ctx, s.db)
}

const jobColumns = `id, case_id, template_type, status, retry_count, last_error, result_path, result_url,
	url_expires_at, coverage, created_at, updated_at, started_at, completed_at`

func (s *PostgresStore) Create(ctx context.Context, job *Job) error {
	query := `
		INSERT INTO pdf_jobs (id, case_id, template_type, status, retry_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		job.ID, job.CaseID, string(job.TemplateType), string(job.Status), job.RetryCount, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return expectOne(res, "create job", job.ID, sentinel.ErrConflict)
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM pdf_jobs WHERE id = $1`
	job, err := scanJob(s.execer(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("job %s: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ClaimNext selects and marks the oldest queued job in one statement.
// SKIP LOCKED lets concurrent workers claim different jobs without blocking.
func (s *PostgresStore) ClaimNext(ctx context.Context, now time.Time) (*Job, error) {
	query := `
		UPDATE pdf_jobs
		SET status = 'processing', started_at = $1, updated_at = $1
		WHERE id = (
			SELECT id FROM pdf_jobs
			WHERE status = 'queued'
			ORDER BY created_at, id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobColumns
	job, err := scanJob(s.execer(ctx).QueryRowContext(ctx, query, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("no queued job: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

func (s *PostgresStore) Complete(ctx context.Context, id string, c Completion, now time.Time) error {
	query := `
		UPDATE pdf_jobs
		SET status = 'completed', result_path = $2, result_url = $3, url_expires_at = $4,
			coverage = $5, last_error = NULL, completed_at = $6, updated_at = $6
		WHERE id = $1 AND status = 'processing'
	`
	res, err := s.execer(ctx).ExecContext(ctx, query, id, c.ResultPath, c.ResultURL, c.URLExpiresAt, c.Coverage, now)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return expectOne(res, "complete job", id, sentinel.ErrConflict)
}

func (s *PostgresStore) Retry(ctx context.Context, id string, next Retry, lastErr string, now time.Time) error {
	query := `
		UPDATE pdf_jobs
		SET status = $2, retry_count = $3, last_error = $4, updated_at = $5,
			started_at = CASE WHEN $2 = 'queued' THEN NULL ELSE started_at END,
			completed_at = CASE WHEN $2 = 'failed' THEN $5 ELSE completed_at END
		WHERE id = $1 AND status = 'processing'
	`
	res, err := s.execer(ctx).ExecContext(ctx, query, id, string(next.Status), next.RetryCount, lastErr, now)
	if err != nil {
		return fmt.Errorf("retry job: %w", err)
	}
	return expectOne(res, "retry job", id, sentinel.ErrConflict)
}

func (s *PostgresStore) RequeueStale(ctx context.Context, cutoff, now time.Time) (int, error) {
	query := `
		UPDATE pdf_jobs
		SET status = 'queued', started_at = NULL, updated_at = $2
		WHERE status = 'processing' AND started_at < $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query, cutoff, now)
	if err != nil {
		return 0, fmt.Errorf("requeue stale jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("requeue stale jobs rows affected: %w", err)
	}
	return int(n), nil
}

func expectOne(res sql.Result, op, id string, onZero error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", op, id, onZero)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job          Job
		templateType string
		status       string
		lastError    sql.NullString
		resultPath   sql.NullString
		resultURL    sql.NullString
		urlExpiresAt sql.NullTime
		coverage     sql.NullInt32
		startedAt    sql.NullTime
		completedAt  sql.NullTime
	)
	if err := row.Scan(
		&job.ID, &job.CaseID, &templateType, &status, &job.RetryCount,
		&lastError, &resultPath, &resultURL, &urlExpiresAt, &coverage,
		&job.CreatedAt, &job.UpdatedAt, &startedAt, &completedAt,
	); err != nil {
		return nil, err
	}
	job.TemplateType = mapping.TemplateType(templateType)
	job.Status = Status(status)
	job.LastError = lastError.String
	job.ResultPath = resultPath.String
	job.ResultURL = resultURL.String
	if urlExpiresAt.Valid {
		t := urlExpiresAt.Time
		job.URLExpiresAt = &t
	}
	if coverage.Valid {
		c := int(coverage.Int32)
		job.Coverage = &c
	}
	if startedAt.Valid {
		t := startedAt.Time
		job.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	return &job, nil
}
