// Package jobs runs queued PDF generation jobs: one job per worker pass, with
// bounded retries.
package jobs

import (
	"strconv"
	"time"

	"casedocs/internal/pdffill/mapping"
)

// Status is a job's lifecycle state: queued → processing → completed | failed.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// MaxRetries bounds requeues after failed attempts.
const MaxRetries = 3

// Job is one request to render a template for a case.
type Job struct {
	ID           string               `json:"id"`
	CaseID       string               `json:"case_id"`
	TemplateType mapping.TemplateType `json:"template_type"`
	Status       Status               `json:"status"`
	RetryCount   int                  `json:"retry_count"`
	LastError    string               `json:"last_error,omitempty"`
	ResultPath   string               `json:"result_path,omitempty"`
	ResultURL    string               `json:"result_url,omitempty"`
	URLExpiresAt *time.Time           `json:"url_expires_at,omitempty"`
	Coverage     *int                 `json:"coverage,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
	StartedAt    *time.Time           `json:"started_at,omitempty"`
	CompletedAt  *time.Time           `json:"completed_at,omitempty"`
}

// Completion is what a successful pass records on the job.
type Completion struct {
	ResultPath   string
	ResultURL    string
	URLExpiresAt time.Time
	Coverage     int
}

// Retry is the transition a failed attempt leads to.
type Retry struct {
	Status     Status
	RetryCount int
}

// NextAttempt decides the transition after a failure at retryCount. A job
// that has not yet used maxRetries requeues once more; otherwise it fails.
func NextAttempt(retryCount, maxRetries int) Retry {
	if retryCount < maxRetries {
		return Retry{Status: StatusQueued, RetryCount: retryCount + 1}
	}
	return Retry{Status: StatusFailed, RetryCount: retryCount}
}

// ResultPath is the object name of a rendered document.
func ResultPath(caseID string, tt mapping.TemplateType, at time.Time) string {
	return caseID + "/" + tt.String() + "-" + strconv.FormatInt(at.UnixMilli(), 10) + ".pdf"
}
