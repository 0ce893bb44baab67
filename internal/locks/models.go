package locks

import "time"

// Reason is the closed set of outcomes reported by every lock operation.
type Reason string

const (
	ReasonSuccess                Reason = "SUCCESS"
	ReasonAuthenticationRequired Reason = "AUTHENTICATION_REQUIRED"
	ReasonAccessDenied           Reason = "ACCESS_DENIED"
	ReasonAlreadyLocked          Reason = "ALREADY_LOCKED"
	ReasonDocumentNotFound       Reason = "DOCUMENT_NOT_FOUND"
	ReasonNotLocked              Reason = "NOT_LOCKED"
	ReasonInvalidInput           Reason = "INVALID_INPUT"
	ReasonSerializationConflict  Reason = "SERIALIZATION_CONFLICT"
	ReasonInternalError          Reason = "INTERNAL_ERROR"
)

// Retryable reports whether the caller should simply try again.
func (r Reason) Retryable() bool {
	return r == ReasonSerializationConflict
}

const (
	DefaultAcquireTimeout   = 5 * time.Minute
	DefaultCleanupThreshold = 10 * time.Minute
)

// Document is the lockable row. LockedBy and LockedAt are set together.
type Document struct {
	ID       string
	CaseID   string
	Name     string
	LockedBy string
	LockedAt *time.Time
}

// Locked reports whether a lock row is present, expired or not.
func (d *Document) Locked() bool {
	return d.LockedBy != "" && d.LockedAt != nil
}

// Age of the current lock at now; zero when unlocked.
func (d *Document) Age(now time.Time) time.Duration {
	if !d.Locked() {
		return 0
	}
	return now.Sub(*d.LockedAt)
}

// Result is returned by Acquire and Release. Failures are reported here,
// never as Go errors.
type Result struct {
	Success        bool       `json:"success"`
	Reason         Reason     `json:"reason"`
	Message        string     `json:"message,omitempty"`
	WorkerID       string     `json:"worker_id,omitempty"`
	Timestamp      *time.Time `json:"timestamp,omitempty"`
	LockedBy       string     `json:"locked_by,omitempty"`
	LockedAt       *time.Time `json:"locked_at,omitempty"`
	LockAgeSeconds *int64     `json:"lock_age_seconds,omitempty"`
}

func failure(reason Reason, message string) Result {
	return Result{Reason: reason, Message: message}
}

// Status is the best-effort view returned by IsLocked.
type Status struct {
	DocumentID     string     `json:"document_id"`
	Locked         bool       `json:"locked"`
	Expired        bool       `json:"expired"`
	LockedBy       string     `json:"locked_by,omitempty"`
	LockedAt       *time.Time `json:"locked_at,omitempty"`
	LockAgeSeconds int64      `json:"lock_age_seconds,omitempty"`
}

// Reclaimed describes one lock released by CleanupExpired.
type Reclaimed struct {
	ResourceID          string `json:"resource_id"`
	WorkerID            string `json:"worker_id"`
	HeldDurationSeconds int64  `json:"held_duration_seconds"`
}

// ReleasedLock is what a store reports for each row it cleared.
type ReleasedLock struct {
	DocumentID string
	LockedBy   string
	LockedAt   time.Time
}

type CleanupResult struct {
	Success  bool        `json:"success"`
	Reason   Reason      `json:"reason"`
	Message  string      `json:"message,omitempty"`
	Released []Reclaimed `json:"released"`
	Count    int         `json:"count"`
}
