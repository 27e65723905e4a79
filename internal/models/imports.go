package models

import "time"

// RowStatus is the advisory classification assigned to a staging row. It is a
// pure function of the row's fields, the offering and durable store state at
// validation time, and can go stale between validation and commit.
type RowStatus string

const (
	RowStatusNew               RowStatus = "NEW"
	RowStatusExistsNotEnrolled RowStatus = "EXISTS_NOT_ENROLLED"
	RowStatusAlreadyEnrolled   RowStatus = "ALREADY_ENROLLED"
	RowStatusDuplicateIdentity RowStatus = "DUPLICATE_IDENTITY"
	RowStatusMissing           RowStatus = "MISSING"
)

// RowOutcome tags the result of committing a single staging row.
type RowOutcome string

const (
	RowOutcomeEnrolled        RowOutcome = "enrolled"
	RowOutcomeAlreadyEnrolled RowOutcome = "already_enrolled"
	RowOutcomeFailed          RowOutcome = "failed"
	RowOutcomeSkipped         RowOutcome = "skipped"
)

// ImportSession is a time-boxed working set of candidate import rows bound to
// one offering and one creator. It is created by preview and deleted by
// confirm; any access past ExpiresAt must fail.
type ImportSession struct {
	ID         string    `db:"id" json:"id"`
	OfferingID string    `db:"offering_id" json:"offering_id"`
	CreatedBy  string    `db:"created_by" json:"created_by"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	ExpiresAt  time.Time `db:"expires_at" json:"expires_at"`
}

// Expired reports whether the session's TTL has elapsed at the given instant.
func (s ImportSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// ImportRow is one staged candidate record. RowIndex is stable for the
// session's lifetime; deletion is a soft flag, never a reindex.
type ImportRow struct {
	SessionID   string    `db:"session_id" json:"-"`
	RowIndex    int       `db:"row_index" json:"row_index"`
	StudentCode string    `db:"student_code" json:"student_code"`
	Email       string    `db:"email" json:"email"`
	FirstName   string    `db:"first_name" json:"first_name"`
	LastName    string    `db:"last_name" json:"last_name"`
	Status      RowStatus `db:"status" json:"status"`
	Note        string    `db:"note" json:"note,omitempty"`
	Deleted     bool      `db:"deleted" json:"-"`
}
