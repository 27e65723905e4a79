package models

import "time"

// Enrollment is the durable fact that a student participates in an offering.
// The (offering_id, student_code) pair is enforced unique by the store; that
// constraint, not the application-side existence check, is what prevents
// duplicate facts under concurrent commits.
type Enrollment struct {
	ID          string    `db:"id" json:"id"`
	OfferingID  string    `db:"offering_id" json:"offering_id"`
	StudentCode string    `db:"student_code" json:"student_code"`
	EnrolledAt  time.Time `db:"enrolled_at" json:"enrolled_at"`
}

// RosterEntry joins an enrollment with the student's directory record.
type RosterEntry struct {
	Enrollment
	Email     string `db:"email" json:"email"`
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
}
