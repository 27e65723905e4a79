package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-course-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollment facts.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

func (r *EnrollmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec == nil {
		return r.db
	}
	return exec
}

// Exists reports whether an enrollment fact is recorded for the pair.
func (r *EnrollmentRepository) Exists(ctx context.Context, exec sqlx.ExtContext, offeringID, studentCode string) (bool, error) {
	e := r.exec(exec)
	const query = `SELECT 1 FROM offering_students WHERE offering_id = $1 AND student_code = $2 LIMIT 1`
	var one int
	if err := sqlx.GetContext(ctx, e, &one, query, offeringID, studentCode); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return true, nil
}

// Insert records a new enrollment fact. The unique (offering_id,
// student_code) constraint makes concurrent duplicate inserts fail rather
// than produce a second fact.
func (r *EnrollmentRepository) Insert(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error {
	e := r.exec(exec)
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	const query = `INSERT INTO offering_students (id, offering_id, student_code, enrolled_at) VALUES ($1, $2, $3, $4)`
	if _, err := e.ExecContext(ctx, query, enrollment.ID, enrollment.OfferingID, enrollment.StudentCode, enrollment.EnrolledAt); err != nil {
		return fmt.Errorf("insert enrollment: %w", err)
	}
	return nil
}

// ListByOffering returns the roster for an offering joined with the identity
// directory, ordered by student code.
func (r *EnrollmentRepository) ListByOffering(ctx context.Context, offeringID string) ([]models.RosterEntry, error) {
	const query = `SELECT e.id, e.offering_id, e.student_code, e.enrolled_at,
        s.email, s.first_name, s.last_name
        FROM offering_students e
        LEFT JOIN students s ON s.code = e.student_code
        WHERE e.offering_id = $1
        ORDER BY e.student_code ASC`
	var roster []models.RosterEntry
	if err := r.db.SelectContext(ctx, &roster, query, offeringID); err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	return roster, nil
}
