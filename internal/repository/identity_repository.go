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

// IdentityRepository manages the student identity directory.
type IdentityRepository struct {
	db *sqlx.DB
}

// NewIdentityRepository constructs an IdentityRepository.
func NewIdentityRepository(db *sqlx.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

func (r *IdentityRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec == nil {
		return r.db
	}
	return exec
}

// FindByCode returns the identity registered under the given student code.
// Returns sql.ErrNoRows when no identity matches.
func (r *IdentityRepository) FindByCode(ctx context.Context, code string) (*models.Identity, error) {
	const query = `SELECT id, code, email, first_name, last_name, created_at, updated_at FROM students WHERE code = $1 LIMIT 1`
	var identity models.Identity
	if err := r.db.GetContext(ctx, &identity, query, code); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find identity by code: %w", err)
	}
	return &identity, nil
}

// FindByEmail returns the identity registered under the given email.
// Returns sql.ErrNoRows when no identity matches.
func (r *IdentityRepository) FindByEmail(ctx context.Context, email string) (*models.Identity, error) {
	const query = `SELECT id, code, email, first_name, last_name, created_at, updated_at FROM students WHERE email = $1 LIMIT 1`
	var identity models.Identity
	if err := r.db.GetContext(ctx, &identity, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find identity by email: %w", err)
	}
	return &identity, nil
}

// UpsertByEmail inserts the identity if the email is unknown, otherwise
// overwrites code and name on the existing record. Pass a transaction via
// exec to make the upsert part of a larger atomic unit.
func (r *IdentityRepository) UpsertByEmail(ctx context.Context, exec sqlx.ExtContext, identity *models.Identity) error {
	e := r.exec(exec)
	now := time.Now().UTC()

	var existingID string
	const selectQuery = `SELECT id FROM students WHERE email = $1 LIMIT 1`
	err := sqlx.GetContext(ctx, e, &existingID, selectQuery, identity.Email)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("lookup identity by email: %w", err)
	}

	if err == sql.ErrNoRows {
		if identity.ID == "" {
			identity.ID = uuid.NewString()
		}
		identity.CreatedAt = now
		identity.UpdatedAt = now
		const insertQuery = `INSERT INTO students (id, code, email, first_name, last_name, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`
		if _, err := e.ExecContext(ctx, insertQuery, identity.ID, identity.Code, identity.Email, identity.FirstName, identity.LastName, identity.CreatedAt, identity.UpdatedAt); err != nil {
			return fmt.Errorf("insert identity: %w", err)
		}
		return nil
	}

	identity.ID = existingID
	identity.UpdatedAt = now
	const updateQuery = `UPDATE students SET code = $2, first_name = $3, last_name = $4, updated_at = $5 WHERE id = $1`
	if _, err := e.ExecContext(ctx, updateQuery, identity.ID, identity.Code, identity.FirstName, identity.LastName, identity.UpdatedAt); err != nil {
		return fmt.Errorf("update identity: %w", err)
	}
	return nil
}
