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

// AccountRepository manages the authentication-facing student accounts.
type AccountRepository struct {
	db *sqlx.DB
}

// NewAccountRepository constructs an AccountRepository.
func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec == nil {
		return r.db
	}
	return exec
}

// FindByCode returns the account registered under the given student code.
// Returns sql.ErrNoRows when no account matches.
func (r *AccountRepository) FindByCode(ctx context.Context, code string) (*models.StudentAccount, error) {
	const query = `SELECT id, code, email, first_name, last_name, password_hash, active, created_at, updated_at FROM student_accounts WHERE code = $1 LIMIT 1`
	var account models.StudentAccount
	if err := r.db.GetContext(ctx, &account, query, code); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find account by code: %w", err)
	}
	return &account, nil
}

// UpsertByCode inserts the account if the code is unknown, otherwise updates
// the profile fields and leaves the stored credential untouched. The password
// hash on the passed account is only used for the insert path.
func (r *AccountRepository) UpsertByCode(ctx context.Context, exec sqlx.ExtContext, account *models.StudentAccount) error {
	e := r.exec(exec)
	now := time.Now().UTC()

	var existingID string
	const selectQuery = `SELECT id FROM student_accounts WHERE code = $1 LIMIT 1`
	err := sqlx.GetContext(ctx, e, &existingID, selectQuery, account.Code)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("lookup account by code: %w", err)
	}

	if err == sql.ErrNoRows {
		if account.ID == "" {
			account.ID = uuid.NewString()
		}
		account.CreatedAt = now
		account.UpdatedAt = now
		const insertQuery = `INSERT INTO student_accounts (id, code, email, first_name, last_name, password_hash, active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
		if _, err := e.ExecContext(ctx, insertQuery, account.ID, account.Code, account.Email, account.FirstName, account.LastName, account.PasswordHash, account.Active, account.CreatedAt, account.UpdatedAt); err != nil {
			return fmt.Errorf("insert account: %w", err)
		}
		return nil
	}

	account.ID = existingID
	account.UpdatedAt = now
	const updateQuery = `UPDATE student_accounts SET email = $2, first_name = $3, last_name = $4, updated_at = $5 WHERE id = $1`
	if _, err := e.ExecContext(ctx, updateQuery, account.ID, account.Email, account.FirstName, account.LastName, account.UpdatedAt); err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	return nil
}
