package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-course-api/internal/models"
)

// StagingRepository stores import sessions and their rows. Staging state is
// durable so a preview survives across stateless API requests; expiry is
// enforced by callers on every access, with PurgeExpired as a backstop.
type StagingRepository struct {
	db *sqlx.DB
}

// NewStagingRepository constructs a StagingRepository.
func NewStagingRepository(db *sqlx.DB) *StagingRepository {
	return &StagingRepository{db: db}
}

// CreateSession persists a session together with its rows in one transaction.
func (r *StagingRepository) CreateSession(ctx context.Context, session *models.ImportSession, rows []models.ImportRow) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin staging transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const sessionQuery = `INSERT INTO import_sessions (id, offering_id, created_by, created_at, expires_at)
        VALUES ($1, $2, $3, $4, $5)`
	if _, err = tx.ExecContext(ctx, sessionQuery, session.ID, session.OfferingID, session.CreatedBy, session.CreatedAt, session.ExpiresAt); err != nil {
		return fmt.Errorf("insert import session: %w", err)
	}

	const rowQuery = `INSERT INTO import_rows (session_id, row_index, student_code, email, first_name, last_name, status, note, deleted)
        VALUES (:session_id, :row_index, :student_code, :email, :first_name, :last_name, :status, :note, :deleted)`
	for i := range rows {
		if _, err = sqlx.NamedExecContext(ctx, tx, rowQuery, rows[i]); err != nil {
			return fmt.Errorf("insert import row %d: %w", rows[i].RowIndex, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit staging transaction: %w", err)
	}
	return nil
}

// FindSession returns the session header. Returns sql.ErrNoRows when absent.
func (r *StagingRepository) FindSession(ctx context.Context, id string) (*models.ImportSession, error) {
	const query = `SELECT id, offering_id, created_by, created_at, expires_at FROM import_sessions WHERE id = $1 LIMIT 1`
	var session models.ImportSession
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find import session: %w", err)
	}
	return &session, nil
}

// ListRows returns the session's rows in ascending index order, excluding
// soft-deleted rows unless includeDeleted is set.
func (r *StagingRepository) ListRows(ctx context.Context, sessionID string, includeDeleted bool) ([]models.ImportRow, error) {
	query := `SELECT session_id, row_index, student_code, email, first_name, last_name, status, note, deleted
        FROM import_rows WHERE session_id = $1`
	if !includeDeleted {
		query += ` AND deleted = false`
	}
	query += ` ORDER BY row_index ASC`
	var rows []models.ImportRow
	if err := r.db.SelectContext(ctx, &rows, query, sessionID); err != nil {
		return nil, fmt.Errorf("list import rows: %w", err)
	}
	return rows, nil
}

// FindRow returns a single staging row including soft-deleted ones. Returns
// sql.ErrNoRows when absent.
func (r *StagingRepository) FindRow(ctx context.Context, sessionID string, index int) (*models.ImportRow, error) {
	const query = `SELECT session_id, row_index, student_code, email, first_name, last_name, status, note, deleted
        FROM import_rows WHERE session_id = $1 AND row_index = $2 LIMIT 1`
	var row models.ImportRow
	if err := r.db.GetContext(ctx, &row, query, sessionID, index); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find import row: %w", err)
	}
	return &row, nil
}

// UpdateRow persists the row's fields, classification and note.
func (r *StagingRepository) UpdateRow(ctx context.Context, row *models.ImportRow) error {
	const query = `UPDATE import_rows SET student_code = :student_code, email = :email, first_name = :first_name,
        last_name = :last_name, status = :status, note = :note
        WHERE session_id = :session_id AND row_index = :row_index`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("update import row: %w", err)
	}
	return nil
}

// SoftDeleteRow flags the row as deleted. Repeating the call is a no-op.
func (r *StagingRepository) SoftDeleteRow(ctx context.Context, sessionID string, index int) error {
	const query = `UPDATE import_rows SET deleted = true WHERE session_id = $1 AND row_index = $2`
	if _, err := r.db.ExecContext(ctx, query, sessionID, index); err != nil {
		return fmt.Errorf("soft delete import row: %w", err)
	}
	return nil
}

// DeleteSession removes the session and all of its rows.
func (r *StagingRepository) DeleteSession(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin staging transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM import_rows WHERE session_id = $1`, id); err != nil {
		return fmt.Errorf("delete import rows: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM import_sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete import session: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit staging transaction: %w", err)
	}
	return nil
}

// PurgeExpired deletes sessions whose TTL elapsed before now, along with
// their rows, and reports how many sessions were removed.
func (r *StagingRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin staging transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM import_rows WHERE session_id IN (SELECT id FROM import_sessions WHERE expires_at < $1)`, now); err != nil {
		return 0, fmt.Errorf("purge import rows: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM import_sessions WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("purge import sessions: %w", err)
	}
	purged, err := res.RowsAffected()
	if err != nil {
		purged = 0
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit staging transaction: %w", err)
	}
	return purged, nil
}
