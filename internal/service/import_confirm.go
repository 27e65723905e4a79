package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/uni-course-api/internal/dto"
	"github.com/noah-isme/uni-course-api/internal/models"
	appErrors "github.com/noah-isme/uni-course-api/pkg/errors"
)

// Confirm commits the session's non-deleted rows in index order and deletes
// the session afterward, success or not. A failed commit cannot be retried
// against the same session; the operator starts over with a fresh preview.
func (s *ImportService) Confirm(ctx context.Context, offeringID, sessionID string) (*dto.ConfirmResult, error) {
	session, err := s.loadActiveSession(ctx, offeringID, sessionID)
	if err != nil {
		return nil, err
	}

	rows, err := s.staging.ListRows(ctx, session.ID, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staged rows")
	}

	result := &dto.ConfirmResult{SessionID: session.ID}
	result.Summary.Total = len(rows)

	for _, row := range rows {
		outcome, note := s.commitRow(ctx, session.OfferingID, row)
		result.Results = append(result.Results, dto.ConfirmRowResult{
			RowIndex:    row.RowIndex,
			StudentCode: row.StudentCode,
			Outcome:     string(outcome),
			Note:        note,
		})
		switch outcome {
		case models.RowOutcomeEnrolled:
			result.Summary.Enrolled++
		case models.RowOutcomeAlreadyEnrolled:
			result.Summary.AlreadyEnrolled++
		case models.RowOutcomeFailed:
			result.Summary.Failed++
		case models.RowOutcomeSkipped:
			result.Summary.Skipped++
		}
		if s.metrics != nil {
			s.metrics.ObserveConfirmOutcome(outcome)
		}
	}

	// The session is consumed regardless of how many rows failed.
	if err := s.staging.DeleteSession(ctx, session.ID); err != nil {
		s.logger.Warn("failed to delete consumed import session",
			zap.String("session_id", session.ID), zap.Error(err))
	}

	if s.roster != nil && result.Summary.Enrolled > 0 {
		s.roster.InvalidateRoster(ctx, session.OfferingID)
	}

	s.logger.Info("import session confirmed",
		zap.String("session_id", session.ID),
		zap.String("offering_id", session.OfferingID),
		zap.Int("enrolled", result.Summary.Enrolled),
		zap.Int("already_enrolled", result.Summary.AlreadyEnrolled),
		zap.Int("failed", result.Summary.Failed),
		zap.Int("skipped", result.Summary.Skipped),
	)

	return result, nil
}

// commitRow processes one row and never returns an error: failures become
// the row's outcome so sibling rows keep processing.
func (s *ImportService) commitRow(ctx context.Context, offeringID string, row models.ImportRow) (models.RowOutcome, string) {
	switch row.Status {
	case models.RowStatusMissing:
		return models.RowOutcomeSkipped, "missing required fields"
	case models.RowStatusAlreadyEnrolled:
		return models.RowOutcomeAlreadyEnrolled, ""
	}

	alreadyEnrolled := false
	err := s.tx.RunInTx(ctx, func(exec sqlx.ExtContext) error {
		identity := &models.Identity{
			Code:      row.StudentCode,
			Email:     row.Email,
			FirstName: row.FirstName,
			LastName:  row.LastName,
		}
		if err := s.identities.UpsertByEmail(ctx, exec, identity); err != nil {
			return err
		}

		hash, err := placeholderCredential()
		if err != nil {
			return err
		}
		account := &models.StudentAccount{
			Code:         row.StudentCode,
			Email:        row.Email,
			FirstName:    row.FirstName,
			LastName:     row.LastName,
			PasswordHash: hash,
			Active:       true,
		}
		if err := s.accounts.UpsertByCode(ctx, exec, account); err != nil {
			return err
		}

		// Classification may be stale; the durable check keeps the commit
		// idempotent under races and intra-batch duplicates.
		exists, err := s.enrollments.Exists(ctx, exec, offeringID, row.StudentCode)
		if err != nil {
			return err
		}
		if exists {
			alreadyEnrolled = true
			return nil
		}

		return s.enrollments.Insert(ctx, exec, &models.Enrollment{
			OfferingID:  offeringID,
			StudentCode: row.StudentCode,
		})
	})
	if err != nil {
		s.logger.Warn("import row commit failed",
			zap.String("offering_id", offeringID),
			zap.Int("row_index", row.RowIndex),
			zap.Error(err),
		)
		return models.RowOutcomeFailed, commitFailureNote(err)
	}
	if alreadyEnrolled {
		return models.RowOutcomeAlreadyEnrolled, ""
	}
	return models.RowOutcomeEnrolled, ""
}

func commitFailureNote(err error) string {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if errors.Is(err, sql.ErrNoRows) {
		return "record disappeared during commit"
	}
	return err.Error()
}

// placeholderCredential hashes a random secret for accounts created by the
// import path; students reset it through the normal credential flow.
func placeholderCredential() (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
