package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-course-api/internal/models"
)

type identityReader interface {
	FindByCode(ctx context.Context, code string) (*models.Identity, error)
	FindByEmail(ctx context.Context, email string) (*models.Identity, error)
}

type enrollmentChecker interface {
	Exists(ctx context.Context, exec sqlx.ExtContext, offeringID, studentCode string) (bool, error)
}

type accountReader interface {
	FindByCode(ctx context.Context, code string) (*models.StudentAccount, error)
}

// RowInput is one candidate record presented for classification.
type RowInput struct {
	StudentCode string
	Email       string
	FirstName   string
	LastName    string
}

// Classification is the validator's verdict for a row.
type Classification struct {
	Status models.RowStatus
	Note   string
}

// RowClassifier derives a row's status from durable store state. It is
// read-only; the first matching rule wins and later rules are not evaluated.
type RowClassifier struct {
	identities  identityReader
	enrollments enrollmentChecker
	accounts    accountReader
	logger      *zap.Logger
}

// NewRowClassifier constructs a RowClassifier.
func NewRowClassifier(identities identityReader, enrollments enrollmentChecker, accounts accountReader, logger *zap.Logger) *RowClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RowClassifier{identities: identities, enrollments: enrollments, accounts: accounts, logger: logger}
}

// Classify maps the row to a status and optional note. Rule order matters:
// MISSING and ALREADY_ENROLLED are decided before any identity lookup so
// incomplete or duplicate-submission rows never mask each other.
func (c *RowClassifier) Classify(ctx context.Context, offeringID string, in RowInput) (Classification, error) {
	if blank(in.StudentCode) || blank(in.Email) || blank(in.FirstName) || blank(in.LastName) {
		return Classification{Status: models.RowStatusMissing, Note: "required fields missing"}, nil
	}

	enrolled, err := c.enrollments.Exists(ctx, nil, offeringID, in.StudentCode)
	if err != nil {
		return Classification{}, fmt.Errorf("check enrollment for %s: %w", in.StudentCode, err)
	}
	if enrolled {
		return Classification{Status: models.RowStatusAlreadyEnrolled}, nil
	}

	byCode, err := c.identities.FindByCode(ctx, in.StudentCode)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Classification{}, fmt.Errorf("lookup identity by code %s: %w", in.StudentCode, err)
	}
	byEmail, err := c.identities.FindByEmail(ctx, in.Email)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Classification{}, fmt.Errorf("lookup identity by email %s: %w", in.Email, err)
	}

	switch {
	case byCode != nil && byEmail != nil && byCode.ID != byEmail.ID:
		note := fmt.Sprintf("code %s is registered with email %s; email %s is registered with code %s",
			in.StudentCode, byCode.Email, in.Email, byEmail.Code)
		return Classification{Status: models.RowStatusDuplicateIdentity, Note: note}, nil
	case byCode != nil && byEmail != nil:
		submitted := strings.TrimSpace(in.FirstName) + " " + strings.TrimSpace(in.LastName)
		if submitted != byCode.FullName() {
			return Classification{
				Status: models.RowStatusExistsNotEnrolled,
				Note:   fmt.Sprintf("registered name is %s", byCode.FullName()),
			}, nil
		}
		return Classification{Status: models.RowStatusExistsNotEnrolled}, nil
	case byCode != nil && byCode.Email != in.Email:
		return Classification{
			Status: models.RowStatusDuplicateIdentity,
			Note:   fmt.Sprintf("code %s is already registered with email %s", in.StudentCode, byCode.Email),
		}, nil
	case byEmail != nil && byEmail.Code != in.StudentCode:
		return Classification{
			Status: models.RowStatusDuplicateIdentity,
			Note:   fmt.Sprintf("email %s is already registered with code %s", in.Email, byEmail.Code),
		}, nil
	}

	account, err := c.accounts.FindByCode(ctx, in.StudentCode)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Classification{}, fmt.Errorf("lookup account by code %s: %w", in.StudentCode, err)
	}
	if account != nil {
		if account.Email != in.Email {
			return Classification{
				Status: models.RowStatusDuplicateIdentity,
				Note:   fmt.Sprintf("account %s is already registered with email %s", in.StudentCode, account.Email),
			}, nil
		}
		return Classification{Status: models.RowStatusExistsNotEnrolled}, nil
	}

	return Classification{Status: models.RowStatusNew}, nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
