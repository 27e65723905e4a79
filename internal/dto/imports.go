package dto

import (
	"time"

	"github.com/noah-isme/uni-course-api/internal/models"
)

// RawImportRow is one record produced by the spreadsheet-parsing collaborator.
// Missing columns arrive as empty strings.
type RawImportRow struct {
	StudentCode string `json:"student_code"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
}

// CreatePreviewRequest carries the parsed upload for preview classification.
type CreatePreviewRequest struct {
	Rows []RawImportRow `json:"rows" validate:"required,min=1"`
}

// EditRowRequest carries a partial row update; nil fields keep their prior
// value.
type EditRowRequest struct {
	StudentCode *string `json:"student_code"`
	Email       *string `json:"email"`
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
}

// ImportRowItem is the API shape of a classified staging row.
type ImportRowItem struct {
	RowIndex    int    `json:"row_index"`
	StudentCode string `json:"student_code"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Status      string `json:"status"`
	Note        string `json:"note,omitempty"`
}

// PreviewSummary aggregates row counts per classification.
type PreviewSummary struct {
	Total             int `json:"total"`
	New               int `json:"new"`
	ExistsNotEnrolled int `json:"exists_not_enrolled"`
	AlreadyEnrolled   int `json:"already_enrolled"`
	DuplicateIdentity int `json:"duplicate_identity"`
	Missing           int `json:"missing"`
}

// PreviewSession is returned by preview creation and session reads.
type PreviewSession struct {
	SessionID  string          `json:"session_id"`
	OfferingID string          `json:"offering_id"`
	ExpiresAt  time.Time       `json:"expires_at"`
	Rows       []ImportRowItem `json:"rows"`
	Summary    PreviewSummary  `json:"summary"`
}

// ConfirmRowResult reports the outcome of committing one row.
type ConfirmRowResult struct {
	RowIndex    int    `json:"row_index"`
	StudentCode string `json:"student_code"`
	Outcome     string `json:"outcome"`
	Note        string `json:"note,omitempty"`
}

// ConfirmSummary aggregates per-row outcomes over the processed batch.
type ConfirmSummary struct {
	Total           int `json:"total"`
	Enrolled        int `json:"enrolled"`
	AlreadyEnrolled int `json:"already_enrolled"`
	Failed          int `json:"failed"`
	Skipped         int `json:"skipped"`
}

// ConfirmResult is the commit engine's response payload. Partial failure is
// an expected outcome, so the call succeeds even with failed rows present.
type ConfirmResult struct {
	SessionID string             `json:"session_id"`
	Results   []ConfirmRowResult `json:"results"`
	Summary   ConfirmSummary     `json:"summary"`
}

// RowItemFromModel maps a staging row to its API shape.
func RowItemFromModel(row models.ImportRow) ImportRowItem {
	return ImportRowItem{
		RowIndex:    row.RowIndex,
		StudentCode: row.StudentCode,
		Email:       row.Email,
		FirstName:   row.FirstName,
		LastName:    row.LastName,
		Status:      string(row.Status),
		Note:        row.Note,
	}
}

// SummarizeRows tallies classification counts for the given rows.
func SummarizeRows(rows []models.ImportRow) PreviewSummary {
	summary := PreviewSummary{Total: len(rows)}
	for _, row := range rows {
		switch row.Status {
		case models.RowStatusNew:
			summary.New++
		case models.RowStatusExistsNotEnrolled:
			summary.ExistsNotEnrolled++
		case models.RowStatusAlreadyEnrolled:
			summary.AlreadyEnrolled++
		case models.RowStatusDuplicateIdentity:
			summary.DuplicateIdentity++
		case models.RowStatusMissing:
			summary.Missing++
		}
	}
	return summary
}
