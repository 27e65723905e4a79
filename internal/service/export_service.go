package service

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/noah-isme/uni-course-api/internal/dto"
	appErrors "github.com/noah-isme/uni-course-api/pkg/errors"
	"github.com/noah-isme/uni-course-api/pkg/export"
)

type previewReader interface {
	GetSession(ctx context.Context, offeringID, sessionID string) (*dto.PreviewSession, error)
}

// ExportFile is a rendered download.
type ExportFile struct {
	Content     []byte
	ContentType string
	Filename    string
}

// ExportService renders a preview session as a downloadable document so the
// operator can review the classification offline before confirming.
type ExportService struct {
	previews previewReader
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	logger   *zap.Logger
}

// NewExportService constructs the export service.
func NewExportService(previews previewReader, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		previews: previews,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		logger:   logger,
	}
}

var exportHeaders = []string{"row", "student_code", "email", "first_name", "last_name", "status", "note"}

// ExportSession renders the session's non-deleted rows in the requested
// format ("csv" or "pdf").
func (s *ExportService) ExportSession(ctx context.Context, offeringID, sessionID, format string) (*ExportFile, error) {
	preview, err := s.previews.GetSession(ctx, offeringID, sessionID)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{Headers: exportHeaders}
	for _, row := range preview.Rows {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"row":          strconv.Itoa(row.RowIndex),
			"student_code": row.StudentCode,
			"email":        row.Email,
			"first_name":   row.FirstName,
			"last_name":    row.LastName,
			"status":       row.Status,
			"note":         row.Note,
		})
	}

	switch format {
	case "", "csv":
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportFile{
			Content:     content,
			ContentType: "text/csv",
			Filename:    fmt.Sprintf("import-preview-%s.csv", sessionID),
		}, nil
	case "pdf":
		content, err := s.pdf.Render(dataset, "Student Import Preview")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportFile{
			Content:     content,
			ContentType: "application/pdf",
			Filename:    fmt.Sprintf("import-preview-%s.pdf", sessionID),
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}
