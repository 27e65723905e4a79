package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-course-api/internal/dto"
	"github.com/noah-isme/uni-course-api/internal/models"
	appErrors "github.com/noah-isme/uni-course-api/pkg/errors"
)

type stagingRepository interface {
	CreateSession(ctx context.Context, session *models.ImportSession, rows []models.ImportRow) error
	FindSession(ctx context.Context, id string) (*models.ImportSession, error)
	ListRows(ctx context.Context, sessionID string, includeDeleted bool) ([]models.ImportRow, error)
	FindRow(ctx context.Context, sessionID string, index int) (*models.ImportRow, error)
	UpdateRow(ctx context.Context, row *models.ImportRow) error
	SoftDeleteRow(ctx context.Context, sessionID string, index int) error
	DeleteSession(ctx context.Context, id string) error
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type offeringReader interface {
	FindByID(ctx context.Context, id string) (*models.OfferingDetail, error)
}

type rowClassifier interface {
	Classify(ctx context.Context, offeringID string, in RowInput) (Classification, error)
}

type identityUpserter interface {
	UpsertByEmail(ctx context.Context, exec sqlx.ExtContext, identity *models.Identity) error
}

type accountUpserter interface {
	UpsertByCode(ctx context.Context, exec sqlx.ExtContext, account *models.StudentAccount) error
}

type enrollmentWriter interface {
	Exists(ctx context.Context, exec sqlx.ExtContext, offeringID, studentCode string) (bool, error)
	Insert(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error
}

type transactor interface {
	RunInTx(ctx context.Context, fn func(exec sqlx.ExtContext) error) error
}

type rosterInvalidator interface {
	InvalidateRoster(ctx context.Context, offeringID string)
}

type importMetrics interface {
	ObserveRowClassified(status models.RowStatus)
	ObserveConfirmOutcome(outcome models.RowOutcome)
}

// ImportConfig tunes staging behaviour.
type ImportConfig struct {
	SessionTTL time.Duration
	MaxRows    int
}

// ImportService owns the bulk student-import workflow: preview creation,
// row editing and deletion, confirm, and expired-session cleanup. Staging
// state is exclusively owned here; no other subsystem reads it.
type ImportService struct {
	staging     stagingRepository
	offerings   offeringReader
	classifier  rowClassifier
	identities  identityUpserter
	accounts    accountUpserter
	enrollments enrollmentWriter
	tx          transactor
	roster      rosterInvalidator
	metrics     importMetrics
	validator   *validator.Validate
	logger      *zap.Logger
	config      ImportConfig

	now func() time.Time
}

// NewImportService constructs the import service.
func NewImportService(
	staging stagingRepository,
	offerings offeringReader,
	classifier rowClassifier,
	identities identityUpserter,
	accounts accountUpserter,
	enrollments enrollmentWriter,
	tx transactor,
	roster rosterInvalidator,
	metrics importMetrics,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg ImportConfig,
) *ImportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = time.Hour
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 500
	}
	return &ImportService{
		staging:     staging,
		offerings:   offerings,
		classifier:  classifier,
		identities:  identities,
		accounts:    accounts,
		enrollments: enrollments,
		tx:          tx,
		roster:      roster,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		config:      cfg,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CreatePreview classifies the uploaded rows against durable store state and
// stages them under a fresh session. Rows are validated independently; two
// rows in the same batch are not cross-checked against each other.
func (s *ImportService) CreatePreview(ctx context.Context, offeringID, creatorID string, req dto.CreatePreviewRequest) (*dto.PreviewSession, error) {
	if _, err := uuid.Parse(offeringID); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid offering id")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid preview payload")
	}
	if len(req.Rows) > s.config.MaxRows {
		return nil, appErrors.Clone(appErrors.ErrValidation, "too many rows in upload")
	}

	if _, err := s.offerings.FindByID(ctx, offeringID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering")
	}

	now := s.now()
	session := &models.ImportSession{
		ID:         uuid.NewString(),
		OfferingID: offeringID,
		CreatedBy:  creatorID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.config.SessionTTL),
	}

	rows := make([]models.ImportRow, 0, len(req.Rows))
	for i, raw := range req.Rows {
		row := models.ImportRow{
			SessionID:   session.ID,
			RowIndex:    i,
			StudentCode: strings.TrimSpace(raw.StudentCode),
			Email:       strings.TrimSpace(raw.Email),
			FirstName:   strings.TrimSpace(raw.FirstName),
			LastName:    strings.TrimSpace(raw.LastName),
		}
		verdict, err := s.classifier.Classify(ctx, offeringID, RowInput{
			StudentCode: row.StudentCode,
			Email:       row.Email,
			FirstName:   row.FirstName,
			LastName:    row.LastName,
		})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to classify rows")
		}
		row.Status = verdict.Status
		row.Note = verdict.Note
		if s.metrics != nil {
			s.metrics.ObserveRowClassified(row.Status)
		}
		rows = append(rows, row)
	}

	if err := s.staging.CreateSession(ctx, session, rows); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stage import session")
	}

	s.logger.Info("import preview created",
		zap.String("session_id", session.ID),
		zap.String("offering_id", offeringID),
		zap.Int("rows", len(rows)),
	)

	return s.previewResponse(session, rows), nil
}

// GetSession returns the session's non-deleted rows with aggregate counts.
// Reading an expired session surfaces the expiry instead of stale rows.
func (s *ImportService) GetSession(ctx context.Context, offeringID, sessionID string) (*dto.PreviewSession, error) {
	session, err := s.loadActiveSession(ctx, offeringID, sessionID)
	if err != nil {
		return nil, err
	}
	rows, err := s.staging.ListRows(ctx, session.ID, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staged rows")
	}
	return s.previewResponse(session, rows), nil
}

// EditRow merges the supplied fields over the stored row, re-runs
// classification on the merged result and persists the new verdict.
func (s *ImportService) EditRow(ctx context.Context, offeringID, sessionID string, index int, req dto.EditRowRequest) (*dto.ImportRowItem, error) {
	session, err := s.loadActiveSession(ctx, offeringID, sessionID)
	if err != nil {
		return nil, err
	}

	row, err := s.staging.FindRow(ctx, session.ID, index)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "import row not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load import row")
	}
	if row.Deleted {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "import row not found")
	}

	if req.StudentCode != nil {
		row.StudentCode = strings.TrimSpace(*req.StudentCode)
	}
	if req.Email != nil {
		row.Email = strings.TrimSpace(*req.Email)
	}
	if req.FirstName != nil {
		row.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		row.LastName = strings.TrimSpace(*req.LastName)
	}

	verdict, err := s.classifier.Classify(ctx, session.OfferingID, RowInput{
		StudentCode: row.StudentCode,
		Email:       row.Email,
		FirstName:   row.FirstName,
		LastName:    row.LastName,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to classify row")
	}
	row.Status = verdict.Status
	row.Note = verdict.Note

	if err := s.staging.UpdateRow(ctx, row); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update import row")
	}
	if s.metrics != nil {
		s.metrics.ObserveRowClassified(row.Status)
	}

	item := dto.RowItemFromModel(*row)
	return &item, nil
}

// DeleteRow soft-deletes the row. Deleting an already-deleted row is a
// no-op, not an error.
func (s *ImportService) DeleteRow(ctx context.Context, offeringID, sessionID string, index int) error {
	session, err := s.loadActiveSession(ctx, offeringID, sessionID)
	if err != nil {
		return err
	}

	row, err := s.staging.FindRow(ctx, session.ID, index)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "import row not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load import row")
	}
	if row.Deleted {
		return nil
	}

	if err := s.staging.SoftDeleteRow(ctx, session.ID, index); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete import row")
	}
	return nil
}

// PurgeExpired removes sessions past their TTL. Invoked periodically by the
// background cleanup job; lazy expiry checks on access remain the
// correctness mechanism.
func (s *ImportService) PurgeExpired(ctx context.Context) (int64, error) {
	purged, err := s.staging.PurgeExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		s.logger.Info("purged expired import sessions", zap.Int64("sessions", purged))
	}
	return purged, nil
}

func (s *ImportService) loadActiveSession(ctx context.Context, offeringID, sessionID string) (*models.ImportSession, error) {
	if _, err := uuid.Parse(offeringID); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid offering id")
	}
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid session id")
	}

	session, err := s.staging.FindSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "import session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load import session")
	}
	if session.OfferingID != offeringID {
		return nil, appErrors.ErrOfferingMismatch
	}
	if session.Expired(s.now()) {
		return nil, appErrors.ErrSessionExpired
	}
	return session, nil
}

func (s *ImportService) previewResponse(session *models.ImportSession, rows []models.ImportRow) *dto.PreviewSession {
	items := make([]dto.ImportRowItem, 0, len(rows))
	live := make([]models.ImportRow, 0, len(rows))
	for _, row := range rows {
		if row.Deleted {
			continue
		}
		items = append(items, dto.RowItemFromModel(row))
		live = append(live, row)
	}
	return &dto.PreviewSession{
		SessionID:  session.ID,
		OfferingID: session.OfferingID,
		ExpiresAt:  session.ExpiresAt,
		Rows:       items,
		Summary:    dto.SummarizeRows(live),
	}
}
