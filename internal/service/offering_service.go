package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-course-api/internal/models"
	appErrors "github.com/noah-isme/uni-course-api/pkg/errors"
)

type offeringRepository interface {
	List(ctx context.Context, filter models.OfferingFilter) ([]models.OfferingDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.OfferingDetail, error)
	Create(ctx context.Context, offering *models.Offering) error
}

// CreateOfferingRequest holds payload for creating offerings.
type CreateOfferingRequest struct {
	CourseID string `json:"course_id" validate:"required,uuid4"`
	Term     string `json:"term" validate:"required"`
	Year     int    `json:"year" validate:"required,min=2000"`
}

// OfferingService handles offering use-cases.
type OfferingService struct {
	repo      offeringRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewOfferingService constructs the offering service.
func NewOfferingService(repo offeringRepository, validate *validator.Validate, logger *zap.Logger) *OfferingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OfferingService{repo: repo, validator: validate, logger: logger}
}

// List returns offerings and pagination metadata.
func (s *OfferingService) List(ctx context.Context, filter models.OfferingFilter) ([]models.OfferingDetail, *models.Pagination, error) {
	offerings, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list offerings")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return offerings, pagination, nil
}

// Get returns detailed offering information.
func (s *OfferingService) Get(ctx context.Context, id string) (*models.OfferingDetail, error) {
	offering, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering")
	}
	return offering, nil
}

// Create registers a new offering.
func (s *OfferingService) Create(ctx context.Context, req CreateOfferingRequest) (*models.Offering, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid offering payload")
	}
	offering := &models.Offering{
		CourseID: req.CourseID,
		Term:     req.Term,
		Year:     req.Year,
		Active:   true,
	}
	if err := s.repo.Create(ctx, offering); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create offering")
	}
	return offering, nil
}
