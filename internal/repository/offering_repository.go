package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-course-api/internal/models"
)

// OfferingRepository manages persistence for course offerings.
type OfferingRepository struct {
	db *sqlx.DB
}

// NewOfferingRepository constructs an OfferingRepository.
func NewOfferingRepository(db *sqlx.DB) *OfferingRepository {
	return &OfferingRepository{db: db}
}

// List returns offerings matching the provided filters.
func (r *OfferingRepository) List(ctx context.Context, filter models.OfferingFilter) ([]models.OfferingDetail, int, error) {
	base := "FROM offerings o LEFT JOIN courses c ON c.id = o.course_id"
	var args []interface{}
	conditions := []string{"1=1"}

	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("o.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Term != "" {
		conditions = append(conditions, fmt.Sprintf("o.term = $%d", len(args)+1))
		args = append(args, filter.Term)
	}
	if filter.Year != 0 {
		conditions = append(conditions, fmt.Sprintf("o.year = $%d", len(args)+1))
		args = append(args, filter.Year)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("o.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	allowedSorts := map[string]string{
		"term":       "o.term",
		"year":       "o.year",
		"created_at": "o.created_at",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "o.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT o.id, o.course_id, o.term, o.year, o.active, o.created_at, o.updated_at,
        c.code AS course_code, c.title AS course_title
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var offerings []models.OfferingDetail
	if err := r.db.SelectContext(ctx, &offerings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list offerings: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count offerings: %w", err)
	}
	return offerings, total, nil
}

// FindByID fetches an offering detail by ID. Returns sql.ErrNoRows when absent.
func (r *OfferingRepository) FindByID(ctx context.Context, id string) (*models.OfferingDetail, error) {
	const query = `SELECT o.id, o.course_id, o.term, o.year, o.active, o.created_at, o.updated_at,
        c.code AS course_code, c.title AS course_title
        FROM offerings o
        LEFT JOIN courses c ON c.id = o.course_id
        WHERE o.id = $1`
	var detail models.OfferingDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find offering: %w", err)
	}
	return &detail, nil
}

// Create inserts a new offering record.
func (r *OfferingRepository) Create(ctx context.Context, offering *models.Offering) error {
	if offering.ID == "" {
		offering.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if offering.CreatedAt.IsZero() {
		offering.CreatedAt = now
	}
	offering.UpdatedAt = now
	const query = `INSERT INTO offerings (id, course_id, term, year, active, created_at, updated_at)
        VALUES (:id, :course_id, :term, :year, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, offering); err != nil {
		return fmt.Errorf("create offering: %w", err)
	}
	return nil
}
