package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-course-api/internal/models"
	"github.com/noah-isme/uni-course-api/internal/service"
	appErrors "github.com/noah-isme/uni-course-api/pkg/errors"
	"github.com/noah-isme/uni-course-api/pkg/response"
)

// OfferingHandler exposes offering endpoints.
type OfferingHandler struct {
	offerings *service.OfferingService
	roster    *service.RosterService
}

// NewOfferingHandler constructs OfferingHandler.
func NewOfferingHandler(offerings *service.OfferingService, roster *service.RosterService) *OfferingHandler {
	return &OfferingHandler{offerings: offerings, roster: roster}
}

// List godoc
// @Summary List course offerings
// @Tags Offerings
// @Produce json
// @Param courseId query string false "Filter by course"
// @Param term query string false "Filter by term"
// @Param year query int false "Filter by year"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /offerings [get]
func (h *OfferingHandler) List(c *gin.Context) {
	var filter models.OfferingFilter
	filter.CourseID = c.Query("courseId")
	filter.Term = c.Query("term")
	if year, err := strconv.Atoi(c.Query("year")); err == nil {
		filter.Year = year
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	offerings, pagination, err := h.offerings.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, offerings, pagination)
}

// Get godoc
// @Summary Get offering detail
// @Tags Offerings
// @Produce json
// @Param id path string true "Offering ID"
// @Success 200 {object} response.Envelope
// @Router /offerings/{id} [get]
func (h *OfferingHandler) Get(c *gin.Context) {
	offering, err := h.offerings.Get(c.Request.Context(), c.Param("offeringId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, offering, nil)
}

// Create godoc
// @Summary Create a course offering
// @Tags Offerings
// @Accept json
// @Produce json
// @Param payload body service.CreateOfferingRequest true "Offering payload"
// @Success 201 {object} response.Envelope
// @Router /offerings [post]
func (h *OfferingHandler) Create(c *gin.Context) {
	var req service.CreateOfferingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	offering, err := h.offerings.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, offering)
}

// Roster godoc
// @Summary List students enrolled in an offering
// @Tags Offerings
// @Produce json
// @Param id path string true "Offering ID"
// @Success 200 {object} response.Envelope
// @Router /offerings/{id}/roster [get]
func (h *OfferingHandler) Roster(c *gin.Context) {
	roster, err := h.roster.List(c.Request.Context(), c.Param("offeringId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, roster, nil)
}
