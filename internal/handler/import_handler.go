package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-course-api/internal/dto"
	"github.com/noah-isme/uni-course-api/internal/service"
	appErrors "github.com/noah-isme/uni-course-api/pkg/errors"
	"github.com/noah-isme/uni-course-api/pkg/response"
)

type importService interface {
	CreatePreview(ctx context.Context, offeringID, creatorID string, req dto.CreatePreviewRequest) (*dto.PreviewSession, error)
	GetSession(ctx context.Context, offeringID, sessionID string) (*dto.PreviewSession, error)
	EditRow(ctx context.Context, offeringID, sessionID string, index int, req dto.EditRowRequest) (*dto.ImportRowItem, error)
	DeleteRow(ctx context.Context, offeringID, sessionID string, index int) error
	Confirm(ctx context.Context, offeringID, sessionID string) (*dto.ConfirmResult, error)
}

type exportService interface {
	ExportSession(ctx context.Context, offeringID, sessionID, format string) (*service.ExportFile, error)
}

// ImportHandler exposes the student-import staging endpoints.
type ImportHandler struct {
	imports importService
	exports exportService
}

// NewImportHandler constructs ImportHandler.
func NewImportHandler(imports importService, exports exportService) *ImportHandler {
	return &ImportHandler{imports: imports, exports: exports}
}

// CreatePreview godoc
// @Summary Stage an uploaded student batch for review
// @Tags Imports
// @Accept json
// @Produce json
// @Param offeringId path string true "Offering ID"
// @Param payload body dto.CreatePreviewRequest true "Parsed upload rows"
// @Success 201 {object} response.Envelope
// @Router /offerings/{offeringId}/import/preview [post]
func (h *ImportHandler) CreatePreview(c *gin.Context) {
	var req dto.CreatePreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	creatorID := ""
	if claims := claimsFromContext(c); claims != nil {
		creatorID = claims.UserID
	}

	session, err := h.imports.CreatePreview(c.Request.Context(), c.Param("offeringId"), creatorID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// GetSession godoc
// @Summary Read a staged import session
// @Tags Imports
// @Produce json
// @Param offeringId path string true "Offering ID"
// @Param sessionId path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /offerings/{offeringId}/import/{sessionId} [get]
func (h *ImportHandler) GetSession(c *gin.Context) {
	session, err := h.imports.GetSession(c.Request.Context(), c.Param("offeringId"), c.Param("sessionId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// EditRow godoc
// @Summary Edit a staged row and re-classify it
// @Tags Imports
// @Accept json
// @Produce json
// @Param offeringId path string true "Offering ID"
// @Param sessionId path string true "Session ID"
// @Param index path int true "Row index"
// @Param payload body dto.EditRowRequest true "Partial row fields"
// @Success 200 {object} response.Envelope
// @Router /offerings/{offeringId}/import/{sessionId}/rows/{index} [put]
func (h *ImportHandler) EditRow(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid row index"))
		return
	}

	var req dto.EditRowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	row, err := h.imports.EditRow(c.Request.Context(), c.Param("offeringId"), c.Param("sessionId"), index, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, row, nil)
}

// DeleteRow godoc
// @Summary Remove a staged row from the batch
// @Tags Imports
// @Produce json
// @Param offeringId path string true "Offering ID"
// @Param sessionId path string true "Session ID"
// @Param index path int true "Row index"
// @Success 204
// @Router /offerings/{offeringId}/import/{sessionId}/rows/{index} [delete]
func (h *ImportHandler) DeleteRow(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid row index"))
		return
	}

	if err := h.imports.DeleteRow(c.Request.Context(), c.Param("offeringId"), c.Param("sessionId"), index); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Confirm godoc
// @Summary Commit the staged batch into enrollment state
// @Tags Imports
// @Produce json
// @Param offeringId path string true "Offering ID"
// @Param sessionId path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /offerings/{offeringId}/import/{sessionId}/confirm [post]
func (h *ImportHandler) Confirm(c *gin.Context) {
	result, err := h.imports.Confirm(c.Request.Context(), c.Param("offeringId"), c.Param("sessionId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Export godoc
// @Summary Download the staged batch as CSV or PDF
// @Tags Imports
// @Produce octet-stream
// @Param offeringId path string true "Offering ID"
// @Param sessionId path string true "Session ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Router /offerings/{offeringId}/import/{sessionId}/export [get]
func (h *ImportHandler) Export(c *gin.Context) {
	file, err := h.exports.ExportSession(c.Request.Context(), c.Param("offeringId"), c.Param("sessionId"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+file.Filename+`"`)
	c.Data(http.StatusOK, file.ContentType, file.Content)
}
