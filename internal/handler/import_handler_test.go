package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-course-api/internal/dto"
	"github.com/noah-isme/uni-course-api/internal/middleware"
	"github.com/noah-isme/uni-course-api/internal/models"
	"github.com/noah-isme/uni-course-api/internal/service"
	appErrors "github.com/noah-isme/uni-course-api/pkg/errors"
)

type importServiceMock struct {
	preview    *dto.PreviewSession
	previewErr error
	confirm    *dto.ConfirmResult
	confirmErr error
	editedRow  *dto.ImportRowItem
	deleteErr  error

	gotCreatorID string
	gotIndex     int
}

func (m *importServiceMock) CreatePreview(ctx context.Context, offeringID, creatorID string, req dto.CreatePreviewRequest) (*dto.PreviewSession, error) {
	m.gotCreatorID = creatorID
	if m.previewErr != nil {
		return nil, m.previewErr
	}
	return m.preview, nil
}

func (m *importServiceMock) GetSession(ctx context.Context, offeringID, sessionID string) (*dto.PreviewSession, error) {
	if m.previewErr != nil {
		return nil, m.previewErr
	}
	return m.preview, nil
}

func (m *importServiceMock) EditRow(ctx context.Context, offeringID, sessionID string, index int, req dto.EditRowRequest) (*dto.ImportRowItem, error) {
	m.gotIndex = index
	return m.editedRow, nil
}

func (m *importServiceMock) DeleteRow(ctx context.Context, offeringID, sessionID string, index int) error {
	m.gotIndex = index
	return m.deleteErr
}

func (m *importServiceMock) Confirm(ctx context.Context, offeringID, sessionID string) (*dto.ConfirmResult, error) {
	if m.confirmErr != nil {
		return nil, m.confirmErr
	}
	return m.confirm, nil
}

type exportServiceMock struct {
	file *service.ExportFile
	err  error
}

func (m *exportServiceMock) ExportSession(ctx context.Context, offeringID, sessionID, format string) (*service.ExportFile, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.file, nil
}

func importTestContext(t *testing.T, method, path string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func TestImportHandlerCreatePreview(t *testing.T) {
	mock := &importServiceMock{preview: &dto.PreviewSession{SessionID: "sess-1", OfferingID: "off-1"}}
	h := NewImportHandler(mock, &exportServiceMock{})

	c, w := importTestContext(t, http.MethodPost, "/offerings/off-1/import/preview", dto.CreatePreviewRequest{
		Rows: []dto.RawImportRow{{StudentCode: "S100", Email: "a@b.edu", FirstName: "Ana", LastName: "Silva"}},
	})
	c.Params = gin.Params{{Key: "offeringId", Value: "off-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1"})

	h.CreatePreview(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "user-1", mock.gotCreatorID)
	assert.Contains(t, w.Body.String(), "sess-1")
}

func TestImportHandlerCreatePreviewInvalidBody(t *testing.T) {
	h := NewImportHandler(&importServiceMock{}, &exportServiceMock{})

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/offerings/off-1/import/preview", bytes.NewReader([]byte(`not-json`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	h.CreatePreview(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImportHandlerGetSessionExpired(t *testing.T) {
	mock := &importServiceMock{previewErr: appErrors.ErrSessionExpired}
	h := NewImportHandler(mock, &exportServiceMock{})

	c, w := importTestContext(t, http.MethodGet, "/offerings/off-1/import/sess-1", nil)
	c.Params = gin.Params{{Key: "offeringId", Value: "off-1"}, {Key: "sessionId", Value: "sess-1"}}

	h.GetSession(c)
	require.Equal(t, http.StatusGone, w.Code)
	assert.Contains(t, w.Body.String(), "SESSION_EXPIRED")
}

func TestImportHandlerEditRow(t *testing.T) {
	mock := &importServiceMock{editedRow: &dto.ImportRowItem{RowIndex: 2, Status: "NEW"}}
	h := NewImportHandler(mock, &exportServiceMock{})

	email := "new@example.edu"
	c, w := importTestContext(t, http.MethodPut, "/offerings/off-1/import/sess-1/rows/2", dto.EditRowRequest{Email: &email})
	c.Params = gin.Params{{Key: "offeringId", Value: "off-1"}, {Key: "sessionId", Value: "sess-1"}, {Key: "index", Value: "2"}}

	h.EditRow(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, mock.gotIndex)
}

func TestImportHandlerEditRowBadIndex(t *testing.T) {
	h := NewImportHandler(&importServiceMock{}, &exportServiceMock{})

	c, w := importTestContext(t, http.MethodPut, "/offerings/off-1/import/sess-1/rows/abc", dto.EditRowRequest{})
	c.Params = gin.Params{{Key: "offeringId", Value: "off-1"}, {Key: "sessionId", Value: "sess-1"}, {Key: "index", Value: "abc"}}

	h.EditRow(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImportHandlerDeleteRow(t *testing.T) {
	mock := &importServiceMock{}
	h := NewImportHandler(mock, &exportServiceMock{})

	c, w := importTestContext(t, http.MethodDelete, "/offerings/off-1/import/sess-1/rows/0", nil)
	c.Params = gin.Params{{Key: "offeringId", Value: "off-1"}, {Key: "sessionId", Value: "sess-1"}, {Key: "index", Value: "0"}}

	h.DeleteRow(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestImportHandlerDeleteRowNotFound(t *testing.T) {
	mock := &importServiceMock{deleteErr: appErrors.Clone(appErrors.ErrNotFound, "import row not found")}
	h := NewImportHandler(mock, &exportServiceMock{})

	c, w := importTestContext(t, http.MethodDelete, "/offerings/off-1/import/sess-1/rows/9", nil)
	c.Params = gin.Params{{Key: "offeringId", Value: "off-1"}, {Key: "sessionId", Value: "sess-1"}, {Key: "index", Value: "9"}}

	h.DeleteRow(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestImportHandlerConfirm(t *testing.T) {
	mock := &importServiceMock{confirm: &dto.ConfirmResult{
		SessionID: "sess-1",
		Summary:   dto.ConfirmSummary{Total: 2, Enrolled: 1, Failed: 1},
	}}
	h := NewImportHandler(mock, &exportServiceMock{})

	c, w := importTestContext(t, http.MethodPost, "/offerings/off-1/import/sess-1/confirm", nil)
	c.Params = gin.Params{{Key: "offeringId", Value: "off-1"}, {Key: "sessionId", Value: "sess-1"}}

	h.Confirm(c)
	// Partial failure still reports 200 with per-row outcomes.
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"failed":1`)
}

func TestImportHandlerConfirmMismatch(t *testing.T) {
	mock := &importServiceMock{confirmErr: appErrors.ErrOfferingMismatch}
	h := NewImportHandler(mock, &exportServiceMock{})

	c, w := importTestContext(t, http.MethodPost, "/offerings/off-2/import/sess-1/confirm", nil)
	c.Params = gin.Params{{Key: "offeringId", Value: "off-2"}, {Key: "sessionId", Value: "sess-1"}}

	h.Confirm(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "OFFERING_MISMATCH")
}

func TestImportHandlerExport(t *testing.T) {
	mock := &exportServiceMock{file: &service.ExportFile{
		Content:     []byte("row,student_code\n"),
		ContentType: "text/csv",
		Filename:    "import-sess-1.csv",
	}}
	h := NewImportHandler(&importServiceMock{}, mock)

	c, w := importTestContext(t, http.MethodGet, "/offerings/off-1/import/sess-1/export?format=csv", nil)
	c.Params = gin.Params{{Key: "offeringId", Value: "off-1"}, {Key: "sessionId", Value: "sess-1"}}

	h.Export(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "import-sess-1.csv")
}
