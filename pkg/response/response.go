package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-course-api/internal/models"
	appErrors "github.com/noah-isme/uni-course-api/pkg/errors"
)

// Envelope is the uniform response body: exactly one of Data or Error is set.
type Envelope struct {
	Data       interface{}            `json:"data,omitempty"`
	Error      *appErrors.Error       `json:"error,omitempty"`
	Pagination *models.Pagination     `json:"pagination,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

func write(c *gin.Context, status int, env Envelope) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(status, env)
}

// JSON sends a success payload, optionally with pagination and meta.
func JSON(c *gin.Context, status int, data interface{}, pagination *models.Pagination, meta ...map[string]interface{}) {
	env := Envelope{Data: data, Pagination: pagination}
	if len(meta) > 0 {
		env.Meta = meta[0]
	}
	write(c, status, env)
}

// Created sends the payload with HTTP 201.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data, nil)
}

// Error normalises err into the envelope's error shape and sends it with the
// error's HTTP status.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	write(c, appErr.Status, Envelope{Error: appErr})
}

// NoContent sends HTTP 204 with an empty body.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
