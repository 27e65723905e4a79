package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-course-api/internal/middleware"
	"github.com/noah-isme/uni-course-api/internal/models"
)

// claimsFromContext returns the authenticated user's claims, or nil when the
// route ran without the JWT middleware.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, ok := c.Get(middleware.ContextUserKey)
	if !ok {
		return nil
	}
	claims, _ := value.(*models.JWTClaims)
	return claims
}
