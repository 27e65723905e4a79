package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-course-api/internal/service"
)

// Metrics records request duration and count per route template. Unmatched
// requests fall back to the raw URL path so 404s still show up.
func Metrics(metrics *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		metrics.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
