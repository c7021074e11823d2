package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/apivault/apivault/internal/telemetry"
)

// MetricsMiddleware records http_requests_total and
// http_request_duration_seconds for every request that passes through the
// router.
//
// The path label is set from c.FullPath(), the matched route template
// (e.g. /api/v1/requests/:id/execute) rather than the raw URL. Requests that
// match no registered route use the literal "<no-route>" so unhandled paths do
// not inflate label cardinality.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "<no-route>"
		}

		duration := time.Since(start).Seconds()
		method := c.Request.Method
		status := fmt.Sprintf("%d", c.Writer.Status())

		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}
