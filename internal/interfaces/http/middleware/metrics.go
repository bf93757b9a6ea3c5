package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/StoryLink-Intelligence/internal/infrastructure/monitoring/prometheus"
)

// Metrics returns middleware that records request counts, latencies, and the
// in-flight gauge.  The route template (e.g. /api/v1/documents/:documentID)
// is used as the path label so cardinality stays bounded.
func Metrics(m *prometheus.DetectionMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		m.HTTPActiveRequests.WithLabelValues(method).Inc()
		defer m.HTTPActiveRequests.WithLabelValues(method).Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		prometheus.RecordHTTPRequest(m, method, path, c.Writer.Status(), time.Since(start))
	}
}
