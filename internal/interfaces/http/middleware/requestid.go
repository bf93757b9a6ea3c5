// Package middleware provides the gin middleware chain shared by every HTTP
// route: request identification, structured logging, panic recovery, metrics,
// and CORS.
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderRequestID is the canonical request id header, echoed on responses.
const HeaderRequestID = "X-Request-ID"

// contextKeyRequestID is the gin context key under which the request id is
// stored for downstream handlers and middleware.
const contextKeyRequestID = "request_id"

// RequestID returns middleware that adopts the caller-supplied X-Request-ID
// or generates one, stores it in the request context, and echoes it on the
// response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(contextKeyRequestID, id)
		c.Writer.Header().Set(HeaderRequestID, id)
		c.Next()
	}
}

// GetRequestID returns the request id assigned by RequestID, or "" when the
// middleware did not run.
func GetRequestID(c *gin.Context) string {
	return c.GetString(contextKeyRequestID)
}
