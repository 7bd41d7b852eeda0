// Package middleware provides shared gin middleware for the HTTP surface.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Kalantar81/window-counter/pkg/logger"
)

const requestIDHeader = "X-Request-ID"
const requestIDContextKey = "request_id"

// RequestID tags each request with a unique ID for tracing. An ID
// supplied by the caller is kept.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Writer.Header().Set(requestIDHeader, requestID)
		c.Set(requestIDContextKey, requestID)

		c.Next()
	}
}

// GetRequestID retrieves the request ID set by RequestID.
func GetRequestID(c *gin.Context) string {
	if id, ok := c.Get(requestIDContextKey); ok {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}

// RequestLogging logs each HTTP request with status and timing.
func RequestLogging(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.Get()
	}
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		log.DebugWith("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
			"request_id", GetRequestID(c),
		)
	}
}
