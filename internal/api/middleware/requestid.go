package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/hybridui/dombridge/internal/shared/id"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// requestIDKey is the gin context key for the request id.
const requestIDKey = "request_id"

// RequestID assigns each request a ULID-based correlation id, honoring
// one supplied by the client, and echoes it in the response.
func RequestID() gin.HandlerFunc {
	gen := id.NewGenerator()
	return func(c *gin.Context) {
		rid := c.GetHeader(RequestIDHeader)
		if rid == "" {
			rid = gen.GenerateWithPrefix("req")
		}
		c.Set(requestIDKey, rid)
		c.Header(RequestIDHeader, rid)
		c.Next()
	}
}

// GetRequestID returns the correlation id assigned to the request, or
// an empty string when the middleware is not installed.
func GetRequestID(c *gin.Context) string {
	rid, _ := c.Get(requestIDKey)
	s, _ := rid.(string)
	return s
}
