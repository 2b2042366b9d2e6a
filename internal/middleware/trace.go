package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const traceIDKey = "trace_id"

// TraceMiddleware propagates X-Trace-ID, minting one when the caller sent none.
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader("X-Trace-ID")
		if traceID == "" {
			traceID = uuid.New().String()
		}
		c.Set(traceIDKey, traceID)
		c.Writer.Header().Set("X-Trace-ID", traceID)
		c.Next()
	}
}
