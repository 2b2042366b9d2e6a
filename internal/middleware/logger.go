package middleware

import (
	"net/http"
	"time"

	"botadmin/internal/dto/resp"
	"botadmin/internal/service"
	"botadmin/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func GinZapLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info("http_request",
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("ip", c.ClientIP()),
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.String("trace_id", c.GetString(traceIDKey)),
			zap.String("operator", operatorName(c)),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func GinZapRecovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered",
					zap.Any("error", err),
					zap.String("path", c.Request.URL.Path),
					zap.Stack("stack"),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, resp.ErrorResp{Detail: "A server error occurred."})
			}
		}()
		c.Next()
	}
}

const requestIDKey = "request_id"

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := uuid.New().String()
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set("X-Request-ID", rid)
		c.Next()
	}
}

func operatorName(c *gin.Context) string {
	if service.GetOperatorInfo(c.Request.Context()) == nil {
		return ""
	}
	return service.GetOperator(c.Request.Context())
}
