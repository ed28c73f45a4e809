// internal/api/middleware.go
package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Corphon/VoicePromptMCP/internal/utils"
)

// RequestIDMiddleware 为每个请求分配ID，用于响应体和日志中的追踪
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// MetricsMiddleware 记录每个请求的耗时和状态码
func MetricsMiddleware() gin.HandlerFunc {
	apiMetrics := utils.NewAPIMetrics()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		apiMetrics.RecordAPIRequest(c.FullPath(), c.Request.Method, c.Writer.Status(), time.Since(start))
	}
}
