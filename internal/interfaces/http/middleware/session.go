package middleware

import (
	"github.com/gin-gonic/gin"

	"z-novel-chapter-gen/pkg/logger"
)

// SessionContext 将路径中的会话 ID 注入日志上下文
func SessionContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		if sid := c.Param("sid"); sid != "" {
			c.Set("session_id", sid)
			ctx := logger.WithContext(c.Request.Context(), logger.SessionIDKey, sid)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}
