package router

import (
	"github.com/gin-gonic/gin"

	"z-novel-chapter-gen/internal/interfaces/http/middleware"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(v1 *gin.RouterGroup, h *RouterHandlers, generationLimit gin.HandlerFunc) {
	sessions := v1.Group("/sessions")
	{
		sessions.GET("", h.Session.ListSessions)
		sessions.POST("", h.Session.CreateSession)
	}

	// 单个会话
	s := sessions.Group("/:sid", middleware.SessionContext())
	{
		s.GET("", h.Session.GetSession)
		s.DELETE("", h.Session.DeleteSession)

		// 角色
		s.POST("/characters", h.Story.AddCharacter)
		s.PUT("/characters/:name", h.Story.UpdateCharacter)
		s.DELETE("/characters/:name", h.Story.RemoveCharacter)

		// 文本字段与输出目录
		s.PUT("/fields/:field", h.Story.SetField)
		s.PUT("/output-path", h.Story.SetOutputPath)

		// 章节
		s.GET("/chapters", h.Chapter.ListChapters)
		s.GET("/chapters/:num", h.Chapter.GetChapter)
		s.POST("/chapters", generationLimit, h.Chapter.GenerateChapter)
	}
}
