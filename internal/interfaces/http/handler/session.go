package handler

import (
	"github.com/gin-gonic/gin"

	"z-novel-chapter-gen/internal/application/story/session"
	"z-novel-chapter-gen/internal/interfaces/http/dto"
)

// SessionHandler 会话处理器
type SessionHandler struct {
	sessions *session.Manager
}

// NewSessionHandler 创建会话处理器
func NewSessionHandler(sessions *session.Manager) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// CreateSession 创建会话
// @Summary 创建故事会话
// @Tags Sessions
// @Produce json
// @Success 201 {object} dto.Response[dto.SessionResponse]
// @Router /v1/sessions [post]
func (h *SessionHandler) CreateSession(c *gin.Context) {
	s := h.sessions.Create(c.Request.Context())
	dto.Created(c, dto.ToSessionResponse(s))
}

// ListSessions 列出会话
// @Summary 列出故事会话
// @Tags Sessions
// @Produce json
// @Success 200 {object} dto.Response[dto.SessionListResponse]
// @Router /v1/sessions [get]
func (h *SessionHandler) ListSessions(c *gin.Context) {
	dto.Success(c, dto.ToSessionListResponse(h.sessions.List()))
}

// GetSession 获取会话及其故事上下文
// @Summary 获取故事会话
// @Tags Sessions
// @Produce json
// @Param sid path string true "会话 ID"
// @Success 200 {object} dto.Response[dto.SessionResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/sessions/{sid} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	s, err := h.sessions.Get(dto.BindSessionID(c))
	if err != nil {
		dto.AppError(c, err)
		return
	}
	dto.Success(c, dto.ToSessionResponse(s))
}

// DeleteSession 删除会话，已生成的章节文件保留
// @Summary 删除故事会话
// @Tags Sessions
// @Param sid path string true "会话 ID"
// @Success 204
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/sessions/{sid} [delete]
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	if err := h.sessions.Delete(c.Request.Context(), dto.BindSessionID(c)); err != nil {
		dto.AppError(c, err)
		return
	}
	dto.NoContent(c)
}
