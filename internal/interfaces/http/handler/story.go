package handler

import (
	"github.com/gin-gonic/gin"

	"z-novel-chapter-gen/internal/application/story/session"
	"z-novel-chapter-gen/internal/interfaces/http/dto"
	"z-novel-chapter-gen/pkg/logger"
)

// StoryHandler 故事上下文处理器（角色、文本字段、输出目录）
type StoryHandler struct {
	sessions *session.Manager
}

// NewStoryHandler 创建故事上下文处理器
func NewStoryHandler(sessions *session.Manager) *StoryHandler {
	return &StoryHandler{sessions: sessions}
}

// AddCharacter 添加角色
// @Summary 添加角色
// @Tags Story
// @Accept json
// @Produce json
// @Param sid path string true "会话 ID"
// @Param body body dto.CreateCharacterRequest true "角色"
// @Success 201 {object} dto.Response[dto.StoryResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/sessions/{sid}/characters [post]
func (h *StoryHandler) AddCharacter(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req dto.CreateCharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if err := s.Store.AddCharacter(req.Name, req.Description); err != nil {
		dto.AppError(c, err)
		return
	}
	dto.Created(c, dto.ToStoryResponse(s.Store.Snapshot()))
}

// UpdateCharacter 修改角色描述
// @Summary 修改角色
// @Tags Story
// @Accept json
// @Produce json
// @Param sid path string true "会话 ID"
// @Param name path string true "角色名称"
// @Param body body dto.UpdateCharacterRequest true "描述"
// @Success 200 {object} dto.Response[dto.StoryResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/sessions/{sid}/characters/{name} [put]
func (h *StoryHandler) UpdateCharacter(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req dto.UpdateCharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if err := s.Store.UpdateCharacter(dto.BindCharacterName(c), req.Description); err != nil {
		dto.AppError(c, err)
		return
	}
	dto.Success(c, dto.ToStoryResponse(s.Store.Snapshot()))
}

// RemoveCharacter 删除角色
// @Summary 删除角色
// @Tags Story
// @Param sid path string true "会话 ID"
// @Param name path string true "角色名称"
// @Success 200 {object} dto.Response[dto.StoryResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/sessions/{sid}/characters/{name} [delete]
func (h *StoryHandler) RemoveCharacter(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.Store.RemoveCharacter(dto.BindCharacterName(c)); err != nil {
		dto.AppError(c, err)
		return
	}
	dto.Success(c, dto.ToStoryResponse(s.Store.Snapshot()))
}

// SetField 设置情节、风格指南、写作风格或附加指令
// @Summary 设置文本字段
// @Tags Story
// @Accept json
// @Produce json
// @Param sid path string true "会话 ID"
// @Param field path string true "plot | style_guide | writing_style | instructions"
// @Param body body dto.SetFieldRequest true "文本"
// @Success 200 {object} dto.Response[dto.StoryResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/sessions/{sid}/fields/{field} [put]
func (h *StoryHandler) SetField(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req dto.SetFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if err := s.Store.SetField(dto.BindFieldName(c), req.Text); err != nil {
		dto.AppError(c, err)
		return
	}
	dto.Success(c, dto.ToStoryResponse(s.Store.Snapshot()))
}

// SetOutputPath 设置输出目录
// @Summary 设置输出目录
// @Tags Story
// @Accept json
// @Produce json
// @Param sid path string true "会话 ID"
// @Param body body dto.SetOutputPathRequest true "目录"
// @Success 200 {object} dto.Response[dto.StoryResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/sessions/{sid}/output-path [put]
func (h *StoryHandler) SetOutputPath(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req dto.SetOutputPathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if err := s.Store.SetOutputPath(req.Path); err != nil {
		logger.Warn(c.Request.Context(), "failed to set output path", "path", req.Path, "error", err.Error())
		dto.AppError(c, err)
		return
	}
	dto.Success(c, dto.ToStoryResponse(s.Store.Snapshot()))
}

func (h *StoryHandler) session(c *gin.Context) (*session.Session, bool) {
	return lookupSession(c, h.sessions)
}

// lookupSession 获取路径中的会话，不存在时写出 404
func lookupSession(c *gin.Context, sessions *session.Manager) (*session.Session, bool) {
	s, err := sessions.Get(dto.BindSessionID(c))
	if err != nil {
		dto.AppError(c, err)
		return nil, false
	}
	return s, true
}
