package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"z-novel-chapter-gen/internal/application/story/chapter"
	"z-novel-chapter-gen/internal/application/story/session"
	"z-novel-chapter-gen/internal/config"
	"z-novel-chapter-gen/internal/domain/entity"
	"z-novel-chapter-gen/internal/interfaces/http/dto"
	apperrors "z-novel-chapter-gen/pkg/errors"
	"z-novel-chapter-gen/pkg/logger"
)

// ChapterService 章节生成与读取
type ChapterService interface {
	GenerateChapter(ctx context.Context, story chapter.StoryReader, req entity.ChapterRequest) (*entity.GeneratedChapter, error)
	ListPriorChapters(ctx context.Context, dir string) ([]entity.ChapterFile, error)
	LoadChapter(ctx context.Context, dir string, number int) (*entity.PriorChapter, error)
}

// ChapterHandler 章节处理器
type ChapterHandler struct {
	sessions   *session.Manager
	chapters   ChapterService
	defaultMin int
}

// NewChapterHandler 创建章节处理器
func NewChapterHandler(sessions *session.Manager, chapters ChapterService, cfg *config.Config) *ChapterHandler {
	return &ChapterHandler{
		sessions:   sessions,
		chapters:   chapters,
		defaultMin: cfg.Generation.DefaultMinWordCount,
	}
}

// ListChapters 列出输出目录中已有的章节
// @Summary 列出章节
// @Description 每次调用都重新扫描输出目录
// @Tags Chapters
// @Produce json
// @Param sid path string true "会话 ID"
// @Success 200 {object} dto.Response[dto.ChapterListResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/sessions/{sid}/chapters [get]
func (h *ChapterHandler) ListChapters(c *gin.Context) {
	s, ok := lookupSession(c, h.sessions)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	dir := s.Store.OutputPath()

	files, err := h.chapters.ListPriorChapters(ctx, dir)
	if err != nil {
		if !apperrors.IsValidation(err) {
			logger.Error(ctx, "failed to list chapters", err)
		}
		dto.AppError(c, err)
		return
	}
	dto.Success(c, dto.ToChapterListResponse(dir, files))
}

// GetChapter 读取章节正文
// @Summary 读取章节
// @Tags Chapters
// @Produce json
// @Param sid path string true "会话 ID"
// @Param num path int true "章节编号"
// @Success 200 {object} dto.Response[dto.ChapterContentResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/sessions/{sid}/chapters/{num} [get]
func (h *ChapterHandler) GetChapter(c *gin.Context) {
	s, ok := lookupSession(c, h.sessions)
	if !ok {
		return
	}
	num, ok := dto.BindChapterNumber(c)
	if !ok {
		dto.BadRequest(c, "chapter number must be a positive integer")
		return
	}
	ctx := c.Request.Context()

	ch, err := h.chapters.LoadChapter(ctx, s.Store.OutputPath(), num)
	if err != nil {
		if apperrors.IsIO(err) {
			logger.Error(ctx, "failed to load chapter", err, "chapter", num)
		}
		dto.AppError(c, err)
		return
	}
	dto.Success(c, dto.ToChapterContentResponse(ch))
}

// GenerateChapter 生成章节并写入输出目录
// @Summary 生成章节
// @Description 同步执行生成、长度检查与质量校验；重试耗尽时仍返回 200，valid=false
// @Tags Chapters
// @Accept json
// @Produce json
// @Param sid path string true "会话 ID"
// @Param body body dto.GenerateChapterRequest true "章节编号与最少词数"
// @Success 200 {object} dto.Response[dto.ChapterResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /v1/sessions/{sid}/chapters [post]
func (h *ChapterHandler) GenerateChapter(c *gin.Context) {
	s, ok := lookupSession(c, h.sessions)
	if !ok {
		return
	}

	var req dto.GenerateChapterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	ctx := logger.WithContext(c.Request.Context(), logger.ChapterKey, req.ChapterNumber)
	result, err := h.chapters.GenerateChapter(ctx, s.Store, req.ToChapterRequest(h.defaultMin))
	if err != nil {
		switch {
		case apperrors.IsValidation(err), apperrors.IsCanceled(err):
		default:
			logger.Error(ctx, "failed to generate chapter", err)
		}
		dto.AppError(c, err)
		return
	}
	dto.Success(c, dto.ToChapterResponse(result))
}
