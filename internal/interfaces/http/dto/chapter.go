package dto

import (
	"time"

	"z-novel-chapter-gen/internal/domain/entity"
)

// GenerateChapterRequest 生成章节请求
type GenerateChapterRequest struct {
	ChapterNumber int `json:"chapter_number" binding:"required"`
	// MinimumWordCount 未提供时使用服务端默认值
	MinimumWordCount *int `json:"minimum_word_count,omitempty"`
}

// ToChapterRequest 转换为领域请求
func (r *GenerateChapterRequest) ToChapterRequest(defaultMin int) entity.ChapterRequest {
	minWords := defaultMin
	if r.MinimumWordCount != nil {
		minWords = *r.MinimumWordCount
	}
	return entity.ChapterRequest{
		ChapterNumber:    r.ChapterNumber,
		MinimumWordCount: minWords,
	}
}

// VerdictResponse 校验结论
type VerdictResponse struct {
	Passed        bool     `json:"passed"`
	Feedback      string   `json:"feedback,omitempty"`
	StyleAdherent *bool    `json:"style_adherent,omitempty"`
	Continuity    *bool    `json:"continuity,omitempty"`
	Issues        []string `json:"issues,omitempty"`
}

// AttemptResponse 单次尝试
type AttemptResponse struct {
	Attempt   int    `json:"attempt"`
	WordCount int    `json:"word_count"`
	Outcome   string `json:"outcome"`
	Reason    string `json:"reason,omitempty"`
	Feedback  string `json:"feedback,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ChapterResponse 生成结果响应
type ChapterResponse struct {
	Number     int                `json:"number"`
	Text       string             `json:"text"`
	WordCount  int                `json:"word_count"`
	Valid      bool               `json:"valid"`
	Feedback   string             `json:"feedback,omitempty"`
	State      string             `json:"state"`
	Verdict    *VerdictResponse   `json:"verdict,omitempty"`
	Attempts   []*AttemptResponse `json:"attempts"`
	FilePath   string             `json:"file_path,omitempty"`
	ReportPath string             `json:"report_path,omitempty"`
}

// ChapterFileResponse 已有章节文件
type ChapterFileResponse struct {
	Number    int    `json:"number"`
	Path      string `json:"path"`
	UpdatedAt string `json:"updated_at"`
}

// ChapterListResponse 章节文件列表
type ChapterListResponse struct {
	OutputPath string                 `json:"output_path"`
	Chapters   []*ChapterFileResponse `json:"chapters"`
}

// ChapterContentResponse 章节正文
type ChapterContentResponse struct {
	Number    int    `json:"number"`
	Path      string `json:"path"`
	Text      string `json:"text"`
	WordCount int    `json:"word_count"`
}

// ToChapterResponse 转换生成结果
func ToChapterResponse(ch *entity.GeneratedChapter) *ChapterResponse {
	if ch == nil {
		return nil
	}
	resp := &ChapterResponse{
		Number:     ch.Number,
		Text:       ch.Text,
		WordCount:  ch.WordCount,
		Valid:      ch.Valid,
		Feedback:   ch.Feedback,
		State:      string(ch.State),
		Attempts:   make([]*AttemptResponse, 0, len(ch.Attempts)),
		FilePath:   ch.FilePath,
		ReportPath: ch.ReportPath,
	}
	if v := ch.Verdict; v != nil {
		resp.Verdict = &VerdictResponse{
			Passed:        v.Passed,
			Feedback:      v.Feedback,
			StyleAdherent: v.StyleAdherent,
			Continuity:    v.Continuity,
			Issues:        v.Issues,
		}
	}
	for _, a := range ch.Attempts {
		resp.Attempts = append(resp.Attempts, &AttemptResponse{
			Attempt:   a.Attempt,
			WordCount: a.WordCount,
			Outcome:   string(a.Outcome),
			Reason:    a.Reason,
			Feedback:  a.Feedback,
			Error:     a.Error,
		})
	}
	return resp
}

// ToChapterListResponse 转换章节文件列表
func ToChapterListResponse(dir string, files []entity.ChapterFile) *ChapterListResponse {
	out := &ChapterListResponse{
		OutputPath: dir,
		Chapters:   make([]*ChapterFileResponse, 0, len(files)),
	}
	for _, f := range files {
		out.Chapters = append(out.Chapters, &ChapterFileResponse{
			Number:    f.Number,
			Path:      f.Path,
			UpdatedAt: f.ModTime.Format(time.RFC3339),
		})
	}
	return out
}

// ToChapterContentResponse 转换章节正文
func ToChapterContentResponse(ch *entity.PriorChapter) *ChapterContentResponse {
	if ch == nil {
		return nil
	}
	return &ChapterContentResponse{
		Number:    ch.Number,
		Path:      ch.Path,
		Text:      ch.Text,
		WordCount: entity.WordCount(ch.Text),
	}
}
