package entity

import (
	"fmt"
	"strings"
	"time"
)

// GenerationState 重试控制器状态
type GenerationState string

const (
	StateBuilding         GenerationState = "BUILDING"
	StateGenerating       GenerationState = "GENERATING"
	StateCheckingLength   GenerationState = "CHECKING_LENGTH"
	StateCheckingValidity GenerationState = "CHECKING_VALIDITY"
	StateAccepted         GenerationState = "ACCEPTED"
	StateExhausted        GenerationState = "EXHAUSTED"
	StateAborted          GenerationState = "ABORTED"
)

// IsTerminal 是否为终止状态
func (s GenerationState) IsTerminal() bool {
	switch s {
	case StateAccepted, StateExhausted, StateAborted:
		return true
	}
	return false
}

// ChapterRequest 一次章节生成请求
type ChapterRequest struct {
	ChapterNumber    int `json:"chapter_number"`
	MinimumWordCount int `json:"minimum_word_count"`
}

// Validate 校验请求参数
func (r ChapterRequest) Validate() error {
	if r.ChapterNumber < 1 {
		return fmt.Errorf("chapter_number must be a positive integer, got %d", r.ChapterNumber)
	}
	if r.MinimumWordCount < 0 {
		return fmt.Errorf("minimum_word_count must not be negative, got %d", r.MinimumWordCount)
	}
	return nil
}

// PriorChapter 磁盘上已存在的前文章节
type PriorChapter struct {
	Number int    `json:"number"`
	Text   string `json:"text,omitempty"`
	Path   string `json:"path"`
}

// ChapterFile 输出目录中的章节文件
type ChapterFile struct {
	Number  int       `json:"number"`
	Path    string    `json:"path"`
	ModTime time.Time `json:"mod_time"`
}

// Verdict 质量校验结论
type Verdict struct {
	Passed        bool     `json:"passed"`
	Feedback      string   `json:"feedback,omitempty"`
	StyleAdherent *bool    `json:"style_adherent,omitempty"`
	Continuity    *bool    `json:"continuity,omitempty"`
	Issues        []string `json:"issues,omitempty"`
}

// AttemptRecord 单次尝试的记录
type AttemptRecord struct {
	Attempt   int             `json:"attempt"`
	WordCount int             `json:"word_count"`
	Outcome   GenerationState `json:"outcome"`
	Reason    string          `json:"reason,omitempty"`
	Feedback  string          `json:"feedback,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// GeneratedChapter 一次生成的结果
type GeneratedChapter struct {
	Number     int             `json:"number"`
	Text       string          `json:"text"`
	WordCount  int             `json:"word_count"`
	Valid      bool            `json:"valid"`
	Feedback   string          `json:"feedback,omitempty"`
	State      GenerationState `json:"state"`
	Verdict    *Verdict        `json:"verdict,omitempty"`
	Attempts   []AttemptRecord `json:"attempts"`
	FilePath   string          `json:"file_path,omitempty"`
	ReportPath string          `json:"report_path,omitempty"`
}

// ValidityReport 写入校验报告文档的内容
type ValidityReport struct {
	ChapterNumber int
	State         GenerationState
	Valid         bool
	WordCount     int
	MinWordCount  int
	Feedback      string
	Verdict       *Verdict
	Attempts      []AttemptRecord
	GeneratedAt   time.Time
}

// WordCount 以空白分隔统计词数
func WordCount(text string) int {
	return len(strings.Fields(text))
}
