package model

import "github.com/cloudwego/eino/schema"

type CharacterInput struct {
	Name        string
	Description string
}

type PriorChapterInput struct {
	Number int
	Text   string
}

// StoryInput 提示词中共享的故事上下文
type StoryInput struct {
	StyleGuide    string
	WritingStyle  string
	Characters    []CharacterInput
	Plot          string
	Instructions  string
	PriorChapters []PriorChapterInput

	// HistoryWordBudget 前文词数上限，0 表示全部保留
	HistoryWordBudget int
}

// ChapterPromptInput 章节生成提示词输入
type ChapterPromptInput struct {
	Story            StoryInput
	ChapterNumber    int
	MinimumWordCount int
	// Feedback 上一次尝试的修正意见，首轮为空
	Feedback string
}

type ChapterGenerateInput struct {
	Messages []*schema.Message
	Params   ModelParams
}

type ChapterGenerateOutput struct {
	Content string
	Meta    LLMUsageMeta
}

type ChapterCheckInput struct {
	Story            StoryInput
	ChapterNumber    int
	MinimumWordCount int
	ChapterText      string
	Params           ModelParams
}

// ChapterVerdict 校验模型给出的结论
type ChapterVerdict struct {
	Valid         bool
	Feedback      string
	StyleAdherent *bool
	Continuity    *bool
	Issues        []string
	Raw           string
	Meta          LLMUsageMeta
}
