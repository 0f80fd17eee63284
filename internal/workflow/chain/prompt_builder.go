package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	wfmodel "z-novel-chapter-gen/internal/workflow/model"
	wfnode "z-novel-chapter-gen/internal/workflow/node"
	workflowprompt "z-novel-chapter-gen/internal/workflow/prompt"
)

// ChapterPromptBuilder 组装章节生成提示词。
// 不做任何 I/O，相同输入得到逐字节相同的消息。
type ChapterPromptBuilder struct {
	registry *workflowprompt.Registry
}

func NewChapterPromptBuilder(registry *workflowprompt.Registry) *ChapterPromptBuilder {
	if registry == nil {
		registry = workflowprompt.NewRegistry()
	}
	return &ChapterPromptBuilder{registry: registry}
}

// Build 渲染 system + user 两条消息
func (b *ChapterPromptBuilder) Build(ctx context.Context, in *wfmodel.ChapterPromptInput) ([]*schema.Message, error) {
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if in.ChapterNumber < 1 {
		return nil, fmt.Errorf("chapter_number must be positive")
	}
	if in.MinimumWordCount < 0 {
		return nil, fmt.Errorf("minimum_word_count must not be negative")
	}

	tpl, err := b.registry.ChatTemplate(workflowprompt.PromptChapterGenV1)
	if err != nil {
		return nil, err
	}

	vars := storyVars(&in.Story)
	vars["chapter_number"] = in.ChapterNumber
	vars["minimum_word_count"] = in.MinimumWordCount
	vars["feedback"] = wfnode.BuildFeedbackBlock(in.Feedback)
	return tpl.Format(ctx, vars)
}

// storyVars 生成与检查两个模板共用的变量
func storyVars(s *wfmodel.StoryInput) map[string]any {
	return map[string]any{
		"style_guide":    wfnode.TextOrNone(s.StyleGuide),
		"writing_style":  wfnode.TextOrNone(s.WritingStyle),
		"characters":     wfnode.BuildCharactersBlock(s.Characters),
		"plot":           wfnode.TextOrNone(s.Plot),
		"instructions":   wfnode.TextOrNone(s.Instructions),
		"prior_chapters": wfnode.BuildPriorChaptersBlock(s.PriorChapters, s.HistoryWordBudget),
	}
}

// RenderMessages 将消息拼接为纯文本，用于日志与预览
func RenderMessages(msgs []*schema.Message) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m == nil {
			continue
		}
		parts = append(parts, "["+string(m.Role)+"]\n"+m.Content)
	}
	return strings.Join(parts, "\n\n")
}
