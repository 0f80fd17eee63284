package chain

import (
	"context"
	"fmt"
	"strings"

	llmctx "z-novel-chapter-gen/internal/domain/service"
	wfmodel "z-novel-chapter-gen/internal/workflow/model"
	wfnode "z-novel-chapter-gen/internal/workflow/node"
	workflowport "z-novel-chapter-gen/internal/workflow/port"
	workflowprompt "z-novel-chapter-gen/internal/workflow/prompt"
	apperrors "z-novel-chapter-gen/pkg/errors"
)

// ChapterCheckChain 让校验模型给出章节结论
type ChapterCheckChain struct {
	factory  workflowport.ChatModelFactory
	registry *workflowprompt.Registry
}

func NewChapterCheckChain(factory workflowport.ChatModelFactory, registry *workflowprompt.Registry) *ChapterCheckChain {
	if registry == nil {
		registry = workflowprompt.NewRegistry()
	}
	return &ChapterCheckChain{factory: factory, registry: registry}
}

func (c *ChapterCheckChain) Invoke(ctx context.Context, in *wfmodel.ChapterCheckInput) (*wfmodel.ChapterVerdict, error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if strings.TrimSpace(in.ChapterText) == "" {
		return nil, fmt.Errorf("chapter text is required")
	}

	tpl, err := c.registry.ChatTemplate(workflowprompt.PromptChapterCheckV1)
	if err != nil {
		return nil, err
	}
	vars := storyVars(&in.Story)
	vars["chapter_number"] = in.ChapterNumber
	vars["minimum_word_count"] = in.MinimumWordCount
	vars["chapter_text"] = strings.TrimSpace(in.ChapterText)

	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return nil, err
	}

	outMsg, err := generate(ctx, c.factory, llmctx.WorkflowChapterCheck, in.Params, msgs)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(outMsg.Content) == "" {
		return nil, apperrors.ErrEmptyResponse
	}

	verdict := wfnode.ParseVerdict(outMsg.Content)
	verdict.Meta = usageMeta(in.Params, outMsg)
	return verdict, nil
}
