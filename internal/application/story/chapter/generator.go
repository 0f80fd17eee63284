// Package chapter 编排章节生成：提示词、生成、校验、重试与落盘
package chapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"z-novel-chapter-gen/internal/config"
	"z-novel-chapter-gen/internal/domain/entity"
	workflowchain "z-novel-chapter-gen/internal/workflow/chain"
	wfmodel "z-novel-chapter-gen/internal/workflow/model"
	workflowport "z-novel-chapter-gen/internal/workflow/port"
	workflowprompt "z-novel-chapter-gen/internal/workflow/prompt"
)

// PromptBuilder 组装提示词（纯函数）
type PromptBuilder interface {
	Build(ctx context.Context, in *wfmodel.ChapterPromptInput) ([]*schema.Message, error)
}

// TextGenerator 一次生成调用
type TextGenerator interface {
	Generate(ctx context.Context, msgs []*schema.Message) (*wfmodel.ChapterGenerateOutput, error)
}

// CheckRequest 校验请求
type CheckRequest struct {
	Story            wfmodel.StoryInput
	ChapterNumber    int
	MinimumWordCount int
	Text             string
}

// ValidityChecker 章节质量校验
type ValidityChecker interface {
	Check(ctx context.Context, req *CheckRequest) (*entity.Verdict, error)
}

// Generator 基于 ChapterChain 的生成客户端
type Generator struct {
	chain  *workflowchain.ChapterChain
	params wfmodel.ModelParams
}

func NewGenerator(factory workflowport.ChatModelFactory, cfg *config.Config) *Generator {
	return &Generator{
		chain:  workflowchain.NewChapterChain(factory),
		params: modelParams(cfg, cfg.LLM.GenerationProvider),
	}
}

func (g *Generator) Generate(ctx context.Context, msgs []*schema.Message) (*wfmodel.ChapterGenerateOutput, error) {
	if g == nil || g.chain == nil {
		return nil, fmt.Errorf("chapter workflow not configured")
	}
	return g.chain.Invoke(ctx, &wfmodel.ChapterGenerateInput{Messages: msgs, Params: g.params})
}

// Checker 基于 ChapterCheckChain 的校验客户端
type Checker struct {
	chain  *workflowchain.ChapterCheckChain
	params wfmodel.ModelParams
}

func NewChecker(factory workflowport.ChatModelFactory, registry *workflowprompt.Registry, cfg *config.Config) *Checker {
	return &Checker{
		chain:  workflowchain.NewChapterCheckChain(factory, registry),
		params: modelParams(cfg, cfg.LLM.ResolvedCheckProvider()),
	}
}

func (c *Checker) Check(ctx context.Context, req *CheckRequest) (*entity.Verdict, error) {
	if c == nil || c.chain == nil {
		return nil, fmt.Errorf("check workflow not configured")
	}
	if req == nil {
		return nil, fmt.Errorf("check request is nil")
	}

	v, err := c.chain.Invoke(ctx, &wfmodel.ChapterCheckInput{
		Story:            req.Story,
		ChapterNumber:    req.ChapterNumber,
		MinimumWordCount: req.MinimumWordCount,
		ChapterText:      req.Text,
		Params:           c.params,
	})
	if err != nil {
		return nil, err
	}
	return &entity.Verdict{
		Passed:        v.Valid,
		Feedback:      strings.TrimSpace(v.Feedback),
		StyleAdherent: v.StyleAdherent,
		Continuity:    v.Continuity,
		Issues:        v.Issues,
	}, nil
}

// modelParams 从 provider 配置推导调用参数；温度与输出上限已在模型构造时设置
func modelParams(cfg *config.Config, provider string) wfmodel.ModelParams {
	p := wfmodel.ModelParams{
		Provider: provider,
		Timeout:  cfg.LLM.CallTimeout,
	}
	if pc, ok := cfg.LLM.Provider(provider); ok {
		p.Model = pc.Model
		if pc.Timeout > 0 && (p.Timeout <= 0 || pc.Timeout < p.Timeout) {
			p.Timeout = pc.Timeout
		}
	}
	return p
}

// StoryInputFrom 将会话上下文与前文章节转换为提示词输入
func StoryInputFrom(story entity.StoryContext, prior []entity.PriorChapter, historyBudget int) wfmodel.StoryInput {
	in := wfmodel.StoryInput{
		StyleGuide:        story.StyleGuide,
		WritingStyle:      story.WritingStyle,
		Plot:              story.Plot,
		Instructions:      story.Instructions,
		HistoryWordBudget: historyBudget,
		Characters:        make([]wfmodel.CharacterInput, 0, len(story.Characters)),
		PriorChapters:     make([]wfmodel.PriorChapterInput, 0, len(prior)),
	}
	for _, c := range story.Characters {
		in.Characters = append(in.Characters, wfmodel.CharacterInput{Name: c.Name, Description: c.Description})
	}
	for _, p := range prior {
		in.PriorChapters = append(in.PriorChapters, wfmodel.PriorChapterInput{Number: p.Number, Text: p.Text})
	}
	return in
}
