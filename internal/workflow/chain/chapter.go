package chain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	llmctx "z-novel-chapter-gen/internal/domain/service"
	wfmodel "z-novel-chapter-gen/internal/workflow/model"
	wfnode "z-novel-chapter-gen/internal/workflow/node"
	workflowport "z-novel-chapter-gen/internal/workflow/port"
	apperrors "z-novel-chapter-gen/pkg/errors"
)

// ChapterChain 发起一次章节生成调用，不做重试
type ChapterChain struct {
	factory workflowport.ChatModelFactory
}

func NewChapterChain(factory workflowport.ChatModelFactory) *ChapterChain {
	return &ChapterChain{factory: factory}
}

func (c *ChapterChain) Invoke(ctx context.Context, in *wfmodel.ChapterGenerateInput) (*wfmodel.ChapterGenerateOutput, error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if len(in.Messages) == 0 {
		return nil, fmt.Errorf("messages are required")
	}

	outMsg, err := generate(ctx, c.factory, llmctx.WorkflowChapterGenerate, in.Params, in.Messages)
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(outMsg.Content)
	if content == "" {
		return nil, apperrors.ErrEmptyResponse
	}
	return &wfmodel.ChapterGenerateOutput{
		Content: content,
		Meta:    usageMeta(in.Params, outMsg),
	}, nil
}

// generate 统一处理 provider 解析、单次超时与错误归类
func generate(ctx context.Context, factory workflowport.ChatModelFactory, workflow string, params wfmodel.ModelParams, msgs []*schema.Message) (*schema.Message, error) {
	provider := strings.TrimSpace(params.Provider)
	ctx = llmctx.WithWorkflowProvider(ctx, workflow, provider)

	chatModel, err := factory.Get(ctx, provider)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeLLMProviderError, "llm provider unavailable")
	}

	callCtx := ctx
	if params.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, params.Timeout)
		defer cancel()
	}

	outMsg, err := chatModel.Generate(callCtx, msgs, buildModelOptions(params)...)
	if err != nil {
		return nil, wfnode.ClassifyLLMError(ctx, err)
	}
	if outMsg == nil {
		return nil, apperrors.ErrEmptyResponse
	}
	return outMsg, nil
}

func buildModelOptions(p wfmodel.ModelParams) []model.Option {
	opts := make([]model.Option, 0, 3)
	if p.Temperature != nil {
		opts = append(opts, model.WithTemperature(*p.Temperature))
	}
	if p.MaxTokens != nil {
		opts = append(opts, model.WithMaxTokens(*p.MaxTokens))
	}
	if strings.TrimSpace(p.Model) != "" {
		opts = append(opts, model.WithModel(strings.TrimSpace(p.Model)))
	}
	return opts
}

func usageMeta(p wfmodel.ModelParams, msg *schema.Message) wfmodel.LLMUsageMeta {
	meta := wfmodel.LLMUsageMeta{
		Provider:    strings.TrimSpace(p.Provider),
		Model:       strings.TrimSpace(p.Model),
		GeneratedAt: time.Now(),
	}
	if msg != nil && msg.ResponseMeta != nil && msg.ResponseMeta.Usage != nil {
		meta.PromptTokens = msg.ResponseMeta.Usage.PromptTokens
		meta.CompletionTokens = msg.ResponseMeta.Usage.CompletionTokens
	}
	return meta
}
