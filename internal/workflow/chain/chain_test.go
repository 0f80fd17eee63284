package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	wfmodel "z-novel-chapter-gen/internal/workflow/model"
	apperrors "z-novel-chapter-gen/pkg/errors"
)

type stubModel struct {
	reply    string
	err      error
	block    bool
	lastMsgs []*schema.Message
}

func (m *stubModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.lastMsgs = input
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.err != nil {
		return nil, m.err
	}
	return schema.AssistantMessage(m.reply, nil), nil
}

func (m *stubModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not supported")
}

type stubFactory struct {
	models map[string]model.BaseChatModel
}

func (f *stubFactory) Get(_ context.Context, name string) (model.BaseChatModel, error) {
	m, ok := f.models[name]
	if !ok {
		return nil, fmt.Errorf("provider %s not found", name)
	}
	return m, nil
}

func samplePromptInput() *wfmodel.ChapterPromptInput {
	return &wfmodel.ChapterPromptInput{
		Story: wfmodel.StoryInput{
			StyleGuide:   "Third person, past tense.",
			WritingStyle: "Sparse and cold.",
			Characters: []wfmodel.CharacterInput{
				{Name: "Ana", Description: "hero"},
				{Name: "Bo", Description: "villain"},
			},
			Plot:         "Ana confronts Bo",
			Instructions: "End on a cliffhanger.",
			PriorChapters: []wfmodel.PriorChapterInput{
				{Number: 1, Text: "Ana arrives at the keep."},
				{Number: 2, Text: "Bo sets a trap."},
			},
		},
		ChapterNumber:    3,
		MinimumWordCount: 500,
	}
}

func TestPromptBuilderIsDeterministic(t *testing.T) {
	b := NewChapterPromptBuilder(nil)
	ctx := context.Background()

	first, err := b.Build(ctx, samplePromptInput())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	second, err := NewChapterPromptBuilder(nil).Build(ctx, samplePromptInput())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if RenderMessages(first) != RenderMessages(second) {
		t.Fatal("identical inputs produced different prompts")
	}
	if len(first) != 2 || first[0].Role != schema.System || first[1].Role != schema.User {
		t.Fatalf("unexpected message layout: %+v", first)
	}
}

func TestPromptBuilderSectionOrder(t *testing.T) {
	msgs, err := NewChapterPromptBuilder(nil).Build(context.Background(), samplePromptInput())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	user := msgs[1].Content

	ordered := []string{
		"Third person, past tense.",
		"Sparse and cold.",
		"- Ana: hero",
		"- Bo: villain",
		"Ana confronts Bo",
		"End on a cliffhanger.",
		"Chapter 1:\nAna arrives at the keep.",
		"Chapter 2:\nBo sets a trap.",
		"Target chapter: Chapter 3",
		"Minimum word count: 500 words",
	}
	last := -1
	for _, s := range ordered {
		idx := strings.Index(user, s)
		if idx < 0 {
			t.Fatalf("prompt missing %q:\n%s", s, user)
		}
		if idx <= last {
			t.Fatalf("%q appears out of order", s)
		}
		last = idx
	}
	if strings.Contains(user, "previous attempt was rejected") {
		t.Fatal("first attempt must not carry feedback")
	}
}

func TestPromptBuilderAppendsFeedback(t *testing.T) {
	in := samplePromptInput()
	in.Feedback = "expand content, 120 words short of minimum"
	msgs, err := NewChapterPromptBuilder(nil).Build(context.Background(), in)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	user := msgs[1].Content
	fb := strings.Index(user, "expand content, 120 words short of minimum")
	if fb < 0 {
		t.Fatal("feedback missing from retry prompt")
	}
	if fb < strings.Index(user, "Minimum word count") {
		t.Fatal("feedback must follow the chapter request")
	}
}

func TestPromptBuilderRejectsBadRequest(t *testing.T) {
	in := samplePromptInput()
	in.ChapterNumber = 0
	if _, err := NewChapterPromptBuilder(nil).Build(context.Background(), in); err == nil {
		t.Fatal("expected error for chapter 0")
	}
}

func TestPromptBuilderHandlesBracesInUserText(t *testing.T) {
	in := samplePromptInput()
	in.Story.Plot = "Ana finds a note: {the key is under the stone}"
	msgs, err := NewChapterPromptBuilder(nil).Build(context.Background(), in)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(msgs[1].Content, "{the key is under the stone}") {
		t.Fatal("user text with braces was altered")
	}
}

func TestChapterChainInvoke(t *testing.T) {
	stub := &stubModel{reply: "  Ana drew her blade.  "}
	c := NewChapterChain(&stubFactory{models: map[string]model.BaseChatModel{"gen": stub}})

	out, err := c.Invoke(context.Background(), &wfmodel.ChapterGenerateInput{
		Messages: []*schema.Message{schema.UserMessage("write")},
		Params:   wfmodel.ModelParams{Provider: "gen"},
	})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if out.Content != "Ana drew her blade." {
		t.Fatalf("content: %q", out.Content)
	}
	if out.Meta.Provider != "gen" {
		t.Fatalf("meta provider: %q", out.Meta.Provider)
	}
}

func TestChapterChainErrors(t *testing.T) {
	msgs := []*schema.Message{schema.UserMessage("write")}
	cases := []struct {
		name  string
		model *stubModel
		code  apperrors.ErrorCode
	}{
		{"empty", &stubModel{reply: "   "}, apperrors.CodeEmptyResponse},
		{"quota", &stubModel{err: errors.New("status code: 429, rate limit reached")}, apperrors.CodeQuotaExceeded},
		{"transport", &stubModel{err: errors.New("connection reset by peer")}, apperrors.CodeLLMCallFailed},
		{"timeout", &stubModel{block: true}, apperrors.CodeLLMTimeout},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewChapterChain(&stubFactory{models: map[string]model.BaseChatModel{"gen": tc.model}})
			_, err := c.Invoke(context.Background(), &wfmodel.ChapterGenerateInput{
				Messages: msgs,
				Params:   wfmodel.ModelParams{Provider: "gen", Timeout: 20 * time.Millisecond},
			})
			if got := apperrors.CodeOf(err); got != tc.code {
				t.Fatalf("got code %s (%v), want %s", got, err, tc.code)
			}
			if !apperrors.IsGeneration(err) {
				t.Fatalf("expected generation error kind, got %v", err)
			}
		})
	}
}

func TestChapterChainCallerCancel(t *testing.T) {
	c := NewChapterChain(&stubFactory{models: map[string]model.BaseChatModel{"gen": &stubModel{block: true}}})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := c.Invoke(ctx, &wfmodel.ChapterGenerateInput{
		Messages: []*schema.Message{schema.UserMessage("write")},
		Params:   wfmodel.ModelParams{Provider: "gen", Timeout: time.Minute},
	})
	if !apperrors.IsCanceled(err) {
		t.Fatalf("expected canceled, got %v", err)
	}
}

func TestChapterCheckChainParsesVerdict(t *testing.T) {
	stub := &stubModel{reply: `{"valid": true, "feedback": "", "style_adherent": true, "continuity": true, "issues": []}`}
	c := NewChapterCheckChain(&stubFactory{models: map[string]model.BaseChatModel{"check": stub}}, nil)

	in := samplePromptInput()
	v, err := c.Invoke(context.Background(), &wfmodel.ChapterCheckInput{
		Story:            in.Story,
		ChapterNumber:    3,
		MinimumWordCount: 500,
		ChapterText:      "Ana faced Bo at dawn.",
		Params:           wfmodel.ModelParams{Provider: "check"},
	})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if !v.Valid || v.Continuity == nil || !*v.Continuity {
		t.Fatalf("unexpected verdict %+v", v)
	}
	if !strings.Contains(stub.lastMsgs[1].Content, "Ana faced Bo at dawn.") {
		t.Fatal("check prompt missing chapter text")
	}
}

func TestChapterCheckChainUnknownProvider(t *testing.T) {
	c := NewChapterCheckChain(&stubFactory{models: map[string]model.BaseChatModel{}}, nil)
	_, err := c.Invoke(context.Background(), &wfmodel.ChapterCheckInput{
		ChapterText: "text",
		Params:      wfmodel.ModelParams{Provider: "missing"},
	})
	if apperrors.CodeOf(err) != apperrors.CodeLLMProviderError {
		t.Fatalf("expected provider error, got %v", err)
	}
}
