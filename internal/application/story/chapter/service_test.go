package chapter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	storyctx "z-novel-chapter-gen/internal/application/story/context"
	"z-novel-chapter-gen/internal/config"
	"z-novel-chapter-gen/internal/domain/entity"
	"z-novel-chapter-gen/internal/infrastructure/persistence/docx"
	workflowchain "z-novel-chapter-gen/internal/workflow/chain"
	workflowprompt "z-novel-chapter-gen/internal/workflow/prompt"
	apperrors "z-novel-chapter-gen/pkg/errors"
)

// fakeChatModel 按脚本返回固定文本，记录收到的提示词
type fakeChatModel struct {
	mu      sync.Mutex
	reply   func(call int) string
	prompts []string
}

func (m *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, workflowchain.RenderMessages(input))
	return schema.AssistantMessage(m.reply(len(m.prompts)), nil), nil
}

func (m *fakeChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not supported")
}

func (m *fakeChatModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

type fakeFactory map[string]model.BaseChatModel

func (f fakeFactory) Get(_ context.Context, name string) (model.BaseChatModel, error) {
	if m, ok := f[name]; ok {
		return m, nil
	}
	return nil, errors.New("unknown provider " + name)
}

func testConfig() *config.Config {
	return &config.Config{
		LLM: config.LLMConfig{
			GenerationProvider: "gen",
			CheckProvider:      "check",
			Providers: map[string]config.ProviderConfig{
				"gen":   {Model: "gen-model"},
				"check": {Model: "check-model"},
			},
		},
		Generation: config.GenerationConfig{MaxAttempts: 3},
		Features: config.FeaturesConfig{
			Validation: config.ValidationFeature{Enabled: true},
			Report:     config.ReportFeature{Enabled: true},
		},
	}
}

func newTestService(t *testing.T, gen, check *fakeChatModel) *Service {
	t.Helper()
	cfg := testConfig()
	factory := fakeFactory{"gen": gen, "check": check}
	registry := workflowprompt.NewRegistry()
	controller := NewController(
		workflowchain.NewChapterPromptBuilder(registry),
		NewGenerator(factory, cfg),
		NewChecker(factory, registry, cfg),
		ControllerConfigFrom(cfg),
	)
	return NewService(docx.NewChapterRepository(), controller, cfg)
}

func anaBoStore(t *testing.T) *storyctx.Store {
	t.Helper()
	s := storyctx.NewStore("session-1", "")
	if err := s.AddCharacter("Ana", "hero"); err != nil {
		t.Fatalf("add Ana: %v", err)
	}
	if err := s.AddCharacter("Bo", "villain"); err != nil {
		t.Fatalf("add Bo: %v", err)
	}
	s.SetPlot("Ana confronts Bo")
	if err := s.SetOutputPath(t.TempDir()); err != nil {
		t.Fatalf("set output path: %v", err)
	}
	return s
}

func TestGenerateChapterAcceptedScenario(t *testing.T) {
	text := words(600)
	gen := &fakeChatModel{reply: func(int) string { return text }}
	check := &fakeChatModel{reply: func(int) string { return `{"valid": true, "feedback": "", "style_adherent": true, "continuity": true, "issues": []}` }}
	svc := newTestService(t, gen, check)
	store := anaBoStore(t)

	out, err := svc.GenerateChapter(context.Background(), store, entity.ChapterRequest{ChapterNumber: 1, MinimumWordCount: 500})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out.State != entity.StateAccepted || !out.Valid {
		t.Fatalf("expected ACCEPTED, got %s valid=%v", out.State, out.Valid)
	}
	if out.Text != text || out.WordCount != 600 {
		t.Fatalf("unexpected text (%d words)", out.WordCount)
	}
	if filepath.Base(out.FilePath) != "Chapter 001.docx" {
		t.Fatalf("unexpected file %q", out.FilePath)
	}
	if _, err := os.Stat(out.FilePath); err != nil {
		t.Fatalf("chapter file missing: %v", err)
	}
	if _, err := os.Stat(out.ReportPath); err != nil {
		t.Fatalf("report file missing: %v", err)
	}

	prompt := gen.prompts[0]
	for _, want := range []string{"- Ana: hero", "- Bo: villain", "Ana confronts Bo", "Chapter 1", "500 words"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("generation prompt missing %q", want)
		}
	}
}

func TestGenerateChapterShortTextScenario(t *testing.T) {
	gen := &fakeChatModel{reply: func(int) string { return words(100) }}
	check := &fakeChatModel{reply: func(int) string { return `{"valid": true}` }}
	svc := newTestService(t, gen, check)
	store := anaBoStore(t)

	out, err := svc.GenerateChapter(context.Background(), store, entity.ChapterRequest{ChapterNumber: 1, MinimumWordCount: 500})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out.State != entity.StateExhausted || out.Valid {
		t.Fatalf("expected EXHAUSTED and not valid, got %s valid=%v", out.State, out.Valid)
	}
	if gen.callCount() != 3 {
		t.Fatalf("expected exactly 3 generation calls, got %d", gen.callCount())
	}
	if check.callCount() != 0 {
		t.Fatalf("checker must not run on short text")
	}
	for i := 0; i < 2; i++ {
		if !strings.Contains(out.Attempts[i].Feedback, "words short of minimum") {
			t.Fatalf("attempt %d lacks shortfall feedback: %q", i+1, out.Attempts[i].Feedback)
		}
	}
	for _, p := range gen.prompts[1:] {
		if !strings.Contains(p, "400 words short of minimum") {
			t.Fatal("retry prompt missing shortfall feedback")
		}
	}

	// 未通过校验的章节仍然落盘，报告中标注
	repo := docx.NewChapterRepository()
	report, err := repo.Load(context.Background(), out.ReportPath)
	if err != nil {
		t.Fatalf("load report: %v", err)
	}
	if !strings.Contains(report, "Valid: No") || !strings.Contains(report, "State: EXHAUSTED") {
		t.Fatalf("report lacks annotation:\n%s", report)
	}
	saved, err := repo.Load(context.Background(), out.FilePath)
	if err != nil {
		t.Fatalf("load chapter: %v", err)
	}
	if saved != words(100) {
		t.Fatal("saved chapter text differs from the last attempt")
	}
}

func TestGeneratedChapterFeedsNextPrompt(t *testing.T) {
	gen := &fakeChatModel{reply: func(call int) string {
		if call == 1 {
			return "Ana crossed the frozen river at dawn."
		}
		return "Bo waited in the tower."
	}}
	check := &fakeChatModel{reply: func(int) string { return "Valid: Yes\nFeedback: fine" }}
	svc := newTestService(t, gen, check)
	store := anaBoStore(t)
	ctx := context.Background()

	if _, err := svc.GenerateChapter(ctx, store, entity.ChapterRequest{ChapterNumber: 1}); err != nil {
		t.Fatalf("chapter 1: %v", err)
	}
	if _, err := svc.GenerateChapter(ctx, store, entity.ChapterRequest{ChapterNumber: 2}); err != nil {
		t.Fatalf("chapter 2: %v", err)
	}
	if !strings.Contains(gen.prompts[1], "Chapter 1:\nAna crossed the frozen river at dawn.") {
		t.Fatalf("chapter 2 prompt lacks chapter 1 text:\n%s", gen.prompts[1])
	}

	files, err := svc.ListPriorChapters(ctx, store.OutputPath())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 2 || files[0].Number != 1 || files[1].Number != 2 {
		t.Fatalf("unexpected chapter listing %+v", files)
	}

	ch, err := svc.LoadChapter(ctx, store.OutputPath(), 2)
	if err != nil || ch.Text != "Bo waited in the tower." {
		t.Fatalf("load chapter 2: %v %+v", err, ch)
	}
	if _, err := svc.LoadChapter(ctx, store.OutputPath(), 9); !apperrors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGenerateChapterRequiresOutputPath(t *testing.T) {
	svc := newTestService(t, &fakeChatModel{reply: func(int) string { return "x" }}, &fakeChatModel{reply: func(int) string { return "x" }})
	_, err := svc.GenerateChapter(context.Background(), storyctx.NewStore("s", ""), entity.ChapterRequest{ChapterNumber: 1})
	if !apperrors.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGenerateChapterCanceledWritesNothing(t *testing.T) {
	gen := &fakeChatModel{reply: func(int) string { return words(10) }}
	svc := newTestService(t, gen, &fakeChatModel{reply: func(int) string { return `{"valid": true}` }})
	store := anaBoStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.GenerateChapter(ctx, store, entity.ChapterRequest{ChapterNumber: 1})
	if !apperrors.IsCanceled(err) {
		t.Fatalf("expected canceled, got %v", err)
	}
	entries, _ := os.ReadDir(store.OutputPath())
	if len(entries) != 0 {
		t.Fatalf("canceled generation wrote %d files", len(entries))
	}
}

// gatedChatModel 阻塞到 release 关闭或上下文取消
type gatedChatModel struct {
	started chan struct{}
	release chan struct{}
	aborted chan struct{}
	once    sync.Once
	abort   sync.Once
	text    string
}

func newGatedChatModel(text string) *gatedChatModel {
	return &gatedChatModel{
		started: make(chan struct{}),
		release: make(chan struct{}),
		aborted: make(chan struct{}),
		text:    text,
	}
}

func (m *gatedChatModel) Generate(ctx context.Context, _ []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.once.Do(func() { close(m.started) })
	select {
	case <-m.release:
		return schema.AssistantMessage(m.text, nil), nil
	case <-ctx.Done():
		m.abort.Do(func() { close(m.aborted) })
		return nil, ctx.Err()
	}
}

func (m *gatedChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not supported")
}

func newGatedService(t *testing.T, gen *gatedChatModel) *Service {
	t.Helper()
	cfg := testConfig()
	check := &fakeChatModel{reply: func(int) string { return `{"valid": true, "feedback": ""}` }}
	factory := fakeFactory{"gen": gen, "check": check}
	registry := workflowprompt.NewRegistry()
	controller := NewController(
		workflowchain.NewChapterPromptBuilder(registry),
		NewGenerator(factory, cfg),
		NewChecker(factory, registry, cfg),
		ControllerConfigFrom(cfg),
	)
	return NewService(docx.NewChapterRepository(), controller, cfg)
}

func waitForWaiters(t *testing.T, svc *Service, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for svc.waiting() != n {
		if time.Now().After(deadline) {
			t.Fatalf("waiters = %d, want %d", svc.waiting(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type generateResult struct {
	out *entity.GeneratedChapter
	err error
}

func TestCoalescedCallerSurvivesOtherCallerCancel(t *testing.T) {
	gen := newGatedChatModel(words(600))
	svc := newGatedService(t, gen)
	store := anaBoStore(t)
	req := entity.ChapterRequest{ChapterNumber: 1, MinimumWordCount: 500}

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()
	resA := make(chan generateResult, 1)
	go func() {
		out, err := svc.GenerateChapter(ctxA, store, req)
		resA <- generateResult{out, err}
	}()
	<-gen.started

	resB := make(chan generateResult, 1)
	go func() {
		out, err := svc.GenerateChapter(context.Background(), store, req)
		resB <- generateResult{out, err}
	}()
	waitForWaiters(t, svc, 2)

	cancelA()
	if r := <-resA; !apperrors.IsCanceled(r.err) {
		t.Fatalf("caller A: expected canceled, got %v", r.err)
	}
	waitForWaiters(t, svc, 1)

	close(gen.release)
	r := <-resB
	if r.err != nil {
		t.Fatalf("caller B: %v", r.err)
	}
	if r.out.State != entity.StateAccepted {
		t.Fatalf("caller B: state = %s", r.out.State)
	}
	if _, err := os.Stat(r.out.FilePath); err != nil {
		t.Fatalf("chapter file missing: %v", err)
	}
}

func TestSharedGenerationAbortsWhenAllCallersLeave(t *testing.T) {
	gen := newGatedChatModel(words(600))
	svc := newGatedService(t, gen)
	store := anaBoStore(t)
	req := entity.ChapterRequest{ChapterNumber: 1}

	ctxA, cancelA := context.WithCancel(context.Background())
	ctxB, cancelB := context.WithCancel(context.Background())
	resA := make(chan error, 1)
	resB := make(chan error, 1)
	go func() {
		_, err := svc.GenerateChapter(ctxA, store, req)
		resA <- err
	}()
	<-gen.started
	go func() {
		_, err := svc.GenerateChapter(ctxB, store, req)
		resB <- err
	}()
	waitForWaiters(t, svc, 2)

	cancelA()
	cancelB()
	if err := <-resA; !apperrors.IsCanceled(err) {
		t.Fatalf("caller A: %v", err)
	}
	if err := <-resB; !apperrors.IsCanceled(err) {
		t.Fatalf("caller B: %v", err)
	}

	select {
	case <-gen.aborted:
	case <-time.After(5 * time.Second):
		t.Fatal("shared generation was not canceled")
	}
	waitForWaiters(t, svc, 0)
}
