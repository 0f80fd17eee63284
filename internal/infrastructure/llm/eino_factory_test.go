package llm

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"z-novel-chapter-gen/internal/config"
)

type countingModel struct {
	calls atomic.Int32
}

func (m *countingModel) Generate(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.calls.Add(1)
	return schema.AssistantMessage("ok", nil), nil
}

func (m *countingModel) Stream(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not supported")
}

func newTestFactory(providers map[string]config.ProviderConfig, built *atomic.Int32) *EinoFactory {
	cfg := &config.Config{LLM: config.LLMConfig{GenerationProvider: "gen", Providers: providers}}
	f := NewEinoFactory(cfg)
	f.newModel = func(_ context.Context, _ config.ProviderConfig) (model.BaseChatModel, error) {
		built.Add(1)
		return &countingModel{}, nil
	}
	return f
}

func TestEinoFactoryCachesModels(t *testing.T) {
	var built atomic.Int32
	f := newTestFactory(map[string]config.ProviderConfig{"gen": {Model: "m"}, "check": {Model: "c"}}, &built)
	ctx := context.Background()

	a, err := f.Default(ctx)
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	b, err := f.Get(ctx, "gen")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if a != b {
		t.Fatal("expected cached model instance")
	}
	if _, err := f.Get(ctx, "check"); err != nil {
		t.Fatalf("get check: %v", err)
	}
	if built.Load() != 2 {
		t.Fatalf("expected 2 models built, got %d", built.Load())
	}
}

func TestEinoFactoryUnknownProvider(t *testing.T) {
	var built atomic.Int32
	f := newTestFactory(map[string]config.ProviderConfig{"gen": {}}, &built)
	if _, err := f.Get(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestPacingWrapsOnlyWhenConfigured(t *testing.T) {
	inner := &countingModel{}
	if got := withPacing(inner, 0); got != model.BaseChatModel(inner) {
		t.Fatal("expected unwrapped model when rpm is 0")
	}
	if _, ok := withPacing(inner, 60).(*pacedChatModel); !ok {
		t.Fatal("expected paced model when rpm > 0")
	}
}

func TestPacingHonoursCancellation(t *testing.T) {
	inner := &countingModel{}
	paced := withPacing(inner, 1)
	ctx := context.Background()

	if _, err := paced.Generate(ctx, nil); err != nil {
		t.Fatalf("first call: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err := paced.Generate(ctx, nil)
	if err == nil {
		t.Fatal("expected second call to be blocked by the limiter")
	}
	if inner.calls.Load() != 1 {
		t.Fatalf("expected 1 inner call, got %d", inner.calls.Load())
	}
}

func TestPacingDeadlineOverrunIsTimeout(t *testing.T) {
	inner := &countingModel{}
	paced := withPacing(inner, 1)
	if _, err := paced.Generate(context.Background(), nil); err != nil {
		t.Fatalf("first call: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := paced.Generate(ctx, nil)
	if ctx.Err() != nil {
		t.Fatal("limiter should reject before the deadline passes")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
