package service

import (
	"context"
	"testing"
)

func TestWorkflowProviderRoundTrip(t *testing.T) {
	ctx := WithWorkflowProvider(context.Background(), WorkflowChapterCheck, " gemini_pro ")
	if got := WorkflowFromContext(ctx); got != WorkflowChapterCheck {
		t.Fatalf("workflow: got %q", got)
	}
	if got := ProviderFromContext(ctx); got != "gemini_pro" {
		t.Fatalf("provider: got %q", got)
	}
}

func TestMissingValuesAreUnknown(t *testing.T) {
	ctx := WithWorkflow(context.Background(), "   ")
	if got := WorkflowFromContext(ctx); got != "unknown" {
		t.Fatalf("expected unknown workflow, got %q", got)
	}
	if got := ProviderFromContext(ctx); got != "unknown" {
		t.Fatalf("expected unknown provider, got %q", got)
	}
}
