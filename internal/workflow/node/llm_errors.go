package node

import (
	"context"
	"errors"
	"strings"

	apperrors "z-novel-chapter-gen/pkg/errors"
)

// ClassifyLLMError 将模型调用错误归类为应用错误码。
// parent 为调用方的 ctx，用于区分调用方取消与单次调用超时。
func ClassifyLLMError(parent context.Context, err error) error {
	if err == nil {
		return nil
	}
	if apperrors.IsAppError(err) {
		return err
	}
	if parent != nil && parent.Err() != nil {
		return apperrors.ErrCanceled.WithError(err)
	}
	if errors.Is(err, context.Canceled) {
		return apperrors.ErrCanceled.WithError(err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.ErrLLMTimeout.WithError(err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case isQuotaMessage(msg):
		return apperrors.ErrQuotaExceeded.WithError(err)
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return apperrors.ErrLLMTimeout.WithError(err)
	default:
		return apperrors.ErrLLMCallFailed.WithError(err)
	}
}

func isQuotaMessage(msg string) bool {
	for _, marker := range []string{"429", "rate limit", "ratelimit", "quota", "resource_exhausted", "too many requests"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
