package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"
)

// pacedChatModel 在每次调用前等待令牌
type pacedChatModel struct {
	inner   model.BaseChatModel
	limiter *rate.Limiter
}

// withPacing 按每分钟请求数包装模型，rpm <= 0 时原样返回
func withPacing(inner model.BaseChatModel, rpm int) model.BaseChatModel {
	if rpm <= 0 || inner == nil {
		return inner
	}
	return &pacedChatModel{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
	}
}

func (m *pacedChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, waitError(ctx, err)
	}
	return m.inner.Generate(ctx, input, opts...)
}

func (m *pacedChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, waitError(ctx, err)
	}
	return m.inner.Stream(ctx, input, opts...)
}

// waitError 等待被取消时返回 ctx 的错误，便于上层识别取消与超时。
// 令牌等待会超过截止时间时 limiter 提前返回，此时 ctx 尚未过期，同样按超时处理。
func waitError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if _, ok := ctx.Deadline(); ok && strings.Contains(err.Error(), "exceed context deadline") {
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return err
}
