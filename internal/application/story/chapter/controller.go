package chapter

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"z-novel-chapter-gen/internal/config"
	"z-novel-chapter-gen/internal/domain/entity"
	wfmodel "z-novel-chapter-gen/internal/workflow/model"
	apperrors "z-novel-chapter-gen/pkg/errors"
	"z-novel-chapter-gen/pkg/logger"
	"z-novel-chapter-gen/pkg/metrics"
	"z-novel-chapter-gen/pkg/tracer"
)

// 尝试失败原因
const (
	ReasonTooShort        = "too_short"
	ReasonInvalid         = "invalid"
	ReasonGenerationError = "generation_error"
	ReasonCheckError      = "check_error"
)

const defaultInvalidFeedback = "the chapter did not pass the quality check; revise it for coherence, style adherence and continuity"

// ControllerConfig 重试控制参数
type ControllerConfig struct {
	MaxAttempts       int
	ValidationEnabled bool
	// PassOnCheckFailure 校验调用本身失败时视为通过
	PassOnCheckFailure bool
	Backoff            config.BackoffConfig
}

// ControllerConfigFrom 从应用配置读取重试参数
func ControllerConfigFrom(cfg *config.Config) ControllerConfig {
	return ControllerConfig{
		MaxAttempts:        cfg.Generation.MaxAttempts,
		ValidationEnabled:  cfg.Features.Validation.Enabled,
		PassOnCheckFailure: cfg.Features.Validation.DefaultPassOnFailure,
		Backoff:            cfg.Generation.RetryBackoff,
	}
}

// TransitionFunc 状态迁移回调
type TransitionFunc func(ctx context.Context, from, to entity.GenerationState, attempt int)

// RunInput 一次控制器运行的输入
type RunInput struct {
	Story   wfmodel.StoryInput
	Request entity.ChapterRequest
}

// RunResult 控制器终止时的结果
type RunResult struct {
	State     entity.GenerationState
	Text      string
	WordCount int
	Valid     bool
	Feedback  string
	Verdict   *entity.Verdict
	Attempts  []entity.AttemptRecord
}

// Controller 章节重试状态机。
// 每次运行持有独立的尝试计数，可被多个请求并发使用。
type Controller struct {
	builder   PromptBuilder
	generator TextGenerator
	checker   ValidityChecker
	cfg       ControllerConfig

	onTransition TransitionFunc
	sleep        func(ctx context.Context, d time.Duration) error
}

func NewController(builder PromptBuilder, generator TextGenerator, checker ValidityChecker, cfg ControllerConfig) *Controller {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Controller{
		builder:   builder,
		generator: generator,
		checker:   checker,
		cfg:       cfg,
		sleep:     sleepCtx,
	}
}

// OnTransition 注册状态迁移回调
func (c *Controller) OnTransition(fn TransitionFunc) {
	c.onTransition = fn
}

// run 单次运行的可变状态
type run struct {
	in       *RunInput
	state    entity.GenerationState
	attempt  int
	failures int
	feedback string
	msgs     []*schema.Message
	text     string
	words    int
	lastErr  error
	result   RunResult
}

// Run 驱动状态机直到 ACCEPTED、EXHAUSTED 或 ABORTED。
// EXHAUSTED 时返回最后一次生成的文本；若从未生成出文本，同时返回 ExhaustionError。
// ABORTED 时返回 Canceled 错误。
func (c *Controller) Run(ctx context.Context, in *RunInput) (*RunResult, error) {
	if in == nil {
		return nil, fmt.Errorf("run input is nil")
	}
	if err := in.Request.Validate(); err != nil {
		return nil, apperrors.Validation("%s", err.Error())
	}

	ctx, span := tracer.Start(ctx, "chapter.Controller.Run", trace.WithAttributes(
		attribute.Int("chapter.number", in.Request.ChapterNumber),
		attribute.Int("chapter.min_words", in.Request.MinimumWordCount),
		attribute.Int("chapter.max_attempts", c.cfg.MaxAttempts),
	))
	defer span.End()

	r := &run{in: in, state: entity.StateBuilding, attempt: 1}
	for !r.state.IsTerminal() {
		if ctx.Err() != nil {
			c.transition(ctx, r, entity.StateAborted)
			break
		}

		var (
			next entity.GenerationState
			err  error
		)
		switch r.state {
		case entity.StateBuilding:
			next, err = c.build(ctx, r)
		case entity.StateGenerating:
			next = c.generate(ctx, r)
		case entity.StateCheckingLength:
			next = c.checkLength(ctx, r)
		case entity.StateCheckingValidity:
			next = c.checkValidity(ctx, r)
		default:
			err = fmt.Errorf("unexpected state %s", r.state)
		}
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if next == entity.StateBuilding {
			next = c.retryOrExhaust(ctx, r)
		}
		c.transition(ctx, r, next)
	}

	res := r.result
	res.State = r.state
	span.SetAttributes(
		attribute.String("chapter.state", string(r.state)),
		attribute.Int("chapter.attempts", len(res.Attempts)),
	)

	switch r.state {
	case entity.StateAccepted:
		res.Text, res.WordCount, res.Valid = r.text, r.words, true
		return &res, nil
	case entity.StateExhausted:
		res.Text, res.WordCount, res.Valid = r.lastGeneratedText(), entity.WordCount(r.lastGeneratedText()), false
		res.Feedback = r.feedback
		if res.Text == "" {
			err := apperrors.ErrGenerationExhausted.WithError(r.lastErr)
			span.RecordError(err)
			return &res, err
		}
		return &res, nil
	default:
		return &res, apperrors.ErrCanceled.WithError(ctx.Err())
	}
}

func (c *Controller) build(ctx context.Context, r *run) (entity.GenerationState, error) {
	msgs, err := c.builder.Build(ctx, &wfmodel.ChapterPromptInput{
		Story:            r.in.Story,
		ChapterNumber:    r.in.Request.ChapterNumber,
		MinimumWordCount: r.in.Request.MinimumWordCount,
		Feedback:         r.feedback,
	})
	if err != nil {
		return "", fmt.Errorf("build chapter prompt: %w", err)
	}
	r.msgs = msgs
	return entity.StateGenerating, nil
}

func (c *Controller) generate(ctx context.Context, r *run) entity.GenerationState {
	out, err := c.generator.Generate(ctx, r.msgs)
	if err != nil {
		if apperrors.IsCanceled(err) || ctx.Err() != nil {
			return entity.StateAborted
		}
		// 传输失败不是内容反馈，保留原 feedback
		r.lastErr = err
		c.recordFailure(ctx, r, entity.StateGenerating, ReasonGenerationError, 0, "", err)
		return entity.StateBuilding
	}

	r.text = out.Content
	r.words = entity.WordCount(out.Content)
	r.result.Text = out.Content
	return entity.StateCheckingLength
}

func (c *Controller) checkLength(ctx context.Context, r *run) entity.GenerationState {
	minWords := r.in.Request.MinimumWordCount
	if r.words < minWords {
		r.feedback = shortfallFeedback(r.words, minWords)
		c.recordFailure(ctx, r, entity.StateCheckingLength, ReasonTooShort, r.words, r.feedback, nil)
		return entity.StateBuilding
	}
	if !c.cfg.ValidationEnabled || c.checker == nil {
		c.recordSuccess(r)
		return entity.StateAccepted
	}
	return entity.StateCheckingValidity
}

func (c *Controller) checkValidity(ctx context.Context, r *run) entity.GenerationState {
	verdict, err := c.checker.Check(ctx, &CheckRequest{
		Story:            r.in.Story,
		ChapterNumber:    r.in.Request.ChapterNumber,
		MinimumWordCount: r.in.Request.MinimumWordCount,
		Text:             r.text,
	})
	if err != nil {
		if apperrors.IsCanceled(err) || ctx.Err() != nil {
			return entity.StateAborted
		}
		metrics.ValidationTotal.WithLabelValues("error").Inc()
		if c.cfg.PassOnCheckFailure {
			logger.Warn(ctx, "validity check failed, accepting chapter by configuration",
				"attempt", r.attempt,
				"error", err.Error(),
			)
			c.recordSuccess(r)
			return entity.StateAccepted
		}
		r.lastErr = err
		c.recordFailure(ctx, r, entity.StateCheckingValidity, ReasonCheckError, r.words, "", err)
		return entity.StateBuilding
	}

	r.result.Verdict = verdict
	if verdict.Passed {
		metrics.ValidationTotal.WithLabelValues("passed").Inc()
		r.result.Feedback = verdict.Feedback
		c.recordSuccess(r)
		return entity.StateAccepted
	}

	metrics.ValidationTotal.WithLabelValues("failed").Inc()
	r.feedback = verdict.Feedback
	if r.feedback == "" {
		r.feedback = defaultInvalidFeedback
	}
	c.recordFailure(ctx, r, entity.StateCheckingValidity, ReasonInvalid, r.words, r.feedback, nil)
	return entity.StateBuilding
}

// retryOrExhaust 失败计数达到上限时进入 EXHAUSTED，否则等待退避后重建提示词
func (c *Controller) retryOrExhaust(ctx context.Context, r *run) entity.GenerationState {
	r.failures++
	if r.failures >= c.cfg.MaxAttempts {
		return entity.StateExhausted
	}
	if d := c.backoff(r.failures); d > 0 {
		if err := c.sleep(ctx, d); err != nil {
			return entity.StateAborted
		}
	}
	r.attempt++
	return entity.StateBuilding
}

func (c *Controller) backoff(failures int) time.Duration {
	b := c.cfg.Backoff
	if b.Initial <= 0 {
		return 0
	}
	mult := b.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := time.Duration(float64(b.Initial) * math.Pow(mult, float64(failures-1)))
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	return d
}

func (c *Controller) transition(ctx context.Context, r *run, to entity.GenerationState) {
	from := r.state
	r.state = to

	trace.SpanFromContext(ctx).AddEvent("chapter.transition", trace.WithAttributes(
		attribute.String("from", string(from)),
		attribute.String("to", string(to)),
		attribute.Int("attempt", r.attempt),
	))
	logger.Debug(ctx, "chapter state transition",
		"from", string(from),
		"to", string(to),
		"attempt", r.attempt,
	)
	if c.onTransition != nil {
		c.onTransition(ctx, from, to, r.attempt)
	}
}

func (c *Controller) recordFailure(ctx context.Context, r *run, outcome entity.GenerationState, reason string, words int, feedback string, err error) {
	rec := entity.AttemptRecord{
		Attempt:   r.attempt,
		WordCount: words,
		Outcome:   outcome,
		Reason:    reason,
		Feedback:  feedback,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	r.result.Attempts = append(r.result.Attempts, rec)
	metrics.ChapterAttemptFailures.WithLabelValues(reason).Inc()

	args := []any{
		"attempt", r.attempt,
		"max_attempts", c.cfg.MaxAttempts,
		"reason", reason,
		"word_count", words,
	}
	if err != nil {
		args = append(args, "error", err.Error())
	}
	logger.Info(ctx, "chapter attempt rejected", args...)
}

func (c *Controller) recordSuccess(r *run) {
	r.result.Attempts = append(r.result.Attempts, entity.AttemptRecord{
		Attempt:   r.attempt,
		WordCount: r.words,
		Outcome:   entity.StateAccepted,
	})
}

// lastGeneratedText 最近一次成功返回的文本（可能早于最后一次尝试）
func (r *run) lastGeneratedText() string {
	return r.result.Text
}

func shortfallFeedback(words, minWords int) string {
	return fmt.Sprintf("expand content, %d words short of minimum (the previous draft had %d words, at least %d are required)", minWords-words, words, minWords)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
