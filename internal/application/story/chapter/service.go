package chapter

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"z-novel-chapter-gen/internal/config"
	"z-novel-chapter-gen/internal/domain/entity"
	"z-novel-chapter-gen/internal/domain/repository"
	apperrors "z-novel-chapter-gen/pkg/errors"
	"z-novel-chapter-gen/pkg/logger"
	"z-novel-chapter-gen/pkg/metrics"
	"z-novel-chapter-gen/pkg/tracer"
)

// StoryReader 读取会话上下文快照
type StoryReader interface {
	ID() string
	Snapshot() entity.StoryContext
}

// Service 章节生成入口
type Service struct {
	repo       repository.ChapterRepository
	controller *Controller

	historyWordBudget int
	reportEnabled     bool

	group   singleflight.Group
	mu      sync.Mutex
	flights map[string]*flight
	seq     uint64
}

// flight 一次合并生成的共享上下文，所有等待者离开后才取消
type flight struct {
	key     string
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

func NewService(repo repository.ChapterRepository, controller *Controller, cfg *config.Config) *Service {
	return &Service{
		repo:              repo,
		controller:        controller,
		historyWordBudget: cfg.LLM.HistoryWordBudget,
		reportEnabled:     cfg.Features.Report.Enabled,
		flights:           make(map[string]*flight),
	}
}

// GenerateChapter 生成并保存一个章节。
// 同一会话对同一输出文件的并发请求合并为一次生成，
// 单个调用方取消只影响自身，全部离开后生成才中止。
func (s *Service) GenerateChapter(ctx context.Context, story StoryReader, req entity.ChapterRequest) (*entity.GeneratedChapter, error) {
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation("%s", err.Error())
	}
	if story == nil {
		return nil, apperrors.Validation("story context is required")
	}

	snap := story.Snapshot()
	dir := strings.TrimSpace(snap.OutputPath)
	if dir == "" {
		return nil, apperrors.Validation("output path is not set")
	}

	if err := ctx.Err(); err != nil {
		return nil, apperrors.ErrCanceled.WithError(err)
	}

	key := fmt.Sprintf("%s|%s|%d|%d", story.ID(), filepath.Clean(dir), req.ChapterNumber, req.MinimumWordCount)
	f := s.join(ctx, key)
	defer s.leave(key, f)

	ch := s.group.DoChan(f.key, func() (any, error) {
		return s.generate(f.ctx, snap, req)
	})

	select {
	case <-ctx.Done():
		return nil, apperrors.ErrCanceled.WithError(ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		chapter := *res.Val.(*entity.GeneratedChapter)
		return &chapter, nil
	}
}

// join 加入同 key 的进行中生成，没有则新建一个脱离调用方取消的上下文
func (s *Service) join(ctx context.Context, key string) *flight {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f, ok := s.flights[key]; ok {
		f.waiters++
		return f
	}
	s.seq++
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	f := &flight{
		key:     fmt.Sprintf("%s#%d", key, s.seq),
		ctx:     runCtx,
		cancel:  cancel,
		waiters: 1,
	}
	s.flights[key] = f
	return f
}

// leave 最后一个等待者离开时取消共享生成
func (s *Service) leave(key string, f *flight) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if s.flights[key] == f {
		delete(s.flights, key)
	}
}

// waiting 返回所有进行中生成的等待者总数
func (s *Service) waiting() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, f := range s.flights {
		n += f.waiters
	}
	return n
}

func (s *Service) generate(ctx context.Context, snap entity.StoryContext, req entity.ChapterRequest) (*entity.GeneratedChapter, error) {
	ctx = logger.WithContext(ctx, logger.ChapterKey, req.ChapterNumber)
	ctx, span := tracer.Start(ctx, "chapter.Service.GenerateChapter")
	defer span.End()
	span.SetAttributes(attribute.Int("chapter.number", req.ChapterNumber))

	start := time.Now()
	dir := snap.OutputPath

	prior, err := s.repo.Prior(ctx, dir, req.ChapterNumber)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}
	logger.Info(ctx, "chapter generation started",
		"min_words", req.MinimumWordCount,
		"prior_chapters", len(prior),
		"output_path", dir,
	)

	res, runErr := s.controller.Run(ctx, &RunInput{
		Story:   StoryInputFrom(snap, prior, s.historyWordBudget),
		Request: req,
	})

	state := entity.StateAborted
	if res != nil {
		state = res.State
	}
	metrics.ChapterGenerationTotal.WithLabelValues(string(state)).Inc()
	metrics.ChapterGenerationDuration.WithLabelValues(string(state)).Observe(time.Since(start).Seconds())
	if res != nil {
		metrics.ChapterAttempts.Observe(float64(len(res.Attempts)))
	}

	if runErr != nil {
		tracer.RecordError(span, runErr)
		if apperrors.IsCanceled(runErr) {
			logger.Warn(ctx, "chapter generation aborted, nothing written")
		} else {
			logger.Error(ctx, "chapter generation failed", runErr)
		}
		return nil, runErr
	}

	out := &entity.GeneratedChapter{
		Number:    req.ChapterNumber,
		Text:      res.Text,
		WordCount: res.WordCount,
		Valid:     res.Valid,
		Feedback:  res.Feedback,
		State:     res.State,
		Verdict:   res.Verdict,
		Attempts:  res.Attempts,
	}

	out.FilePath, err = s.repo.Save(ctx, dir, req.ChapterNumber, res.Text)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}
	metrics.ChapterWordCount.Observe(float64(res.WordCount))

	if s.reportEnabled {
		out.ReportPath, err = s.repo.SaveReport(ctx, dir, &entity.ValidityReport{
			ChapterNumber: req.ChapterNumber,
			State:         res.State,
			Valid:         res.Valid,
			WordCount:     res.WordCount,
			MinWordCount:  req.MinimumWordCount,
			Feedback:      res.Feedback,
			Verdict:       res.Verdict,
			Attempts:      res.Attempts,
			GeneratedAt:   time.Now(),
		})
		if err != nil {
			// 报告写入失败不影响章节本身
			logger.Error(ctx, "failed to write validity report", err)
		}
	}

	if res.State == entity.StateExhausted {
		logger.Warn(ctx, "chapter saved without passing validation",
			"attempts", len(res.Attempts),
			"word_count", res.WordCount,
			"file", out.FilePath,
			"feedback", res.Feedback,
		)
	} else {
		logger.Info(ctx, "chapter generated",
			"attempts", len(res.Attempts),
			"word_count", res.WordCount,
			"file", out.FilePath,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return out, nil
}

// ListPriorChapters 列出输出目录中的章节文件，每次调用重新扫描
func (s *Service) ListPriorChapters(ctx context.Context, dir string) ([]entity.ChapterFile, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, apperrors.Validation("output path is not set")
	}
	return s.repo.List(ctx, dir)
}

// LoadChapter 读取指定章节正文
func (s *Service) LoadChapter(ctx context.Context, dir string, number int) (*entity.PriorChapter, error) {
	files, err := s.ListPriorChapters(ctx, dir)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if f.Number != number {
			continue
		}
		text, err := s.repo.Load(ctx, f.Path)
		if err != nil {
			return nil, err
		}
		return &entity.PriorChapter{Number: f.Number, Text: text, Path: f.Path}, nil
	}
	return nil, apperrors.ErrChapterNotFound.WithDetail(fmt.Sprintf("chapter %d", number))
}
