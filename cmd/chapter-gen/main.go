// Package main 章节生成命令行入口
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	storyctx "z-novel-chapter-gen/internal/application/story/context"
	"z-novel-chapter-gen/internal/config"
	"z-novel-chapter-gen/internal/domain/entity"
	"z-novel-chapter-gen/internal/infrastructure/eino/callback"
	"z-novel-chapter-gen/internal/interfaces/cli"
	"z-novel-chapter-gen/internal/wire"
	apperrors "z-novel-chapter-gen/pkg/errors"
	"z-novel-chapter-gen/pkg/logger"
	"z-novel-chapter-gen/pkg/tracer"
)

func main() {
	var (
		storyPath = flag.String("story", "story.yaml", "YAML story file")
		chapterNo = flag.Int("chapter", 0, "chapter number to generate")
		minWords  = flag.Int("min", -1, "minimum word count (default from config)")
		outDir    = flag.String("out", "", "output directory, overrides output_path in the story file")
		list      = flag.Bool("list", false, "list chapters in the output directory and exit")
	)
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.InitWithWriter(os.Stderr, cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)

	// Ctrl-C 取消生成，不写入任何文件
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: cfg.App.Name,
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	callback.Init()

	if err := run(ctx, cfg, *storyPath, *chapterNo, *minWords, *outDir, *list); err != nil {
		logger.Error(ctx, "chapter-gen failed", err)
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
}

func run(ctx context.Context, cfg *config.Config, storyPath string, chapterNo, minWords int, outDir string, list bool) error {
	file, err := cli.LoadStoryFile(storyPath)
	if err != nil {
		return err
	}
	store := storyctx.NewStore("cli", cfg.Storage.OutputRoot)
	if err := file.Apply(store, outDir); err != nil {
		return err
	}

	svc, err := wire.InitializeChapterService(ctx, cfg)
	if err != nil {
		return err
	}

	if list {
		files, err := svc.ListPriorChapters(ctx, store.OutputPath())
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Printf("%3d  %s\n", f.Number, f.Path)
		}
		return nil
	}

	if minWords < 0 {
		minWords = cfg.Generation.DefaultMinWordCount
	}
	result, err := svc.GenerateChapter(ctx, store, entity.ChapterRequest{
		ChapterNumber:    chapterNo,
		MinimumWordCount: minWords,
	})
	if err != nil {
		return err
	}

	fmt.Printf("chapter %d: %s, %d words, valid=%t\n", result.Number, result.State, result.WordCount, result.Valid)
	fmt.Printf("saved to %s\n", result.FilePath)
	if result.ReportPath != "" {
		fmt.Printf("report at %s\n", result.ReportPath)
	}
	if !result.Valid && result.Feedback != "" {
		fmt.Printf("feedback: %s\n", result.Feedback)
	}
	return nil
}

func exitCode(err error) int {
	switch {
	case apperrors.IsValidation(err):
		return 2
	case apperrors.IsCanceled(err):
		return 130
	default:
		return 1
	}
}
