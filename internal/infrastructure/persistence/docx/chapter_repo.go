package docx

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"z-novel-chapter-gen/internal/domain/entity"
	"z-novel-chapter-gen/internal/domain/repository"
	apperrors "z-novel-chapter-gen/pkg/errors"
)

var tracer = otel.Tracer("docx")

// chapterFileRe 同时接受补零与未补零的历史文件名，不匹配校验报告
var chapterFileRe = regexp.MustCompile(`^Chapter (\d+)\.docx$`)

// ChapterFileName 章节文件名，三位补零。
// 第 1000 章起文件名字典序与章节顺序不一致，List 按解析出的编号排序，不依赖文件名顺序。
func ChapterFileName(number int) string {
	return fmt.Sprintf("Chapter %03d.docx", number)
}

// ReportFileName 校验报告文件名
func ReportFileName(number int) string {
	return fmt.Sprintf("Chapter %03d validity.docx", number)
}

// ChapterRepository 基于目录的章节仓储
type ChapterRepository struct{}

var _ repository.ChapterRepository = (*ChapterRepository)(nil)

// NewChapterRepository 创建章节仓储
func NewChapterRepository() *ChapterRepository {
	return &ChapterRepository{}
}

// Save 写入章节文档
func (r *ChapterRepository) Save(ctx context.Context, dir string, number int, text string) (string, error) {
	ctx, span := tracer.Start(ctx, "docx.ChapterRepository.Save")
	defer span.End()
	span.SetAttributes(attribute.Int("chapter.number", number))

	paragraphs := make([]Paragraph, 0, 16)
	paragraphs = append(paragraphs, Paragraph{Style: HeadingStyle, Text: fmt.Sprintf("Chapter %d", number)})
	for _, line := range splitLines(text) {
		paragraphs = append(paragraphs, Paragraph{Text: line})
	}

	path, err := r.write(ctx, dir, ChapterFileName(number), paragraphs)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	return path, nil
}

// SaveReport 写入校验报告文档
func (r *ChapterRepository) SaveReport(ctx context.Context, dir string, report *entity.ValidityReport) (string, error) {
	ctx, span := tracer.Start(ctx, "docx.ChapterRepository.SaveReport")
	defer span.End()

	if report == nil {
		return "", apperrors.Validation("validity report is required")
	}
	span.SetAttributes(attribute.Int("chapter.number", report.ChapterNumber))

	path, err := r.write(ctx, dir, ReportFileName(report.ChapterNumber), reportParagraphs(report))
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	return path, nil
}

// write 先写临时文件再重命名，失败或取消时不留下半成品
func (r *ChapterRepository) write(ctx context.Context, dir, name string, paragraphs []Paragraph) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", apperrors.ErrCanceled.WithError(err)
	}
	if strings.TrimSpace(dir) == "" {
		return "", apperrors.Validation("output path is not set")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperrors.IO(err, "create output directory %s", dir)
	}

	var buf bytes.Buffer
	if err := Encode(&buf, paragraphs); err != nil {
		return "", apperrors.IO(err, "encode %s", name)
	}

	tmp, err := os.CreateTemp(dir, ".chapter-*.docx.tmp")
	if err != nil {
		return "", apperrors.IO(err, "create temp file in %s", dir)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", apperrors.IO(err, "write %s", name)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", apperrors.IO(err, "close %s", name)
	}
	if err := ctx.Err(); err != nil {
		cleanup()
		return "", apperrors.ErrCanceled.WithError(err)
	}

	final := filepath.Join(dir, name)
	if err := os.Rename(tmpName, final); err != nil {
		cleanup()
		return "", apperrors.IO(err, "rename %s", name)
	}
	return final, nil
}

// List 按章节号升序列出章节文件
func (r *ChapterRepository) List(ctx context.Context, dir string) ([]entity.ChapterFile, error) {
	_, span := tracer.Start(ctx, "docx.ChapterRepository.List")
	defer span.End()

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []entity.ChapterFile{}, nil
		}
		span.RecordError(err)
		return nil, apperrors.IO(err, "read output directory %s", dir)
	}

	byNumber := make(map[int]entity.ChapterFile, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := chapterFileRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, convErr := strconv.Atoi(m[1])
		if convErr != nil || n < 1 {
			continue
		}
		info, infoErr := e.Info()
		if infoErr != nil {
			continue
		}
		file := entity.ChapterFile{Number: n, Path: filepath.Join(dir, e.Name()), ModTime: info.ModTime()}
		// 同一章节号同时存在新旧命名时，以补零命名为准
		if existing, ok := byNumber[n]; ok && filepath.Base(existing.Path) == ChapterFileName(n) {
			continue
		}
		byNumber[n] = file
	}

	out := make([]entity.ChapterFile, 0, len(byNumber))
	for _, f := range byNumber {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	span.SetAttributes(attribute.Int("chapter.count", len(out)))
	return out, nil
}

// Prior 读取 before 之前的全部章节正文
func (r *ChapterRepository) Prior(ctx context.Context, dir string, before int) ([]entity.PriorChapter, error) {
	ctx, span := tracer.Start(ctx, "docx.ChapterRepository.Prior")
	defer span.End()

	files, err := r.List(ctx, dir)
	if err != nil {
		return nil, err
	}

	out := make([]entity.PriorChapter, 0, len(files))
	for _, f := range files {
		if f.Number >= before {
			break
		}
		text, loadErr := r.Load(ctx, f.Path)
		if loadErr != nil {
			span.RecordError(loadErr)
			return nil, loadErr
		}
		out = append(out, entity.PriorChapter{Number: f.Number, Text: text, Path: f.Path})
	}
	return out, nil
}

// Load 读取章节正文，标题段落不计入
func (r *ChapterRepository) Load(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", apperrors.ErrCanceled.WithError(err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", apperrors.New(apperrors.CodeFileNotFound, "chapter file not found").WithDetail(path)
		}
		return "", apperrors.IO(err, "read %s", path)
	}

	paragraphs, err := Decode(raw)
	if err != nil {
		return "", apperrors.IO(err, "parse %s", path)
	}

	lines := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		if p.IsHeading() {
			continue
		}
		lines = append(lines, p.Text)
	}
	return strings.Join(lines, "\n"), nil
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}

func reportParagraphs(r *entity.ValidityReport) []Paragraph {
	out := []Paragraph{
		{Style: HeadingStyle, Text: fmt.Sprintf("Chapter %d validity", r.ChapterNumber)},
		{Text: "Valid: " + yesNo(r.Valid)},
		{Text: "State: " + string(r.State)},
		{Text: fmt.Sprintf("Word count: %d (minimum %d)", r.WordCount, r.MinWordCount)},
	}
	if !r.Valid {
		out = append(out, Paragraph{Text: "This chapter did not pass validation and was saved as the last available attempt."})
	}
	if r.Feedback != "" {
		out = append(out, Paragraph{Text: "Feedback: " + r.Feedback})
	}
	if v := r.Verdict; v != nil {
		out = append(out,
			Paragraph{Text: "Style adherent: " + optionalYesNo(v.StyleAdherent)},
			Paragraph{Text: "Continuity: " + optionalYesNo(v.Continuity)},
		)
		if len(v.Issues) > 0 {
			out = append(out, Paragraph{Style: "Heading2", Text: "Issues"})
			for _, issue := range v.Issues {
				out = append(out, Paragraph{Text: "- " + issue})
			}
		}
	}
	if len(r.Attempts) > 0 {
		out = append(out, Paragraph{Style: "Heading2", Text: "Attempts"})
		for _, a := range r.Attempts {
			line := fmt.Sprintf("Attempt %d: %s, %d words", a.Attempt, a.Outcome, a.WordCount)
			if a.Reason != "" {
				line += ", " + a.Reason
			}
			if a.Feedback != "" {
				line += ". " + a.Feedback
			}
			if a.Error != "" {
				line += ". error: " + a.Error
			}
			out = append(out, Paragraph{Text: line})
		}
	}
	generatedAt := r.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now()
	}
	out = append(out, Paragraph{Text: "Generated at: " + generatedAt.UTC().Format(time.RFC3339)})
	return out
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func optionalYesNo(b *bool) string {
	if b == nil {
		return "Unknown"
	}
	return yesNo(*b)
}
