// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"z-novel-chapter-gen/internal/domain/entity"
)

// ChapterRepository 章节文件仓储接口
// 每次调用都重新扫描目录，不做跨调用缓存。
type ChapterRepository interface {
	// Save 写入章节文档，同一章节号直接覆盖
	Save(ctx context.Context, dir string, number int, text string) (string, error)

	// SaveReport 写入章节校验报告文档
	SaveReport(ctx context.Context, dir string, report *entity.ValidityReport) (string, error)

	// List 按章节号升序列出目录中的章节文件
	List(ctx context.Context, dir string) ([]entity.ChapterFile, error)

	// Prior 读取章节号小于 before 的全部章节正文，按章节号升序
	Prior(ctx context.Context, dir string, before int) ([]entity.PriorChapter, error)

	// Load 读取单个章节正文
	Load(ctx context.Context, path string) (string, error)
}
