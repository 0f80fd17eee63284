// Package cli 提供命令行入口使用的故事文件加载
package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	storyctx "z-novel-chapter-gen/internal/application/story/context"
	"z-novel-chapter-gen/internal/domain/entity"
	apperrors "z-novel-chapter-gen/pkg/errors"
)

// StoryFile YAML 故事文件
type StoryFile struct {
	Characters   []entity.Character `yaml:"characters"`
	Plot         string             `yaml:"plot"`
	StyleGuide   string             `yaml:"style_guide"`
	WritingStyle string             `yaml:"writing_style"`
	Instructions string             `yaml:"instructions"`
	OutputPath   string             `yaml:"output_path"`
}

// LoadStoryFile 读取并解析故事文件
func LoadStoryFile(path string) (*StoryFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.IO(err, "read story file %s", path)
	}
	return ParseStoryFile(raw)
}

// ParseStoryFile 解析故事文件内容，未知字段视为错误
func ParseStoryFile(raw []byte) (*StoryFile, error) {
	var f StoryFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, apperrors.Validation("story file is empty")
		}
		return nil, apperrors.Validation("invalid story file: %v", err)
	}
	return &f, nil
}

// Apply 将故事文件写入上下文存储；outputOverride 非空时优先于文件中的输出目录
func (f *StoryFile) Apply(store *storyctx.Store, outputOverride string) error {
	for _, ch := range f.Characters {
		if err := store.AddCharacter(ch.Name, ch.Description); err != nil {
			return err
		}
	}
	store.SetPlot(f.Plot)
	store.SetStyleGuide(f.StyleGuide)
	store.SetWritingStyle(f.WritingStyle)
	store.SetInstructions(f.Instructions)

	out := f.OutputPath
	if outputOverride != "" {
		out = outputOverride
	}
	if out == "" {
		return apperrors.Validation("output path is not set, use output_path in the story file or -out")
	}
	if err := store.SetOutputPath(out); err != nil {
		return fmt.Errorf("set output path: %w", err)
	}
	return nil
}
