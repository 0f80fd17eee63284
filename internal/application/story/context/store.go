// Package context 管理单个会话内的故事上下文
package context

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"z-novel-chapter-gen/internal/domain/entity"
	apperrors "z-novel-chapter-gen/pkg/errors"
)

// Store 会话级故事上下文，读可并发，写串行
type Store struct {
	id         string
	outputRoot string

	mu    sync.RWMutex
	story entity.StoryContext
}

// NewStore 创建上下文存储；outputRoot 非空时输出目录必须位于其下
func NewStore(id, outputRoot string) *Store {
	root := strings.TrimSpace(outputRoot)
	if root != "" {
		root = filepath.Clean(root)
	}
	return &Store{
		id:         id,
		outputRoot: root,
		story:      entity.StoryContext{Characters: []entity.Character{}},
	}
}

// ID 所属会话 ID
func (s *Store) ID() string {
	return s.id
}

// AddCharacter 追加角色，名称为空或重复时返回校验错误且不修改列表
func (s *Store) AddCharacter(name, description string) error {
	name = entity.NormalizeCharacterName(name)
	if name == "" {
		return apperrors.Validation("character name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(name) >= 0 {
		return apperrors.Validation("character %q already exists", name)
	}
	s.story.Characters = append(s.story.Characters, entity.Character{
		Name:        name,
		Description: strings.TrimSpace(description),
	})
	return nil
}

// UpdateCharacter 修改已有角色的描述，位置不变
func (s *Store) UpdateCharacter(name, description string) error {
	name = entity.NormalizeCharacterName(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(name)
	if i < 0 {
		return apperrors.ErrCharacterNotFound.WithDetail(name)
	}
	s.story.Characters[i].Description = strings.TrimSpace(description)
	return nil
}

// RemoveCharacter 删除角色，其余角色保持原有顺序
func (s *Store) RemoveCharacter(name string) error {
	name = entity.NormalizeCharacterName(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(name)
	if i < 0 {
		return apperrors.ErrCharacterNotFound.WithDetail(name)
	}
	s.story.Characters = append(s.story.Characters[:i:i], s.story.Characters[i+1:]...)
	return nil
}

// indexOf 调用方需持有锁
func (s *Store) indexOf(name string) int {
	for i, c := range s.story.Characters {
		if c.Name == name {
			return i
		}
	}
	return -1
}

func (s *Store) SetPlot(text string) { s.setText(&s.story.Plot, text) }

func (s *Store) SetStyleGuide(text string) { s.setText(&s.story.StyleGuide, text) }

func (s *Store) SetWritingStyle(text string) { s.setText(&s.story.WritingStyle, text) }

func (s *Store) SetInstructions(text string) { s.setText(&s.story.Instructions, text) }

func (s *Store) setText(field *string, text string) {
	s.mu.Lock()
	*field = text
	s.mu.Unlock()
}

// SetField 按字段名设置文本
func (s *Store) SetField(name, text string) error {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case entity.FieldPlot:
		s.SetPlot(text)
	case entity.FieldStyleGuide:
		s.SetStyleGuide(text)
	case entity.FieldWritingStyle:
		s.SetWritingStyle(text)
	case entity.FieldInstructions:
		s.SetInstructions(text)
	default:
		return apperrors.Validation("unknown field %q, expected one of %s", name, strings.Join(entity.TextFields(), ", "))
	}
	return nil
}

// SetOutputPath 设置输出目录：不存在时创建，已存在的非目录或不可写时返回 IO 错误
func (s *Store) SetOutputPath(path string) error {
	resolved, err := s.resolveOutputPath(path)
	if err != nil {
		return err
	}
	if err := ensureWritableDir(resolved); err != nil {
		return err
	}

	s.mu.Lock()
	s.story.OutputPath = resolved
	s.mu.Unlock()
	return nil
}

func (s *Store) resolveOutputPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", apperrors.Validation("output path is required")
	}
	if s.outputRoot == "" {
		return filepath.Clean(path), nil
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(s.outputRoot, path)
	}
	path = filepath.Clean(path)

	rel, err := filepath.Rel(s.outputRoot, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", apperrors.Validation("output path %q is outside the output root", path)
	}
	return path, nil
}

func ensureWritableDir(path string) error {
	info, err := os.Stat(path)
	switch {
	case err == nil && !info.IsDir():
		return apperrors.IO(fmt.Errorf("not a directory"), "output path %s exists and is not a directory", path)
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return apperrors.IO(err, "stat output path %s", path)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return apperrors.IO(err, "create output path %s", path)
	}

	tmp, err := os.CreateTemp(path, ".write-tmp-*")
	if err != nil {
		return apperrors.IO(err, "output path %s is not writable", path)
	}
	name := tmp.Name()
	_ = tmp.Close()
	_ = os.Remove(name)
	return nil
}

// Snapshot 返回当前上下文的副本
func (s *Store) Snapshot() entity.StoryContext {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.story.Clone()
}

// Characters 返回角色列表副本
func (s *Store) Characters() []entity.Character {
	return s.Snapshot().Characters
}

// OutputPath 当前输出目录
func (s *Store) OutputPath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.story.OutputPath
}
