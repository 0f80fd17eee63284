// Package session 管理故事会话，每个会话持有独立的上下文存储
package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	storyctx "z-novel-chapter-gen/internal/application/story/context"
	"z-novel-chapter-gen/internal/config"
	apperrors "z-novel-chapter-gen/pkg/errors"
	"z-novel-chapter-gen/pkg/logger"
	"z-novel-chapter-gen/pkg/metrics"
)

// Session 一个故事会话
type Session struct {
	ID        string
	CreatedAt time.Time
	Store     *storyctx.Store
}

// Manager 会话管理器
type Manager struct {
	outputRoot        string
	defaultOutputPath string

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(cfg *config.Config) *Manager {
	return &Manager{
		outputRoot:        cfg.Storage.OutputRoot,
		defaultOutputPath: cfg.Storage.DefaultOutputPath,
		sessions:          make(map[string]*Session),
	}
}

// Create 创建会话；默认输出目录不可用时保持未设置，由调用方稍后指定
func (m *Manager) Create(ctx context.Context) *Session {
	id := uuid.NewString()
	s := &Session{
		ID:        id,
		CreatedAt: time.Now(),
		Store:     storyctx.NewStore(id, m.outputRoot),
	}

	if m.defaultOutputPath != "" {
		if err := s.Store.SetOutputPath(m.defaultOutputPath); err != nil {
			logger.Warn(ctx, "default output path unavailable",
				"session_id", id,
				"path", m.defaultOutputPath,
				"error", err.Error(),
			)
		}
	}

	m.mu.Lock()
	m.sessions[id] = s
	n := len(m.sessions)
	m.mu.Unlock()

	metrics.ActiveSessions.Set(float64(n))
	logger.Info(ctx, "session created", "session_id", id)
	return s
}

// Get 获取会话
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, apperrors.ErrSessionNotFound.WithDetail(id)
	}
	return s, nil
}

// Delete 删除会话，已生成的文件保留
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return apperrors.ErrSessionNotFound.WithDetail(id)
	}
	metrics.ActiveSessions.Set(float64(n))
	logger.Info(ctx, "session deleted", "session_id", id)
	return nil
}

// List 按创建时间列出会话
func (m *Manager) List() []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
