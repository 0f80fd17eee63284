package dto

import (
	"time"

	"z-novel-chapter-gen/internal/application/story/session"
	"z-novel-chapter-gen/internal/domain/entity"
)

// CharacterResponse 角色响应
type CharacterResponse struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// StoryResponse 故事上下文响应
type StoryResponse struct {
	Characters   []*CharacterResponse `json:"characters"`
	Plot         string               `json:"plot"`
	StyleGuide   string               `json:"style_guide"`
	WritingStyle string               `json:"writing_style"`
	Instructions string               `json:"instructions"`
	OutputPath   string               `json:"output_path"`
}

// SessionResponse 会话响应
type SessionResponse struct {
	ID        string         `json:"id"`
	CreatedAt string         `json:"created_at"`
	Story     *StoryResponse `json:"story"`
}

// SessionListResponse 会话列表响应
type SessionListResponse struct {
	Sessions []*SessionResponse `json:"sessions"`
}

// ToSessionResponse 转换会话
func ToSessionResponse(s *session.Session) *SessionResponse {
	if s == nil {
		return nil
	}
	return &SessionResponse{
		ID:        s.ID,
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
		Story:     ToStoryResponse(s.Store.Snapshot()),
	}
}

// ToSessionListResponse 转换会话列表
func ToSessionListResponse(sessions []*session.Session) *SessionListResponse {
	out := &SessionListResponse{Sessions: make([]*SessionResponse, 0, len(sessions))}
	for _, s := range sessions {
		out.Sessions = append(out.Sessions, ToSessionResponse(s))
	}
	return out
}

// ToStoryResponse 转换故事上下文
func ToStoryResponse(story entity.StoryContext) *StoryResponse {
	chars := make([]*CharacterResponse, 0, len(story.Characters))
	for _, ch := range story.Characters {
		chars = append(chars, &CharacterResponse{Name: ch.Name, Description: ch.Description})
	}
	return &StoryResponse{
		Characters:   chars,
		Plot:         story.Plot,
		StyleGuide:   story.StyleGuide,
		WritingStyle: story.WritingStyle,
		Instructions: story.Instructions,
		OutputPath:   story.OutputPath,
	}
}
