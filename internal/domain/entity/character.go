// Package entity 定义领域实体
package entity

import "strings"

// Character 角色，名称在同一故事内唯一（大小写敏感）
type Character struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// NormalizeCharacterName 去除名称首尾空白
func NormalizeCharacterName(name string) string {
	return strings.TrimSpace(name)
}
