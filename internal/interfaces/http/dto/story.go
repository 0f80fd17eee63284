package dto

// CreateCharacterRequest 添加角色请求
type CreateCharacterRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// UpdateCharacterRequest 修改角色请求
type UpdateCharacterRequest struct {
	Description string `json:"description"`
}

// SetFieldRequest 设置文本字段请求，空字符串表示清空
type SetFieldRequest struct {
	Text string `json:"text"`
}

// SetOutputPathRequest 设置输出目录请求
type SetOutputPathRequest struct {
	Path string `json:"path" binding:"required"`
}
