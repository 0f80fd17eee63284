package entity

// 可通过 SetField 设置的文本字段
const (
	FieldPlot         = "plot"
	FieldStyleGuide   = "style_guide"
	FieldWritingStyle = "writing_style"
	FieldInstructions = "instructions"
)

// TextFields 返回所有可设置的文本字段名
func TextFields() []string {
	return []string{FieldPlot, FieldStyleGuide, FieldWritingStyle, FieldInstructions}
}

// StoryContext 一个会话内用户录入的故事上下文
type StoryContext struct {
	Characters   []Character `json:"characters"`
	Plot         string      `json:"plot"`
	StyleGuide   string      `json:"style_guide"`
	WritingStyle string      `json:"writing_style"`
	Instructions string      `json:"instructions"`
	OutputPath   string      `json:"output_path"`
}

// Clone 返回深拷贝，角色切片不与原对象共享
func (c StoryContext) Clone() StoryContext {
	out := c
	if c.Characters != nil {
		out.Characters = make([]Character, len(c.Characters))
		copy(out.Characters, c.Characters)
	}
	return out
}
