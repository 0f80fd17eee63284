package node

import (
	"fmt"
	"strconv"
	"strings"

	wfmodel "z-novel-chapter-gen/internal/workflow/model"
)

const emptyBlock = "None"

// TextOrNone 空文本渲染为 None，保证模板各段落始终存在
func TextOrNone(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return emptyBlock
	}
	return s
}

// BuildCharactersBlock 按录入顺序渲染角色列表
func BuildCharactersBlock(characters []wfmodel.CharacterInput) string {
	lines := make([]string, 0, len(characters))
	for _, c := range characters {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		desc := strings.TrimSpace(c.Description)
		if desc == "" {
			lines = append(lines, "- "+name)
			continue
		}
		lines = append(lines, "- "+name+": "+desc)
	}
	if len(lines) == 0 {
		return emptyBlock
	}
	return strings.Join(lines, "\n")
}

// SelectPriorChapters 在词数预算内保留最近的连续章节，返回保留的章节与被省略的章节号。
// budget <= 0 时全部保留。
func SelectPriorChapters(chapters []wfmodel.PriorChapterInput, budget int) (kept []wfmodel.PriorChapterInput, omitted []int) {
	if budget <= 0 {
		return chapters, nil
	}

	used := 0
	start := len(chapters)
	for i := len(chapters) - 1; i >= 0; i-- {
		words := len(strings.Fields(chapters[i].Text))
		if used+words > budget {
			break
		}
		used += words
		start = i
	}
	for _, c := range chapters[:start] {
		omitted = append(omitted, c.Number)
	}
	return chapters[start:], omitted
}

// BuildPriorChaptersBlock 渲染前文章节全文，按章节号升序
func BuildPriorChaptersBlock(chapters []wfmodel.PriorChapterInput, budget int) string {
	kept, omitted := SelectPriorChapters(chapters, budget)

	parts := make([]string, 0, len(kept)+1)
	if len(omitted) > 0 {
		nums := make([]string, 0, len(omitted))
		for _, n := range omitted {
			nums = append(nums, strconv.Itoa(n))
		}
		parts = append(parts, fmt.Sprintf("(Earlier chapters omitted for length: %s.)", strings.Join(nums, ", ")))
	}
	for _, c := range kept {
		parts = append(parts, fmt.Sprintf("Chapter %d:\n%s", c.Number, strings.TrimSpace(c.Text)))
	}
	if len(parts) == 0 {
		return emptyBlock
	}
	return strings.Join(parts, "\n\n")
}

// BuildFeedbackBlock 重试时附加的修正意见，首轮为空行
func BuildFeedbackBlock(feedback string) string {
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return ""
	}
	return "\nThe previous attempt was rejected. Apply this feedback in the new version:\n" + feedback + "\n"
}
