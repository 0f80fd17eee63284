package node

import (
	"encoding/json"
	"fmt"
	"strings"

	wfmodel "z-novel-chapter-gen/internal/workflow/model"
)

const maxFallbackFeedbackRunes = 4000

// flexBool 兼容 true/"yes"/"pass" 等写法
type flexBool struct {
	set   bool
	value bool
}

func (b *flexBool) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		return nil
	case bool:
		b.set, b.value = true, t
	case string:
		b.set, b.value = true, isAffirmative(t)
	case float64:
		b.set, b.value = true, t != 0
	default:
		return fmt.Errorf("unsupported boolean value %s", string(data))
	}
	return nil
}

func (b flexBool) ptr() *bool {
	if !b.set {
		return nil
	}
	v := b.value
	return &v
}

type verdictJSON struct {
	Valid         flexBool `json:"valid"`
	Feedback      string   `json:"feedback"`
	StyleAdherent flexBool `json:"style_adherent"`
	Continuity    flexBool `json:"continuity"`
	Issues        []string `json:"issues"`
}

// ParseVerdict 解析校验模型输出。
// 依次尝试输出中的每个 JSON 对象；失败时兼容 "Valid: Yes" / "Feedback: ..." 行格式；
// 都无法识别时视为未通过，整段输出作为反馈。
func ParseVerdict(raw string) *wfmodel.ChapterVerdict {
	raw = strings.TrimSpace(raw)

	for _, js := range JSONObjects(raw) {
		var vj verdictJSON
		if err := json.Unmarshal([]byte(js), &vj); err != nil || !vj.Valid.set {
			continue
		}
		issues := make([]string, 0, len(vj.Issues))
		for _, is := range vj.Issues {
			if s := strings.TrimSpace(is); s != "" {
				issues = append(issues, s)
			}
		}
		return &wfmodel.ChapterVerdict{
			Valid:         vj.Valid.value,
			Feedback:      strings.TrimSpace(vj.Feedback),
			StyleAdherent: vj.StyleAdherent.ptr(),
			Continuity:    vj.Continuity.ptr(),
			Issues:        issues,
			Raw:           raw,
		}
	}

	return parseLineVerdict(raw)
}

func parseLineVerdict(raw string) *wfmodel.ChapterVerdict {
	out := &wfmodel.ChapterVerdict{Raw: raw}

	lines := strings.Split(raw, "\n")
	feedbackAt := -1
	for i, line := range lines {
		key, value, ok := strings.Cut(strings.TrimSpace(strings.Trim(line, "*# ")), ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.Trim(key, "*# "))
		value = strings.TrimSpace(strings.Trim(value, "* "))
		switch key {
		case "valid":
			out.Valid = isAffirmative(value)
		case "adheres to style guide", "style adherent":
			b := isAffirmative(value)
			out.StyleAdherent = &b
		case "continuity":
			b := isAffirmative(value)
			out.Continuity = &b
		case "feedback":
			if feedbackAt < 0 {
				feedbackAt = i
				lines[i] = value
			}
		}
	}

	if feedbackAt >= 0 {
		out.Feedback = strings.TrimSpace(strings.Join(lines[feedbackAt:], "\n"))
	} else {
		out.Feedback = raw
	}
	out.Feedback = TruncateByRunes(out.Feedback, maxFallbackFeedbackRunes)
	return out
}

func isAffirmative(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, p := range []string{"yes", "true", "pass", "valid", "y"} {
		if s == p || strings.HasPrefix(s, p+" ") || strings.HasPrefix(s, p+".") || strings.HasPrefix(s, p+",") {
			return true
		}
	}
	return false
}
