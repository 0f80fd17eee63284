package node

// JSONObjects 按出现顺序返回模型输出中所有顶层括号配平的片段。
// 字符串字面量内的括号与转义引号不参与配平，未闭合的 { 被跳过。
func JSONObjects(s string) []string {
	var out []string
	for start := 0; start < len(s); start++ {
		if s[start] != '{' {
			continue
		}
		if end := matchBrace(s, start); end > start {
			out = append(out, s[start:end+1])
			start = end
		}
	}
	return out
}

// matchBrace 返回与 s[start] 处 '{' 配对的下标，未闭合时返回 -1
func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// TruncateByRunes 按字符数截断，不切断多字节字符
func TruncateByRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	for i := range s {
		if maxRunes == 0 {
			return s[:i]
		}
		maxRunes--
	}
	return s
}

