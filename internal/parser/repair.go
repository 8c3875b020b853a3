package parser

import (
	"encoding/json"
	"regexp"
	"strings"
)

// RepairJSON 对LLM返回的疑似JSON文本做尽力而为的结构修复，返回解析后的树。
// 任何输入都不会导致panic；修复失败时返回 (nil, false)。
// 修复步骤按固定顺序各执行一次，前一步已能解析时不再继续，因此整体是幂等的：
//  1. 剥离首尾的Markdown代码围栏
//  2. 直接尝试结构化解析
//  3. 定位第一个 '{' 或 '['，丢弃之前的所有内容
//  4. 逐字符扫描引号状态（考虑反斜杠转义），若结尾仍在字符串内则补一个闭合引号
//  5. 统计字符串外的未闭合括号，按LIFO顺序补齐闭合符（先闭合内层）
//  6. 去掉悬空的尾部逗号以及没有值的 `"key":` 残片
//  7. 再次尝试解析
func RepairJSON(raw string) (interface{}, bool) {
	// 步骤1：剥离代码围栏
	s := stripCodeFence(raw)

	// 步骤2：直接解析
	if tree, ok := tryParseStructural(s); ok {
		return tree, true
	}

	// 步骤3：截取到第一个结构起始符
	s, found := clipToStructStart(s)
	if !found {
		return nil, false
	}
	if tree, ok := tryParseStructural(s); ok {
		return tree, true
	}

	// 步骤4：闭合未终止的字符串
	s = closeOpenString(s)

	// 步骤6（在补齐闭合符之前执行，避免逗号残片被封进结构内部）
	s = trimDanglingTail(s, innermostOpen(s))

	// 步骤5：按LIFO补齐闭合括号
	s += missingClosers(s)

	// 步骤7：最终解析
	if tree, ok := tryParseStructural(s); ok {
		return tree, true
	}
	return nil, false
}

// tryParseStructural 解析并要求顶层是对象或数组；标量不算有效的结构化结果
func tryParseStructural(s string) (interface{}, bool) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil, false
	}
	var tree interface{}
	if err := json.Unmarshal([]byte(trimmed), &tree); err != nil {
		return nil, false
	}
	switch tree.(type) {
	case map[string]interface{}, []interface{}:
		return tree, true
	default:
		return nil, false
	}
}

var fenceOpenRe = regexp.MustCompile("^```[a-zA-Z]*\\s*")

// stripCodeFence 去掉 ```json ... ``` 这类围栏标记，LLM经常无视指令加上它们
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = fenceOpenRe.ReplaceAllString(s, "")
	}
	if strings.HasSuffix(strings.TrimSpace(s), "```") {
		s = strings.TrimSpace(s)
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}

// clipToStructStart 丢弃第一个 '{' 或 '[' 之前的所有内容（通常是LLM的解释性文字）
func clipToStructStart(s string) (string, bool) {
	objIdx := strings.IndexByte(s, '{')
	arrIdx := strings.IndexByte(s, '[')
	switch {
	case objIdx == -1 && arrIdx == -1:
		return "", false
	case objIdx == -1:
		return s[arrIdx:], true
	case arrIdx == -1 || objIdx < arrIdx:
		return s[objIdx:], true
	default:
		return s[arrIdx:], true
	}
}

// closeOpenString 扫描整个文本的引号状态，结尾仍处于字符串内部时补一个闭合引号
func closeOpenString(s string) string {
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			if escaped {
				escaped = false
				continue
			}
			switch c {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
		}
	}
	if inString {
		if escaped {
			// 结尾是孤立的反斜杠，去掉它再闭合，否则补上的引号会被转义
			s = s[:len(s)-1]
		}
		return s + `"`
	}
	return s
}

var (
	danglingKeyRe   = regexp.MustCompile(`"(?:[^"\\]|\\.)*"\s*:\s*$`)
	bareTailKeyRe   = regexp.MustCompile(`,\s*"(?:[^"\\]|\\.)*"\s*$`)
	trailingCommaRe = regexp.MustCompile(`,\s*$`)
)

// trimDanglingTail 去掉尾部没有值的 `"key":` 残片以及随后暴露出来的悬空逗号。
// 最内层未闭合的是对象时，结尾的裸字符串只可能是被截断的键，一并去掉；
// 在数组里它是合法元素，必须保留。
func trimDanglingTail(s string, container byte) string {
	s = strings.TrimRight(s, " \t\r\n")
	if loc := danglingKeyRe.FindStringIndex(s); loc != nil {
		s = s[:loc[0]]
		s = strings.TrimRight(s, " \t\r\n")
	} else if container == '{' {
		if loc := bareTailKeyRe.FindStringIndex(s); loc != nil {
			s = s[:loc[0]]
			s = strings.TrimRight(s, " \t\r\n")
		}
	}
	s = trailingCommaRe.ReplaceAllString(s, "")
	return s
}

// innermostOpen 返回最内层未闭合容器的起始符（'{' 或 '['），没有则返回0
func innermostOpen(s string) byte {
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			if escaped {
				escaped = false
				continue
			}
			switch c {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	if len(stack) == 0 {
		return 0
	}
	return stack[len(stack)-1]
}

// missingClosers 统计字符串外的未闭合括号，返回需要追加的闭合符序列。
// 使用栈保证内层先闭合：数组在对象内部时先补 ']' 再补 '}'。
func missingClosers(s string) string {
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			if escaped {
				escaped = false
				continue
			}
			switch c {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
		}
	}
	// 反向弹栈
	var b strings.Builder
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(stack[i])
	}
	return b.String()
}
