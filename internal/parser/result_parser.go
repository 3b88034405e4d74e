package parser

import (
	"encoding/json"
	"strings"
)

// parseStrategy 尝试从模型回复中取出一个 JSON 对象，失败返回 false
type parseStrategy func(text string) (map[string]any, bool)

// resultStrategies 按顺序尝试，第一个成功的结果生效
var resultStrategies = []parseStrategy{
	parseDirect,
	parseOuterBraces,
	parseOuterBracesSanitized,
}

// ParseModelJSON 从大模型的自由文本回复中提取 JSON 对象。
// 回复可能被 ``` 代码块包裹、前后夹带说明文字或本身格式有误。
// 该函数从不返回错误，所有策略都失败时返回空 map，调用方把缺失的键视为"未提供"。
func ParseModelJSON(raw string) map[string]any {
	text := stripCodeFence(raw)
	for _, strategy := range resultStrategies {
		if m, ok := strategy(text); ok {
			return m
		}
	}
	return map[string]any{}
}

// stripCodeFence 去掉 BOM、开头的 ```json / ``` 以及结尾的 ```
func stripCodeFence(raw string) string {
	text := strings.TrimSpace(strings.TrimPrefix(raw, "\uFEFF"))
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		// 语言标记只占据第一行
		if nl := strings.IndexByte(text, '\n'); nl >= 0 {
			tag := strings.TrimSpace(text[:nl])
			if tag == "" || !strings.ContainsAny(tag, "{[\"") {
				text = text[nl+1:]
			}
		}
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func parseDirect(text string) (map[string]any, bool) {
	return decodeObject(text)
}

// parseOuterBraces 截取第一个 '{' 到最后一个 '}' 之间的内容
func parseOuterBraces(text string) (map[string]any, bool) {
	bounded, ok := outerBraces(text)
	if !ok {
		return nil, false
	}
	return decodeObject(bounded)
}

// parseOuterBracesSanitized 在截取的基础上修复字符串内部未转义的双引号
func parseOuterBracesSanitized(text string) (map[string]any, bool) {
	bounded, ok := outerBraces(text)
	if !ok {
		return nil, false
	}
	return decodeObject(sanitizeJSON(bounded))
}

func outerBraces(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

func decodeObject(text string) (map[string]any, bool) {
	if text == "" {
		return nil, false
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(text), &m); err != nil || m == nil {
		return nil, false
	}
	return m, true
}

// sanitizeJSON 尝试修复模型输出中字符串内部未转义的双引号
func sanitizeJSON(src string) string {
	var b strings.Builder
	inStr := false
	escaped := false

	for i := 0; i < len(src); i++ {
		c := src[i]

		switch {
		case c == '"' && !escaped:
			if !inStr {
				inStr = true
				b.WriteByte(c)
				break
			}
			// 下一个非空白字符是 : , ] } 之一时才是真正的字符串结束
			j := i + 1
			for j < len(src) && (src[j] == ' ' || src[j] == '\t' || src[j] == '\n' || src[j] == '\r') {
				j++
			}
			if j < len(src) && (src[j] == ':' || src[j] == ',' || src[j] == ']' || src[j] == '}') {
				inStr = false
				b.WriteByte(c)
			} else {
				b.WriteString("\\\"")
			}
		case c == '\\' && !escaped:
			escaped = true
			b.WriteByte(c)
			continue
		default:
			b.WriteByte(c)
		}
		escaped = false
	}

	return b.String()
}
