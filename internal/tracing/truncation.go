package tracing

import (
	"strings"
)

const (
	// DefaultMaxLength 默认最大属性长度
	DefaultMaxLength = 200

	// MaxRedisKeyLength Redis 键最大长度
	MaxRedisKeyLength = 100

	// MaxResumeTextLength 简历文本片段最大长度
	MaxResumeTextLength = 150
)

// piiKeywords 属性名包含这些关键字时，值需要掩码
var piiKeywords = []string{
	"email", "phone", "name", "address", "token", "api_key", "secret",
	"姓名", "电话", "邮箱", "地址",
}

// SafeAttributeValue 敏感字段掩码，其余字段按长度截断
func SafeAttributeValue(name string, value string, maxLength int) string {
	lowerName := strings.ToLower(name)
	for _, keyword := range piiKeywords {
		if strings.Contains(lowerName, keyword) {
			return MaskPII(value)
		}
	}
	return TruncateString(value, maxLength)
}

// MaskPII 保留首尾少量字符，"张三" -> "张*"，"13812345678" -> "13*******78"
func MaskPII(value string) string {
	runes := []rune(value)
	n := len(runes)
	switch {
	case n == 0:
		return ""
	case n == 1:
		return "*"
	case n == 2:
		return string(runes[0]) + "*"
	case n <= 4:
		return string(runes[0]) + strings.Repeat("*", n-2) + string(runes[n-1])
	}
	return string(runes[:2]) + strings.Repeat("*", n-4) + string(runes[n-2:])
}

// TruncateString 超长时保留首尾，中间以 ... 连接
func TruncateString(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return string(runes[:maxLength])
	}

	half := max((maxLength-3)/2, 1)
	return string(runes[:half]) + "..." + string(runes[len(runes)-half:])
}

// SafeRedisKey Redis 键写入 span 前截断
func SafeRedisKey(key string) string {
	return TruncateString(key, MaxRedisKeyLength)
}

// SafeResumeText 简历文本写入 span 前截断
func SafeResumeText(text string) string {
	return TruncateString(text, MaxResumeTextLength)
}
