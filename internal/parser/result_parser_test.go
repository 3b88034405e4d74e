package parser

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseModelJSON(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected map[string]any
	}{
		{
			name:     "纯JSON",
			input:    `{"score": 80, "comment": "good"}`,
			expected: map[string]any{"score": float64(80), "comment": "good"},
		},
		{
			name:     "带语言标记的代码块",
			input:    "```json\n{\"name\": \"张伟\"}\n```",
			expected: map[string]any{"name": "张伟"},
		},
		{
			name:     "不带语言标记的代码块",
			input:    "```\n{\"name\": \"Zhang Wei\"}\n```",
			expected: map[string]any{"name": "Zhang Wei"},
		},
		{
			name:     "前后夹带说明文字",
			input:    "好的，以下是提取结果：\n{\"basic_info\": {\"phone\": \"13812345678\"}}\n希望对你有帮助。",
			expected: map[string]any{"basic_info": map[string]any{"phone": "13812345678"}},
		},
		{
			name:     "BOM前缀",
			input:    "\uFEFF{\"a\": \"b\"}",
			expected: map[string]any{"a": "b"},
		},
		{
			name:     "字符串内部未转义的引号",
			input:    `结果: {"comment": "候选人熟悉"微服务"架构", "score": 70}`,
			expected: map[string]any{"comment": `候选人熟悉"微服务"架构`, "score": float64(70)},
		},
		{
			name:     "非JSON文本",
			input:    "抱歉，我无法处理这份简历。",
			expected: map[string]any{},
		},
		{
			name:     "空字符串",
			input:    "",
			expected: map[string]any{},
		},
		{
			name:     "顶层是数组",
			input:    `[1, 2, 3]`,
			expected: map[string]any{},
		},
		{
			name:     "括号顺序颠倒",
			input:    "} nothing here {",
			expected: map[string]any{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseModelJSON(tc.input)
			require.NotNil(t, got, "解析结果永远不应为 nil")
			assert.Equal(t, tc.expected, got)
		})
	}
}

// TestParseModelJSONRoundTrip 序列化后再解析应得到相同的对象
func TestParseModelJSONRoundTrip(t *testing.T) {
	original := map[string]any{
		"basic_info": map[string]any{
			"name":    "Zhang Wei",
			"phone":   "13812345678",
			"email":   nil,
			"address": "北京",
		},
		"job_intention":        "后端工程师",
		"work_years":           "5年",
		"education_background": "本科",
		"raw_text_summary":     "熟悉 Go 与分布式系统",
	}
	data, err := json.Marshal(original)
	require.NoError(t, err)

	assert.Equal(t, original, ParseModelJSON(string(data)))
	assert.Equal(t, original, ParseModelJSON("prefix text "+string(data)+" suffix text"))
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("  ```JSON\n{\"a\":1}```  "))
	assert.Equal(t, `{"a":1}`, stripCodeFence(`{"a":1}`))
}
