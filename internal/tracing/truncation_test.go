package tracing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestMaskPII 各长度区间的掩码规则
func TestMaskPII(t *testing.T) {
	assert.Equal(t, "", MaskPII(""))
	assert.Equal(t, "*", MaskPII("张"))
	assert.Equal(t, "张*", MaskPII("张三"))
	assert.Equal(t, "王*明", MaskPII("王小明"))
	assert.Equal(t, "13*******78", MaskPII("13812345678"))

	masked := MaskPII("zhangwei@example.com")
	assert.True(t, strings.HasPrefix(masked, "zh"))
	assert.True(t, strings.HasSuffix(masked, "om"))
	assert.NotContains(t, masked, "example")
}

// TestSafeAttributeValue 敏感属性名触发掩码，其余只做截断
func TestSafeAttributeValue(t *testing.T) {
	// 属性名含敏感关键字时值被掩码
	masked := SafeAttributeValue("user.email", "zhangwei@example.com", DefaultMaxLength)
	assert.NotContains(t, masked, "example")

	// 普通属性名只截断
	long := strings.Repeat("原始模型输出", 100)
	safe := SafeAttributeValue("error.message", long, DefaultMaxLength)
	assert.LessOrEqual(t, len([]rune(safe)), DefaultMaxLength)
	assert.Contains(t, safe, "...")

	short := SafeAttributeValue("error.message", "解析失败", DefaultMaxLength)
	assert.Equal(t, "解析失败", short)
}

// TestTruncateString 中间截断并保留首尾
func TestTruncateString(t *testing.T) {
	assert.Equal(t, "短文本", TruncateString("短文本", 10))

	long := strings.Repeat("a", 50) + strings.Repeat("z", 50)
	out := TruncateString(long, 21)
	assert.Equal(t, "aaaaaaaaa...zzzzzzzzz", out)

	// 再截断一次结果不变
	assert.Equal(t, out, TruncateString(out, 21))
}

// TestSafePromptAndSource 提示词与原文按各自上限截断
func TestSafePromptAndSource(t *testing.T) {
	long := strings.Repeat("内容", 200)
	assert.LessOrEqual(t, len([]rune(SafePrompt(long))), MaxPromptLength)
	assert.LessOrEqual(t, len([]rune(SafeSourceContent(long))), MaxSourceLength)
}
