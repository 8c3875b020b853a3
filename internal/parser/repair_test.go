package parser

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRepairJSONValidInput 合法输入应原样解析
func TestRepairJSONValidInput(t *testing.T) {
	tree, ok := RepairJSON(`{"name": "张伟", "skills": ["Go", "MySQL"]}`)
	require.True(t, ok)

	obj, isObj := tree.(map[string]interface{})
	require.True(t, isObj)
	assert.Equal(t, "张伟", obj["name"])
}

// TestRepairJSONCodeFence 带代码围栏的输出应被剥离后解析
func TestRepairJSONCodeFence(t *testing.T) {
	raw := "```json\n{\"email\": \"test@example.com\"}\n```"
	tree, ok := RepairJSON(raw)
	require.True(t, ok)

	obj := tree.(map[string]interface{})
	assert.Equal(t, "test@example.com", obj["email"])
}

// TestRepairJSONLeadingProse 结构前的闲聊文本应被丢弃
func TestRepairJSONLeadingProse(t *testing.T) {
	raw := `好的，以下是提取结果：{"name": "李娜"}`
	tree, ok := RepairJSON(raw)
	require.True(t, ok)

	obj := tree.(map[string]interface{})
	assert.Equal(t, "李娜", obj["name"])
}

// TestRepairJSONBracketBalance 截断在字符串内部时必须依次补齐引号、数组和对象
func TestRepairJSONBracketBalance(t *testing.T) {
	tree, ok := RepairJSON(`{"a": [1, 2, "b`)
	require.True(t, ok)

	data, err := json.Marshal(tree)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": [1, 2, "b"]}`, string(data))
}

// TestRepairJSONDanglingKey 尾部残缺的"key":片段应被剔除
func TestRepairJSONDanglingKey(t *testing.T) {
	tree, ok := RepairJSON(`{"name": "王强", "email":`)
	require.True(t, ok)

	obj := tree.(map[string]interface{})
	assert.Equal(t, "王强", obj["name"])
	_, hasEmail := obj["email"]
	assert.False(t, hasEmail)
}

// TestRepairJSONTrailingComma 尾随逗号应被剔除
func TestRepairJSONTrailingComma(t *testing.T) {
	tree, ok := RepairJSON(`{"skills": ["Go", "Redis",`)
	require.True(t, ok)

	obj := tree.(map[string]interface{})
	skills, isList := obj["skills"].([]interface{})
	require.True(t, isList)
	assert.Len(t, skills, 2)
}

// TestRepairJSONGarbage 完全无法识别的输入返回失败而不是panic
func TestRepairJSONGarbage(t *testing.T) {
	for _, raw := range []string{"", "这不是JSON", "42", `"just a string"`} {
		_, ok := RepairJSON(raw)
		assert.False(t, ok, "输入 %q 不应修复成功", raw)
	}
}

// TestRepairJSONIdempotent 修复两次与修复一次结果一致
func TestRepairJSONIdempotent(t *testing.T) {
	inputs := []string{
		`{"a": [1, 2, "b`,
		"```json\n{\"name\": \"张伟\"}\n```",
		`{"name": "王强", "email":`,
		`前置说明 {"x": {"y": [`,
	}
	for _, raw := range inputs {
		once, ok := RepairJSON(raw)
		require.True(t, ok, "输入 %q 首次修复失败", raw)

		onceData, err := json.Marshal(once)
		require.NoError(t, err)

		twice, ok := RepairJSON(string(onceData))
		require.True(t, ok)
		twiceData, err := json.Marshal(twice)
		require.NoError(t, err)

		assert.JSONEq(t, string(onceData), string(twiceData), "输入 %q 修复不幂等", raw)
	}
}

// TestRepairJSONEscapedQuote 字符串内的转义引号不应干扰扫描
func TestRepairJSONEscapedQuote(t *testing.T) {
	tree, ok := RepairJSON(`{"desc": "他说\"你好\"", "n`)
	require.True(t, ok)

	obj := tree.(map[string]interface{})
	assert.Equal(t, `他说"你好"`, obj["desc"])
}

// TestRepairJSONNestedTruncation 深层嵌套截断按LIFO顺序补齐
func TestRepairJSONNestedTruncation(t *testing.T) {
	tree, ok := RepairJSON(`{"experience": [{"company": "Acme", "highlights": ["led`)
	require.True(t, ok)

	obj := tree.(map[string]interface{})
	exp, isList := obj["experience"].([]interface{})
	require.True(t, isList)
	require.Len(t, exp, 1)
	first := exp[0].(map[string]interface{})
	assert.Equal(t, "Acme", first["company"])
}

// TestPartialExtractFields 兜底提取只认高价值字段
func TestPartialExtractFields(t *testing.T) {
	raw := `完全坏掉的输出 "name": "赵敏" 其他乱码 "email": "zhao@example.com" "skills": ["Go", "K8s"] "garbage_field": "x"`
	partial := PartialExtract(raw)
	require.NotNil(t, partial)

	assert.Equal(t, "赵敏", partial["name"])
	assert.Equal(t, "zhao@example.com", partial["email"])
	skills, ok := partial["skills"].([]interface{})
	require.True(t, ok)
	assert.Len(t, skills, 2)
	_, hasGarbage := partial["garbage_field"]
	assert.False(t, hasGarbage)
}

// TestPartialExtractNothing 没有任何可识别字段时返回nil
func TestPartialExtractNothing(t *testing.T) {
	assert.Nil(t, PartialExtract("毫无结构的文本"))
	assert.Nil(t, PartialExtract(""))
}
