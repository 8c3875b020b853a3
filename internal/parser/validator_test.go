package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cv-agent-go/internal/types"
)

// TestNormalizeDraftBasic 标准形状的树应完整映射
func TestNormalizeDraftBasic(t *testing.T) {
	tree := map[string]interface{}{
		"identity": map[string]interface{}{
			"name":  "张伟",
			"email": "zhangwei@example.com",
		},
		"experience": []interface{}{
			map[string]interface{}{
				"job_title":  "高级工程师",
				"company":    "某某科技",
				"start_date": "2020",
				"end_date":   "至今",
			},
		},
		"skills": []interface{}{"Go", "Kubernetes"},
	}

	draft, err := NormalizeDraft(tree)
	require.NoError(t, err)

	assert.Equal(t, "张伟", draft.Identity.Name)
	require.Len(t, draft.Experience, 1)
	exp := draft.Experience[0]
	assert.Equal(t, "experience-1", exp.ID)
	assert.Equal(t, "高级工程师", exp.JobTitle)
	assert.True(t, exp.IsCurrent, "结束时间为至今时应识别为在职")
	assert.Empty(t, exp.EndDate, "在职标记应清空结束时间")
	assert.Equal(t, []string{"Go", "Kubernetes"}, draft.Skills)
}

// TestNormalizeDraftAlternateKeys 别名拼写应被收敛到标准字段
func TestNormalizeDraftAlternateKeys(t *testing.T) {
	tree := map[string]interface{}{
		"personal_info": map[string]interface{}{
			"full_name": "李娜",
			"mobile":    "13800001111",
		},
		"work_history": []interface{}{
			map[string]interface{}{
				"position": "产品经理",
				"employer": "示例公司",
			},
		},
		"educations": []interface{}{
			map[string]interface{}{
				"school": "某某大学",
				"major":  "计算机科学",
			},
		},
	}

	draft, err := NormalizeDraft(tree)
	require.NoError(t, err)

	assert.Equal(t, "李娜", draft.Identity.Name)
	assert.Equal(t, "13800001111", draft.Identity.Phone)
	require.Len(t, draft.Experience, 1)
	assert.Equal(t, "产品经理", draft.Experience[0].JobTitle)
	assert.Equal(t, "示例公司", draft.Experience[0].Company)
	require.Len(t, draft.Education, 1)
	assert.Equal(t, "某某大学", draft.Education[0].Institution)
	assert.Equal(t, "计算机科学", draft.Education[0].FieldOfStudy)
}

// TestNormalizeDraftFlatIdentity 顶层平铺的身份字段也应被接受
func TestNormalizeDraftFlatIdentity(t *testing.T) {
	tree := map[string]interface{}{
		"name":  "王强",
		"email": "wang@example.com",
	}

	draft, err := NormalizeDraft(tree)
	require.NoError(t, err)
	assert.Equal(t, "王强", draft.Identity.Name)
	assert.Equal(t, "wang@example.com", draft.Identity.Email)
}

// TestNormalizeDraftTopLevelArray 顶层数组视作经历列表
func TestNormalizeDraftTopLevelArray(t *testing.T) {
	tree := []interface{}{
		map[string]interface{}{"company": "Acme", "title": "Engineer"},
	}

	draft, err := NormalizeDraft(tree)
	require.NoError(t, err)
	require.Len(t, draft.Experience, 1)
	assert.Equal(t, "Acme", draft.Experience[0].Company)
}

// TestNormalizeDraftRejectsScalar 顶层标量是唯一的硬拒绝
func TestNormalizeDraftRejectsScalar(t *testing.T) {
	_, err := NormalizeDraft("just text")
	assert.ErrorIs(t, err, ErrTopLevelNotObject)

	_, err = NormalizeDraft(nil)
	assert.ErrorIs(t, err, ErrTopLevelNotObject)
}

// TestNormalizeDraftDefaults 缺失章节一律降级为空列表而不是报错
func TestNormalizeDraftDefaults(t *testing.T) {
	draft, err := NormalizeDraft(map[string]interface{}{})
	require.NoError(t, err)

	assert.NotNil(t, draft.Experience)
	assert.Empty(t, draft.Experience)
	assert.NotNil(t, draft.Education)
	assert.NotNil(t, draft.Skills)
	assert.NotNil(t, draft.Languages)
	assert.NotNil(t, draft.Projects)
	assert.NotNil(t, draft.Certifications)
}

// TestNormalizeDraftMalformedItems 类型不符的条目被跳过，不影响其余条目
func TestNormalizeDraftMalformedItems(t *testing.T) {
	tree := map[string]interface{}{
		"experience": []interface{}{
			"not an object",
			map[string]interface{}{"company": "Acme"},
			42.0,
		},
		"skills": "Go", // 键存在但不是列表
	}

	draft, err := NormalizeDraft(tree)
	require.NoError(t, err)
	require.Len(t, draft.Experience, 1)
	assert.Equal(t, "experience-2", draft.Experience[0].ID)
	assert.Empty(t, draft.Skills)
}

// TestNormalizeDraftIDAssignment 自带ID保留，缺失时按章节和序号生成
func TestNormalizeDraftIDAssignment(t *testing.T) {
	tree := map[string]interface{}{
		"education": []interface{}{
			map[string]interface{}{"institution": "甲大学", "id": "edu-custom"},
			map[string]interface{}{"institution": "乙大学"},
		},
	}

	draft, err := NormalizeDraft(tree)
	require.NoError(t, err)
	require.Len(t, draft.Education, 2)
	assert.Equal(t, "edu-custom", draft.Education[0].ID)
	assert.Equal(t, "education-2", draft.Education[1].ID)
}

// TestNormalizeDraftMetadata 无法归类的标量进metadata而不是被丢弃
func TestNormalizeDraftMetadata(t *testing.T) {
	tree := map[string]interface{}{
		"name":            "赵敏",
		"expected_salary": "30k",
	}

	draft, err := NormalizeDraft(tree)
	require.NoError(t, err)
	assert.Equal(t, "30k", draft.Metadata["expected_salary"])
}

// TestNormalizeDraftGenericSections 通用章节按固定键归类
func TestNormalizeDraftGenericSections(t *testing.T) {
	tree := map[string]interface{}{
		"awards": []interface{}{
			map[string]interface{}{"title": "优秀员工", "content": "2023年度"},
			"校级奖学金",
		},
	}

	draft, err := NormalizeDraft(tree)
	require.NoError(t, err)
	items := draft.Sections[types.SectionAwards]
	require.Len(t, items, 2)
	assert.Equal(t, "awards-1", items[0].ID)
	assert.Equal(t, "优秀员工", items[0].Title)
	assert.Equal(t, "校级奖学金", items[1].Content)
}

// TestMergeStageTree 阶段树叠加时已有键不被覆盖
func TestMergeStageTree(t *testing.T) {
	dst := map[string]interface{}{"identity": map[string]interface{}{"name": "先到"}}
	MergeStageTree(dst, map[string]interface{}{
		"identity":   map[string]interface{}{"name": "后到"},
		"experience": []interface{}{},
	})

	identity := dst["identity"].(map[string]interface{})
	assert.Equal(t, "先到", identity["name"])
	_, hasExp := dst["experience"]
	assert.True(t, hasExp)
}
