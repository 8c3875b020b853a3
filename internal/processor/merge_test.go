package processor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cv-agent-go/internal/types"
)

func acceptedRecord() *types.CanonicalRecord {
	return &types.CanonicalRecord{
		ID:      "rec-1",
		OwnerID: "user-1",
		Version: 1,
		RecordPayload: types.RecordPayload{
			Identity: types.Identity{
				Name:  "张伟",
				Email: "zhangwei@example.com",
			},
			Experience: []types.ExperienceItem{
				{
					ID:          "experience-1",
					JobTitle:    "高级工程师",
					Company:     "某某科技",
					StartDate:   "2020",
					Description: "负责支付网关",
				},
			},
			Education: []types.EducationItem{
				{ID: "education-1", Institution: "某某大学", Degree: "学士"},
			},
			Skills:    []string{"Go", "MySQL"},
			Languages: []string{"中文"},
		},
	}
}

// TestSafeMergeScalarNonOverwrite 已接受的非空标量永不被细化覆盖
func TestSafeMergeScalarNonOverwrite(t *testing.T) {
	accepted := acceptedRecord()
	draft := &types.DraftRecord{
		RecordPayload: types.RecordPayload{
			Identity: types.Identity{
				Name:  "别的名字",
				Email: "other@example.com",
				Phone: "13800001111",
			},
		},
	}

	merged, _ := SafeMerge(accepted, draft, time.Now())

	assert.Equal(t, "张伟", merged.Identity.Name)
	assert.Equal(t, "zhangwei@example.com", merged.Identity.Email)
	// 空字段被草稿补上
	assert.Equal(t, "13800001111", merged.Identity.Phone)
}

// TestSafeMergeSummaryIsScalar 个人简介按身份标量处理：
// 已有简介不被更长的草稿简介覆盖，为空时才补上
func TestSafeMergeSummaryIsScalar(t *testing.T) {
	accepted := acceptedRecord()
	accepted.Identity.Summary = "资深后端工程师"
	draft := &types.DraftRecord{
		RecordPayload: types.RecordPayload{
			Identity: types.Identity{
				Summary: "资深后端工程师，八年高并发服务经验，主导过多次核心系统改造",
			},
		},
	}

	merged, _ := SafeMerge(accepted, draft, time.Now())
	assert.Equal(t, "资深后端工程师", merged.Identity.Summary)

	accepted.Identity.Summary = ""
	merged, _ = SafeMerge(accepted, draft, time.Now())
	assert.Equal(t, "资深后端工程师，八年高并发服务经验，主导过多次核心系统改造", merged.Identity.Summary)
}

// TestSafeMergeNeverShrinks 合并后关键列表永不变短
func TestSafeMergeNeverShrinks(t *testing.T) {
	accepted := acceptedRecord()
	empty := &types.DraftRecord{}

	merged, _ := SafeMerge(accepted, empty, time.Now())

	assert.GreaterOrEqual(t, len(merged.Experience), len(accepted.Experience))
	assert.GreaterOrEqual(t, len(merged.Education), len(accepted.Education))
	assert.GreaterOrEqual(t, len(merged.Skills), len(accepted.Skills))
	assert.GreaterOrEqual(t, len(merged.Languages), len(accepted.Languages))
}

// TestSafeMergeNaturalKeyMatch 经历按公司+职位匹配，匹配上时逐字段填补
func TestSafeMergeNaturalKeyMatch(t *testing.T) {
	accepted := acceptedRecord()
	draft := &types.DraftRecord{
		RecordPayload: types.RecordPayload{
			Experience: []types.ExperienceItem{
				{
					ID:       "experience-1",
					JobTitle: "高级工程师",
					Company:  "某某科技",
					EndDate:  "2024",
					Location: "北京",
				},
				{
					ID:       "experience-1", // 与已接受条目撞ID的新经历
					JobTitle: "工程师",
					Company:  "另一家公司",
				},
			},
		},
	}

	merged, _ := SafeMerge(accepted, draft, time.Now())

	require.Len(t, merged.Experience, 2)
	assert.Equal(t, "2024", merged.Experience[0].EndDate)
	assert.Equal(t, "北京", merged.Experience[0].Location)
	assert.Equal(t, "2020", merged.Experience[0].StartDate)
	// 追加的新条目必须拿到不冲突的ID
	assert.NotEqual(t, merged.Experience[0].ID, merged.Experience[1].ID)
}

// TestSafeMergeDescriptionLongerWins 自由文本只在草稿严格更长时替换
func TestSafeMergeDescriptionLongerWins(t *testing.T) {
	accepted := acceptedRecord()

	shorter := &types.DraftRecord{
		RecordPayload: types.RecordPayload{
			Experience: []types.ExperienceItem{
				{JobTitle: "高级工程师", Company: "某某科技", Description: "短"},
			},
		},
	}
	merged, _ := SafeMerge(accepted, shorter, time.Now())
	assert.Equal(t, "负责支付网关", merged.Experience[0].Description)

	longer := &types.DraftRecord{
		RecordPayload: types.RecordPayload{
			Experience: []types.ExperienceItem{
				{JobTitle: "高级工程师", Company: "某某科技", Description: "负责支付网关的架构设计、容量规划与日常维护"},
			},
		},
	}
	merged, _ = SafeMerge(accepted, longer, time.Now())
	assert.Equal(t, "负责支付网关的架构设计、容量规划与日常维护", merged.Experience[0].Description)
}

// TestSafeMergeSkillsUnion 技能做大小写不敏感并集，永不移除
func TestSafeMergeSkillsUnion(t *testing.T) {
	accepted := acceptedRecord()
	draft := &types.DraftRecord{
		RecordPayload: types.RecordPayload{
			Skills: []string{"go", "Kubernetes", "MYSQL"},
		},
	}

	merged, _ := SafeMerge(accepted, draft, time.Now())

	assert.Equal(t, []string{"Go", "MySQL", "Kubernetes"}, merged.Skills)
}

// TestSafeMergeVersionBump 每次合并产生新版本并刷新更新时间
func TestSafeMergeVersionBump(t *testing.T) {
	accepted := acceptedRecord()
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	merged, _ := SafeMerge(accepted, &types.DraftRecord{}, now)

	assert.Equal(t, 2, merged.Version)
	assert.Equal(t, now, merged.UpdatedAt)
	// 原记录不被原地修改
	assert.Equal(t, 1, accepted.Version)
}

// TestSafeMergeNilDraft 空草稿返回原记录加告警，永不报错
func TestSafeMergeNilDraft(t *testing.T) {
	accepted := acceptedRecord()
	merged, warnings := SafeMerge(accepted, nil, time.Now())

	require.NotNil(t, merged)
	assert.NotEmpty(t, warnings)
	assert.Equal(t, accepted.Identity, merged.Identity)
}

// TestSafeMergeGenericSectionsByID 通用章节以ID为连接键
func TestSafeMergeGenericSectionsByID(t *testing.T) {
	accepted := acceptedRecord()
	accepted.Sections = map[types.GenericSectionKey][]types.GenericItem{
		types.SectionAwards: {{ID: "awards-1", Title: "优秀员工", Content: "2023"}},
	}
	draft := &types.DraftRecord{
		RecordPayload: types.RecordPayload{
			Sections: map[types.GenericSectionKey][]types.GenericItem{
				types.SectionAwards: {
					{ID: "awards-1", Content: "2023年度，全公司仅十人获评"},
					{ID: "awards-2", Title: "专利奖"},
				},
			},
		},
	}

	merged, _ := SafeMerge(accepted, draft, time.Now())

	items := merged.Sections[types.SectionAwards]
	require.Len(t, items, 2)
	assert.Equal(t, "优秀员工", items[0].Title)
	assert.Equal(t, "2023年度，全公司仅十人获评", items[0].Content, "更长的内容应胜出")
}

// TestRollbackRegressions 任一关键列表变短时整段回滚并记告警
func TestRollbackRegressions(t *testing.T) {
	accepted := acceptedRecord()
	shrunk := accepted.Clone()
	shrunk.Experience = nil
	shrunk.Skills = shrunk.Skills[:1]

	warnings := rollbackRegressions(shrunk, accepted)

	assert.Len(t, warnings, 2)
	assert.Len(t, shrunk.Experience, len(accepted.Experience))
	assert.Len(t, shrunk.Skills, len(accepted.Skills))
}
