package processor

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cv-agent-go/internal/agent"
	"cv-agent-go/internal/parser"
)

// 五阶段按顺序的脚本响应
func scriptedStageResponses() []agent.MockResponse {
	return []agent.MockResponse{
		{Content: `{"identity": {"name": "张伟", "email": "zhangwei@example.com"}}`},
		{Content: `{"experience": [{"job_title": "高级工程师", "company": "某某科技", "start_date": "2020", "end_date": "至今"}]}`},
		{Content: `{"education": [{"institution": "某某大学", "degree": "学士"}], "skills": ["Go", "MySQL"]}`},
		{Content: `{"projects": [], "certifications": []}`},
		{Content: `{"awards": [{"title": "优秀员工"}]}`},
	}
}

func newTestOrchestrator(mock *agent.MockChatClient) *ExtractionOrchestrator {
	executor := NewStageExecutor(mock,
		WithMaxRetries(0),
		WithRetryBaseDelay(time.Millisecond),
		WithRegexFallback(false),
	)
	return NewExtractionOrchestrator(executor, nil, parser.LanguagePolicy{}, 0)
}

// TestExtractAssemblesStages 各阶段输出按位组装成一份草稿
func TestExtractAssemblesStages(t *testing.T) {
	mock := agent.NewMockChatClientSequential(scriptedStageResponses())
	o := newTestOrchestrator(mock)

	draft, report, results, err := o.Extract(context.Background(), "简历原文", "")
	require.NoError(t, err)
	require.NotNil(t, draft)

	assert.Equal(t, "张伟", draft.Identity.Name)
	require.Len(t, draft.Experience, 1)
	assert.True(t, draft.Experience[0].IsCurrent)
	require.Len(t, draft.Education, 1)
	assert.Equal(t, []string{"Go", "MySQL"}, draft.Skills)
	assert.NotEmpty(t, draft.Sections)
	assert.Equal(t, "简历原文", draft.RawSourceText)

	assert.Len(t, results, 5)
	assert.Greater(t, report.Completeness, 0)
}

// TestExtractStageIsolation 教育/技能阶段失败时，其余阶段照常产出，
// 对应章节降级为空并记录阶段失败
func TestExtractStageIsolation(t *testing.T) {
	responses := scriptedStageResponses()
	responses[2] = agent.MockResponse{Content: `{"nothing_recognizable": true}`} // 被验收谓词拒绝
	mock := agent.NewMockChatClientSequential(responses)
	o := newTestOrchestrator(mock)

	draft, report, results, err := o.Extract(context.Background(), "简历原文", "")
	require.NoError(t, err)

	assert.Equal(t, "张伟", draft.Identity.Name)
	require.Len(t, draft.Experience, 1)
	assert.Empty(t, draft.Education)
	assert.Empty(t, draft.Skills)

	var failed int
	for _, res := range results {
		if res.Failed {
			failed++
			assert.Equal(t, "education_skills", res.Name)
		}
	}
	assert.Equal(t, 1, failed)

	foundWarning := false
	for _, w := range report.Warnings {
		if strings.Contains(w, "education_skills") {
			foundWarning = true
		}
	}
	assert.True(t, foundWarning, "报告应包含阶段失败警告")
}

// TestExtractAllStagesFailed 所有阶段失败才是致命错误
func TestExtractAllStagesFailed(t *testing.T) {
	responses := make([]agent.MockResponse, 5)
	for i := range responses {
		responses[i] = agent.MockResponse{Content: "不是JSON"}
	}
	mock := agent.NewMockChatClientSequential(responses)
	o := newTestOrchestrator(mock)

	draft, _, results, err := o.Extract(context.Background(), "简历原文", "")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllStagesFailed)
	assert.Nil(t, draft)
	assert.Len(t, results, 5)
	assert.NotEmpty(t, results[0].RawReply)
}

// TestExtractFlat 扁平提取一次调用走完整个规范化
func TestExtractFlat(t *testing.T) {
	mock := agent.NewMockChatClient(`{
		"identity": {"name": "李娜"},
		"experience": [{"job_title": "产品经理", "company": "示例公司"}],
		"skills": ["需求分析"]
	}`, nil)
	o := newTestOrchestrator(mock)

	draft, report, results, err := o.ExtractFlat(context.Background(), "原文", "")
	require.NoError(t, err)

	assert.Equal(t, 1, mock.CallCount())
	assert.Equal(t, "李娜", draft.Identity.Name)
	require.Len(t, results, 1)
	assert.Equal(t, "flat_extract", results[0].Name)
	assert.NotNil(t, report)
}

// TestBuildReportCompleteness 完整度阈值与语言违规共同决定是否完整
func TestBuildReportCompleteness(t *testing.T) {
	mock := agent.NewMockChatClientSequential(scriptedStageResponses())
	o := newTestOrchestrator(mock)

	draft, report, _, err := o.Extract(context.Background(), "简历原文", "")
	require.NoError(t, err)
	require.NotNil(t, draft)

	// name+contact+experience+education+skills = 10+10+25+15+15，加上章节5分
	assert.GreaterOrEqual(t, report.Completeness, 75)
	assert.True(t, report.IsComplete)
}
