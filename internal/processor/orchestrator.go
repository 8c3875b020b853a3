package processor

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"cv-agent-go/internal/constants"
	"cv-agent-go/internal/parser"
	"cv-agent-go/internal/tracing"
	"cv-agent-go/internal/types"
)

var tracer = otel.Tracer("cv-agent-go/internal/processor")

// ExtractionOrchestrator 按固定顺序串行执行各提取阶段，把阶段输出按位组装成
// 一份草稿记录，并对组装后的整体计算验证报告。
// 阶段之间严格串行：生成服务是限速资源，且后续阶段的提示词可能引用前面
// 阶段已确认的内容。
type ExtractionOrchestrator struct {
	executor        *StageExecutor
	stages          []StageDefinition
	languagePolicy  parser.LanguagePolicy
	minCompleteness int
}

// NewExtractionOrchestrator 创建编排器。stages为空时使用默认的五阶段划分。
func NewExtractionOrchestrator(executor *StageExecutor, stages []StageDefinition, policy parser.LanguagePolicy, minCompleteness int) *ExtractionOrchestrator {
	if len(stages) == 0 {
		stages = DefaultStages()
	}
	if minCompleteness <= 0 {
		minCompleteness = constants.DefaultMinCompleteness
	}
	return &ExtractionOrchestrator{
		executor:        executor,
		stages:          stages,
		languagePolicy:  policy,
		minCompleteness: minCompleteness,
	}
}

// DefaultStages 默认的阶段划分。每个阶段只负责记录的一部分，限制单次输出
// 规模以避免长文档下的截断；单个阶段彻底失败时对应章节降级为空。
func DefaultStages() []StageDefinition {
	return []StageDefinition{
		{
			Name:             constants.StagePersonalInfo,
			TokenBudget:      800,
			SourceCharBudget: 6000,
			BuildPrompt:      parser.BuildPersonalInfoPrompt,
			Accept:           acceptHasAnyKey("identity", "personal_info", "basic_info", "name", "email"),
		},
		{
			Name:             constants.StageWorkHistory,
			TokenBudget:      2000,
			SourceCharBudget: 12000,
			BuildPrompt:      parser.BuildWorkHistoryPrompt,
			Accept:           acceptHasAnyKey("experience", "work_experience", "work_history"),
		},
		{
			Name:             constants.StageEducationSkills,
			TokenBudget:      1500,
			SourceCharBudget: 12000,
			BuildPrompt:      parser.BuildEducationSkillsPrompt,
			Accept:           acceptHasAnyKey("education", "skills", "languages"),
		},
		{
			Name:             constants.StageProjectsCerts,
			TokenBudget:      1500,
			SourceCharBudget: 12000,
			BuildPrompt:      parser.BuildProjectsCertsPrompt,
			Accept:           acceptHasAnyKey("projects", "certifications"),
		},
		{
			Name:             constants.StageExtraSections,
			TokenBudget:      1500,
			SourceCharBudget: 12000,
			BuildPrompt:      parser.BuildExtraSectionsPrompt,
			Accept:           nil, // 补充章节允许完全为空
		},
	}
}

// FlatStage 第一代扁平提取对应的单阶段定义
func FlatStage() StageDefinition {
	return StageDefinition{
		Name:             constants.StageFlatExtract,
		TokenBudget:      4000,
		SourceCharBudget: 16000,
		BuildPrompt:      parser.BuildFlatExtractPrompt,
		Accept:           acceptHasAnyKey("identity", "personal_info", "basic_info", "experience", "education"),
	}
}

func acceptHasAnyKey(keys ...string) func(map[string]interface{}) bool {
	return func(tree map[string]interface{}) bool {
		for _, k := range keys {
			if _, ok := tree[k]; ok {
				return true
			}
		}
		return false
	}
}

// Extract 执行一次完整的分阶段提取。只有在所有阶段全部失败时才返回错误，
// 此时错误中携带最后一次原始回复以便诊断；个别阶段失败只会体现为
// 报告中的警告和对应章节为空。
func (o *ExtractionOrchestrator) Extract(ctx context.Context, source string, targetLang string) (*types.DraftRecord, *types.ValidationReport, []types.StageResult, error) {
	ctx, span := tracer.Start(ctx, "ExtractionOrchestrator.Extract")
	defer span.End()
	span.SetAttributes(
		attribute.Int("source.chars", len(source)),
		attribute.Int("stages.count", len(o.stages)),
	)

	popts := parser.PromptOptions{TargetLanguage: targetLang}

	merged := map[string]interface{}{}
	results := make([]types.StageResult, 0, len(o.stages))
	failedCount := 0
	for _, def := range o.stages {
		res := o.executor.RunStage(ctx, def, source, popts)
		results = append(results, res)
		if res.Failed {
			failedCount++
			continue
		}
		parser.MergeStageTree(merged, res.Tree)
	}

	if failedCount == len(o.stages) {
		err := NewAllStagesFailedError(fmt.Sprintf("%d个阶段全部失败", len(o.stages)))
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		return nil, nil, results, err
	}

	draft, err := parser.NormalizeDraft(merged)
	if err != nil {
		normErr := NewNormalizeError(err.Error())
		tracing.RecordError(span, normErr, tracing.ErrorTypeValidation)
		return nil, nil, results, normErr
	}
	draft.RawSourceText = source

	report := o.buildReport(draft, results)
	span.SetAttributes(attribute.Int("report.completeness", report.Completeness))
	return draft, report, results, nil
}

// ExtractFlat 第一代扁平提取：整篇文档一次调用
func (o *ExtractionOrchestrator) ExtractFlat(ctx context.Context, source string, targetLang string) (*types.DraftRecord, *types.ValidationReport, []types.StageResult, error) {
	ctx, span := tracer.Start(ctx, "ExtractionOrchestrator.ExtractFlat")
	defer span.End()

	popts := parser.PromptOptions{TargetLanguage: targetLang}
	res := o.executor.RunStage(ctx, FlatStage(), source, popts)
	results := []types.StageResult{res}
	if res.Failed {
		err := NewAllStagesFailedError("扁平提取失败")
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		return nil, nil, results, err
	}

	draft, err := parser.NormalizeDraft(res.Tree)
	if err != nil {
		return nil, nil, results, NewNormalizeError(err.Error())
	}
	draft.RawSourceText = source

	report := o.buildReport(draft, results)
	return draft, report, results, nil
}

// buildReport 对组装后的草稿整体计算完整度、告警和语言违规
func (o *ExtractionOrchestrator) buildReport(draft *types.DraftRecord, results []types.StageResult) *types.ValidationReport {
	report := &types.ValidationReport{
		Completeness: scoreCompleteness(draft.RecordPayload),
	}

	for _, res := range results {
		if res.Failed {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("阶段 %s 在%d次重试后失败，对应章节为空", res.Name, res.Retries))
		}
	}
	if draft.Identity.Name == "" {
		report.Warnings = append(report.Warnings, "未提取到候选人姓名")
	}
	if draft.Identity.Email == "" && draft.Identity.Phone == "" {
		report.Warnings = append(report.Warnings, "未提取到任何联系方式")
	}
	if len(draft.Experience) == 0 {
		report.Warnings = append(report.Warnings, "工作经历为空")
	}
	if len(draft.Education) == 0 {
		report.Warnings = append(report.Warnings, "教育经历为空")
	}

	report.LanguageViolations = parser.CheckLanguage(draft.RecordPayload, o.languagePolicy)
	report.IsComplete = report.Completeness >= o.minCompleteness && len(report.LanguageViolations) == 0
	return report
}

// scoreCompleteness 粗粒度的完整度评分，各章节按固定权重累加
func scoreCompleteness(p types.RecordPayload) int {
	score := 0
	if p.Identity.Name != "" {
		score += 10
	}
	if p.Identity.Email != "" || p.Identity.Phone != "" {
		score += 10
	}
	if p.Identity.Summary != "" {
		score += 10
	}
	if len(p.Experience) > 0 {
		score += 25
	}
	if len(p.Education) > 0 {
		score += 15
	}
	if len(p.Skills) > 0 {
		score += 15
	}
	if len(p.Projects) > 0 {
		score += 10
	}
	if len(p.Certifications) > 0 || len(p.Sections) > 0 {
		score += 5
	}
	return score
}
