package processor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"cv-agent-go/internal/logger"
	"cv-agent-go/internal/tracing"
	"cv-agent-go/internal/types"
	"cv-agent-go/pkg/utils"
)

// ExtractRequest 一次提取请求。Strategy必须由调用方显式给出，
// 不存在进程级的默认流水线版本。
type ExtractRequest struct {
	SourceText     string
	OwnerID        string
	Strategy       types.PipelineStrategy
	TargetLanguage string
}

// RefineRequest 一次细化请求：自由文本指令加上用户已回答的补全项
type RefineRequest struct {
	Instructions   string
	Answers        []types.GapAnswer
	Strategy       types.PipelineStrategy
	TargetLanguage string
}

// Pipeline 两代流水线的统一入口，按请求执行
// EXTRACT → AUDIT → GAP_GENERATE → DONE 的状态机。
// EXTRACT失败对整个请求是致命的；之后任何一步失败都只做降级，
// 带着部分结果直接进入DONE。
type Pipeline struct {
	orchestrator *ExtractionOrchestrator
	auditor      *Auditor
	gapGen       *GapGenerator
	now          func() time.Time
}

// NewPipeline 创建流水线。auditor/gapGen为nil时使用默认实现。
func NewPipeline(orchestrator *ExtractionOrchestrator, auditor *Auditor, gapGen *GapGenerator) *Pipeline {
	if auditor == nil {
		auditor = NewAuditor()
	}
	if gapGen == nil {
		gapGen = NewGapGenerator()
	}
	return &Pipeline{
		orchestrator: orchestrator,
		auditor:      auditor,
		gapGen:       gapGen,
		now:          time.Now,
	}
}

// Extract 处理一次完整的提取请求。
// 返回错误仅表示请求本身不合法（策略未知、原文为空）；
// 提取失败通过结果中的 Failed/FailureDetail/LastRawResponse 表达。
func (p *Pipeline) Extract(ctx context.Context, req ExtractRequest) (*types.PipelineResult, error) {
	ctx, span := tracer.Start(ctx, "Pipeline.Extract")
	defer span.End()
	span.SetAttributes(attribute.String("pipeline.strategy", string(req.Strategy)))

	if strings.TrimSpace(req.SourceText) == "" {
		return nil, fmt.Errorf("提取请求的原文为空")
	}

	var (
		draft   *types.DraftRecord
		report  *types.ValidationReport
		results []types.StageResult
		err     error
	)
	switch req.Strategy {
	case types.StrategyCanonical:
		draft, report, results, err = p.orchestrator.Extract(ctx, req.SourceText, req.TargetLanguage)
	case types.StrategyLegacyFlat:
		draft, report, results, err = p.orchestrator.ExtractFlat(ctx, req.SourceText, req.TargetLanguage)
	default:
		return nil, fmt.Errorf("未知的流水线策略: %q", req.Strategy)
	}
	if err != nil {
		logger.Warn().
			Str("strategy", string(req.Strategy)).
			Str("error", err.Error()).
			Msg("提取请求失败")
		return &types.PipelineResult{
			Failed:          true,
			FailureDetail:   err.Error(),
			LastRawResponse: lastRawReply(results),
		}, nil
	}

	record := p.acceptDraft(draft, req.OwnerID)
	result := &types.PipelineResult{Record: record, Report: report}
	p.runAuditAndGaps(ctx, result)

	logger.Info().
		Str("record_id", record.ID).
		Str("candidate", tracing.MaskPII(record.Identity.Name)).
		Str("strategy", string(req.Strategy)).
		Int("completeness", report.Completeness).
		Int("gaps", len(result.Gaps)).
		Msg("提取请求完成")
	return result, nil
}

// Refine 处理一次细化请求：把指令和补全回答当作新的原文再提取一轮，
// 安全合并进已接受记录。细化永不致命——最坏情况返回原记录加告警。
func (p *Pipeline) Refine(ctx context.Context, accepted *types.CanonicalRecord, req RefineRequest) (*types.PipelineResult, error) {
	ctx, span := tracer.Start(ctx, "Pipeline.Refine")
	defer span.End()

	if accepted == nil {
		return nil, fmt.Errorf("细化请求缺少已接受记录")
	}
	if req.Strategy != types.StrategyCanonical && req.Strategy != types.StrategyLegacyFlat {
		return nil, fmt.Errorf("未知的流水线策略: %q", req.Strategy)
	}

	source := buildRefinementSource(req)
	result := &types.PipelineResult{}

	var draft *types.DraftRecord
	if strings.TrimSpace(source) == "" {
		result.Warnings = append(result.Warnings, "细化请求没有任何新内容")
	} else {
		var (
			report  *types.ValidationReport
			results []types.StageResult
			err     error
		)
		if req.Strategy == types.StrategyCanonical {
			draft, report, results, err = p.orchestrator.Extract(ctx, source, req.TargetLanguage)
		} else {
			draft, report, results, err = p.orchestrator.ExtractFlat(ctx, source, req.TargetLanguage)
		}
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeLLM)
			result.Warnings = append(result.Warnings, "细化提取失败，记录保持不变: "+err.Error())
			result.LastRawResponse = lastRawReply(results)
		} else {
			result.Report = report
		}
	}

	merged, warnings := SafeMerge(accepted, draft, p.now())
	result.Record = merged
	result.Warnings = append(result.Warnings, warnings...)
	p.runAuditAndGaps(ctx, result)

	logger.Info().
		Str("record_id", merged.ID).
		Int("version", merged.Version).
		Int("warnings", len(result.Warnings)).
		Msg("细化请求完成")
	return result, nil
}

// acceptDraft 首次接受：草稿升格为权威记录，分配标识、版本和指纹
func (p *Pipeline) acceptDraft(draft *types.DraftRecord, ownerID string) *types.CanonicalRecord {
	now := p.now()
	record := &types.CanonicalRecord{
		ID:            uuid.NewString(),
		OwnerID:       ownerID,
		Version:       1,
		RecordPayload: draft.RecordPayload,
		RawSourceText: draft.RawSourceText,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if record.Metadata == nil {
		record.Metadata = map[string]string{}
	}
	record.Metadata["source_fingerprint"] = utils.CalculateMD5([]byte(draft.RawSourceText))
	return record
}

// runAuditAndGaps 执行AUDIT和GAP_GENERATE两步。任一步失败都不致命：
// 对应输出置nil，告警上报，直接进入DONE。
func (p *Pipeline) runAuditAndGaps(ctx context.Context, result *types.PipelineResult) {
	_, span := tracer.Start(ctx, "Pipeline.runAuditAndGaps")
	defer span.End()

	audit, err := p.auditor.Audit(result.Record)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		result.Warnings = append(result.Warnings, "审计失败: "+err.Error())
		return
	}
	result.Audit = audit
	span.SetAttributes(attribute.Int("audit.overall_score", audit.OverallScore))

	gaps, err := p.gapGen.Generate(audit)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		result.Warnings = append(result.Warnings, "生成补全引导失败: "+err.Error())
		return
	}
	result.Gaps = gaps
}

// buildRefinementSource 把细化指令和补全回答拼成一段可供再次提取的文本
func buildRefinementSource(req RefineRequest) string {
	var sb strings.Builder
	if strings.TrimSpace(req.Instructions) != "" {
		sb.WriteString(strings.TrimSpace(req.Instructions))
		sb.WriteString("\n")
	}
	for _, ans := range req.Answers {
		if strings.TrimSpace(ans.UserInput) == "" {
			continue
		}
		sb.WriteString(ans.UserInput)
		sb.WriteString("\n")
	}
	return sb.String()
}

func lastRawReply(results []types.StageResult) string {
	for i := len(results) - 1; i >= 0; i-- {
		if results[i].RawReply != "" {
			return results[i].RawReply
		}
	}
	return ""
}
