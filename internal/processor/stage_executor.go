package processor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel/attribute"

	"cv-agent-go/internal/logger"
	"cv-agent-go/internal/parser"
	"cv-agent-go/internal/tracing"
	"cv-agent-go/internal/types"
)

// StageDefinition 一个有界的提取子任务：独立的提示词、token预算和验收条件
type StageDefinition struct {
	Name             string
	TokenBudget      int
	SourceCharBudget int
	BuildPrompt      func(opts parser.PromptOptions) string
	// Accept 对修复解析后的树做验收；返回false触发重试
	Accept func(tree map[string]interface{}) bool
}

// StageExecutor 逐阶段调用生成服务：每次调用带超时，失败时在重试上限内
// 退避重试，超限后该阶段记为失败，不中断整个提取
type StageExecutor struct {
	llmModel       model.ToolCallingChatModel
	maxRetries     int // 首次之外的额外重试次数
	callTimeout    time.Duration
	retryBaseDelay time.Duration
	enableFallback bool // 是否启用正则兜底提取
}

// StageExecutorOption 执行器的配置选项
type StageExecutorOption func(*StageExecutor)

// WithMaxRetries 设置额外重试次数上限
func WithMaxRetries(n int) StageExecutorOption {
	return func(e *StageExecutor) {
		if n >= 0 {
			e.maxRetries = n
		}
	}
}

// WithCallTimeout 设置单次生成调用的超时
func WithCallTimeout(d time.Duration) StageExecutorOption {
	return func(e *StageExecutor) {
		if d > 0 {
			e.callTimeout = d
		}
	}
}

// WithRetryBaseDelay 设置首次重试的退避时长，之后逐次翻倍
func WithRetryBaseDelay(d time.Duration) StageExecutorOption {
	return func(e *StageExecutor) {
		if d > 0 {
			e.retryBaseDelay = d
		}
	}
}

// WithRegexFallback 控制是否启用正则兜底提取
func WithRegexFallback(enabled bool) StageExecutorOption {
	return func(e *StageExecutor) {
		e.enableFallback = enabled
	}
}

// NewStageExecutor 创建阶段执行器
func NewStageExecutor(llmModel model.ToolCallingChatModel, options ...StageExecutorOption) *StageExecutor {
	executor := &StageExecutor{
		llmModel:       llmModel,
		maxRetries:     2,
		callTimeout:    60 * time.Second,
		retryBaseDelay: 2 * time.Second,
		enableFallback: true,
	}
	for _, opt := range options {
		opt(executor)
	}
	return executor
}

// RunStage 执行单个阶段。返回值中 Failed=true 表示该阶段在重试耗尽后仍然失败，
// 此时 Tree 为nil，调用方应将对应章节降级为空而不是放弃整个提取。
func (e *StageExecutor) RunStage(ctx context.Context, def StageDefinition, source string, popts parser.PromptOptions) types.StageResult {
	ctx, span := tracer.Start(ctx, "StageExecutor.RunStage")
	defer span.End()
	span.SetAttributes(attribute.String("stage.name", def.Name))

	result := types.StageResult{Name: def.Name}
	start := time.Now()

	systemPrompt := def.BuildPrompt(popts)
	userPrompt := parser.BoundSource(source, def.SourceCharBudget)
	span.SetAttributes(
		attribute.String("stage.prompt", tracing.SafePrompt(systemPrompt)),
		attribute.String("stage.source", tracing.SafeSourceContent(userPrompt)),
	)

	delay := e.retryBaseDelay
	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				lastErr = NewServiceError(def.Name, fmt.Sprintf("上下文已取消: %v", ctx.Err()))
			case <-time.After(delay):
				delay *= 2
			}
			if ctx.Err() != nil {
				break
			}
			result.Retries = attempt
		}

		raw, err := e.callModel(ctx, def, systemPrompt, userPrompt)
		if raw != "" {
			result.RawReply = raw
		}
		if err != nil {
			lastErr = NewServiceError(def.Name, err.Error())
			if !isRetryableError(err) {
				break
			}
			continue
		}

		tree, ok := parser.RepairJSON(raw)
		if !ok {
			lastErr = NewParseError(def.Name, tracing.TruncateString(raw, tracing.MaxReplyLength))
			continue
		}
		obj, isObj := tree.(map[string]interface{})
		if !isObj {
			lastErr = NewParseError(def.Name, "阶段输出的顶层不是对象")
			continue
		}
		if def.Accept != nil && !def.Accept(obj) {
			lastErr = NewStageRejectedError(def.Name, "")
			continue
		}

		result.Tree = obj
		e.logStage(result, start, nil)
		return result
	}

	// 重试耗尽。允许的话用正则兜底抢救若干高价值字段
	if e.enableFallback && result.RawReply != "" {
		if partial := parser.PartialExtract(result.RawReply); partial != nil {
			if def.Accept == nil || def.Accept(partial) {
				result.Tree = partial
				e.logStage(result, start, nil)
				return result
			}
		}
	}

	result.Failed = true
	if lastErr != nil {
		result.ErrorMsg = lastErr.Error()
		tracing.RecordErrorWithInfo(span, lastErr, tracing.ErrorTypeLLM,
			attribute.String("stage.raw_reply", tracing.TruncateString(result.RawReply, tracing.MaxReplyLength)))
	}
	e.logStage(result, start, lastErr)
	return result
}

func (e *StageExecutor) callModel(ctx context.Context, def StageDefinition, systemPrompt, userPrompt string) (string, error) {
	if e.llmModel == nil {
		return "", fmt.Errorf("生成服务客户端未初始化")
	}

	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	var opts []model.Option
	if def.TokenBudget > 0 {
		opts = append(opts, model.WithMaxTokens(def.TokenBudget))
	}
	resp, err := e.llmModel.Generate(callCtx, []*einoschema.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}, opts...)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// logStage 每个阶段结束时输出恰好一条日志，包含成败与重试次数
func (e *StageExecutor) logStage(result types.StageResult, start time.Time, err error) {
	event := logger.Info()
	if result.Failed {
		event = logger.Warn()
	}
	event = event.
		Str("stage", result.Name).
		Bool("ok", !result.Failed).
		Int("retries", result.Retries).
		Dur("elapsed", time.Since(start))
	if err != nil {
		event = event.Str("error", tracing.TruncateString(err.Error(), 200))
	}
	event.Msg("提取阶段完成")
}

// isRetryableError 判断错误是否应该重试
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "EOF") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "no such host")
}
