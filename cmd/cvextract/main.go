package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/spf13/pflag"

	"cv-agent-go/internal/agent"
	"cv-agent-go/internal/config"
	"cv-agent-go/internal/constants"
	"cv-agent-go/internal/logger"
	"cv-agent-go/internal/parser"
	"cv-agent-go/internal/processor"
	"cv-agent-go/internal/types"
)

// 命令行参数
var (
	configPath string
	inputPath  string
	ownerID    string
	strategy   string
	targetLang string
	doRender   bool
	useMock    bool
)

func main() {
	pflag.StringVarP(&configPath, "config", "c", "", "配置文件路径，留空时在常见位置查找")
	pflag.StringVarP(&inputPath, "input", "i", "", "简历文本文件路径 (必填)")
	pflag.StringVar(&ownerID, "owner", "", "记录归属的用户标识")
	pflag.StringVar(&strategy, "strategy", string(types.StrategyCanonical), "流水线策略: canonical 或 legacy_flat")
	pflag.StringVar(&targetLang, "lang", "", "目标语言，留空时使用配置值")
	pflag.BoolVar(&doRender, "render", false, "提取后把记录渲染成文本")
	pflag.BoolVar(&useMock, "mock", false, "使用模拟生成服务（离线演练）")
	pflag.Parse()

	if inputPath == "" {
		fmt.Fprintln(os.Stderr, "错误: 必须通过 --input 指定简历文本文件")
		pflag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	})

	source, err := os.ReadFile(inputPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", inputPath).Msg("读取简历文本失败")
	}

	llmModel, err := buildModel(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化生成服务客户端失败")
	}

	lang := targetLang
	if lang == "" {
		lang = cfg.Language.Target
	}

	executor := processor.NewStageExecutor(llmModel,
		processor.WithMaxRetries(cfg.Pipeline.StageMaxRetries),
		processor.WithCallTimeout(time.Duration(cfg.LLM.TimeoutSeconds)*time.Second),
		processor.WithRetryBaseDelay(config.GetDuration(cfg.Pipeline.RetryBaseDelay, 2*time.Second)),
		processor.WithRegexFallback(cfg.RegexFallbackEnabled()),
	)
	policy := parser.LanguagePolicy{
		Target:       lang,
		ExemptFields: cfg.Language.ExemptFields,
	}
	orchestrator := processor.NewExtractionOrchestrator(executor, nil, policy, cfg.Pipeline.MinCompleteness)
	pipeline := processor.NewPipeline(orchestrator, nil, nil)

	ctx := logger.WithContext(context.Background())
	result, err := pipeline.Extract(ctx, processor.ExtractRequest{
		SourceText:     string(source),
		OwnerID:        ownerID,
		Strategy:       types.PipelineStrategy(strategy),
		TargetLanguage: lang,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("提取请求不合法")
	}
	if result.Failed {
		logger.Error().Str("detail", result.FailureDetail).Msg("提取失败")
		printJSON(result)
		os.Exit(1)
	}

	printJSON(result)

	if doRender {
		renderer := parser.NewRecordRenderer(llmModel, time.Duration(cfg.LLM.TimeoutSeconds)*time.Second)
		text := renderer.Render(ctx, result.Record, parser.PromptOptions{TargetLanguage: lang})
		fmt.Println("\n--- 渲染结果 ---")
		fmt.Println(text)
	}
}

// buildModel 按配置构造生成服务客户端；--mock 时返回离线模拟实现
func buildModel(cfg *config.Config) (model.ToolCallingChatModel, error) {
	if useMock {
		return agent.NewMockChatClient(`{"identity":{"name":"演示用户"}}`, nil), nil
	}
	return agent.NewQwenChatModel(
		cfg.LLM.APIKey,
		cfg.GetModelForTask(constants.TaskExtract),
		cfg.LLM.APIURL,
		agent.WithTemperature(cfg.LLM.Temperature),
	)
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logger.Error().Err(err).Msg("序列化结果失败")
		return
	}
	fmt.Println(string(data))
}
