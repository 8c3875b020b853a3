package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config 应用程序配置
type Config struct {
	// 生成服务配置
	LLM LLMConfig `yaml:"llm"`

	// 提取流水线配置
	Pipeline PipelineConfig `yaml:"pipeline"`

	// 语言策略配置
	Language LanguageConfig `yaml:"language"`

	// 日志配置
	Logger LoggerConfig `yaml:"logger"`
}

// LLMConfig 生成服务（OpenAI兼容接口）配置
type LLMConfig struct {
	APIKey         string            `yaml:"api_key"`
	APIURL         string            `yaml:"api_url"`
	Model          string            `yaml:"model"`
	TaskModels     map[string]string `yaml:"task_models"` // 任务专用模型
	Temperature    float64           `yaml:"temperature"`
	MaxTokens      int               `yaml:"max_tokens"`      // 未被阶段预算覆盖时的缺省输出上限
	TimeoutSeconds int               `yaml:"timeout_seconds"` // 单次调用超时(秒)
}

// PipelineConfig 提取流水线配置
type PipelineConfig struct {
	StageMaxRetries     int    `yaml:"stage_max_retries"`     // 首次之外的额外重试次数
	EnableRegexFallback *bool  `yaml:"enable_regex_fallback"` // 是否启用正则兜底提取
	MinCompleteness     int    `yaml:"min_completeness"`      // 完整度阈值(0-100)
	RetryBaseDelay      string `yaml:"retry_base_delay"`      // 首次重试的退避时长，例如 "2s"
}

// LanguageConfig 语言策略配置
type LanguageConfig struct {
	Target       string   `yaml:"target"`        // 目标语言，例如 "zh"、"en"
	ExemptFields []string `yaml:"exempt_fields"` // 豁免语言检查的字段路径
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level        string `yaml:"level"`         // debug, info, warn, error
	Format       string `yaml:"format"`        // json, pretty
	TimeFormat   string `yaml:"time_format"`   // 时间格式
	ReportCaller bool   `yaml:"report_caller"` // 是否报告调用位置
}

// LoadConfig 从文件加载配置。未指定路径时在常见位置查找；
// 环境变量中的密钥和地址覆盖文件内容。
func LoadConfig(configPath string) (*Config, error) {
	// .env 存在时先加载，覆盖逻辑与普通环境变量一致
	_ = godotenv.Load()

	if configPath == "" {
		searchPaths := []string{
			"config.yaml",
			"./config.yaml",
			"../config.yaml",
			"../../config.yaml",
			filepath.Join(os.Getenv("HOME"), ".cv-agent", "config.yaml"),
		}

		execPath, err := os.Executable()
		if err == nil {
			execDir := filepath.Dir(execPath)
			searchPaths = append(searchPaths, filepath.Join(execDir, "config.yaml"))
			searchPaths = append(searchPaths, filepath.Join(execDir, "..", "config.yaml"))
		}

		for _, path := range searchPaths {
			if _, err := os.Stat(path); err == nil {
				configPath = path
				break
			}
		}

		// 测试环境下找不到配置文件时使用默认配置
		if configPath == "" {
			if inTestRun() {
				return createDefaultConfig(), nil
			}
			configPath = "config.yaml"
		}
	}

	if _, err := os.Stat(configPath); err != nil {
		if inTestRun() {
			return createDefaultConfig(), nil
		}
		return nil, fmt.Errorf("配置文件不存在: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	applyEnvOverrides(&config)
	applyDefaults(&config)
	return &config, nil
}

// LoadConfigFromFileOnly 只从文件加载配置，不做环境变量覆盖
func LoadConfigFromFileOnly(configPath string) (*Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("必须提供配置文件路径")
	}
	if _, err := os.Stat(configPath); err != nil {
		return nil, fmt.Errorf("配置文件不存在: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	applyDefaults(&config)
	return &config, nil
}

func applyEnvOverrides(config *Config) {
	if envKey := os.Getenv("LLM_API_KEY"); envKey != "" {
		config.LLM.APIKey = envKey
	}
	if envURL := os.Getenv("LLM_API_URL"); envURL != "" {
		config.LLM.APIURL = envURL
	}
	if envModel := os.Getenv("LLM_MODEL"); envModel != "" {
		config.LLM.Model = envModel
	}
}

func applyDefaults(config *Config) {
	if config.LLM.APIURL == "" {
		config.LLM.APIURL = "https://dashscope.aliyuncs.com/compatible-mode/v1/chat/completions"
	}
	if config.LLM.Model == "" {
		config.LLM.Model = "qwen-plus"
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.1
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 4000
	}
	if config.LLM.TimeoutSeconds == 0 {
		config.LLM.TimeoutSeconds = 60
	}

	if config.Pipeline.StageMaxRetries == 0 {
		config.Pipeline.StageMaxRetries = 2
	}
	if config.Pipeline.EnableRegexFallback == nil {
		enabled := true
		config.Pipeline.EnableRegexFallback = &enabled
	}
	if config.Pipeline.MinCompleteness == 0 {
		config.Pipeline.MinCompleteness = 50
	}
	if config.Pipeline.RetryBaseDelay == "" {
		config.Pipeline.RetryBaseDelay = "2s"
	}

	if config.Language.Target == "" {
		config.Language.Target = "zh"
	}
	if len(config.Language.ExemptFields) == 0 {
		config.Language.ExemptFields = []string{"identity.name", "identity.location"}
	}

	if config.Logger.Level == "" {
		config.Logger.Level = "info"
	}
	if config.Logger.Format == "" {
		config.Logger.Format = "json"
	}
}

// 创建一个默认配置，用于测试环境
func createDefaultConfig() *Config {
	config := &Config{}
	applyDefaults(config)

	config.Logger.Format = "pretty" // 开发环境默认使用美化输出
	config.Logger.TimeFormat = "2006-01-02 15:04:05"
	config.Logger.ReportCaller = true

	if envKey := os.Getenv("LLM_API_KEY"); envKey != "" {
		config.LLM.APIKey = envKey
	} else {
		config.LLM.APIKey = "test_api_key"
	}
	return config
}

// CreateSampleConfig 创建一个示例配置文件
func CreateSampleConfig(filePath string) error {
	if _, err := os.Stat(filePath); err == nil {
		return fmt.Errorf("文件 '%s' 已存在，不会覆盖", filePath)
	}

	config := createDefaultConfig()
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("写入示例配置文件 '%s' 失败: %w", filePath, err)
	}
	return nil
}

// GetModelForTask 根据任务名称获取合适的模型。
// 任务专用模型存在则返回专用模型，否则返回默认模型。
func (c *Config) GetModelForTask(taskName string) string {
	if c.LLM.TaskModels != nil {
		if model, ok := c.LLM.TaskModels[taskName]; ok && model != "" {
			return model
		}
	}
	return c.LLM.Model
}

// GetDuration 解析配置中的时长字符串，非法或为空时返回默认值
func GetDuration(durationStr string, defaultDuration time.Duration) time.Duration {
	if durationStr == "" {
		return defaultDuration
	}
	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return defaultDuration
	}
	return d
}

// RegexFallbackEnabled 正则兜底是否启用
func (c *Config) RegexFallbackEnabled() bool {
	return c.Pipeline.EnableRegexFallback == nil || *c.Pipeline.EnableRegexFallback
}

func inTestRun() bool {
	for _, arg := range os.Args {
		if strings.Contains(arg, "test") {
			return true
		}
	}
	return false
}
