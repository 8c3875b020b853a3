package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))
	return configPath
}

// TestLoadConfigFromFile 验证 YAML 配置能被完整加载，未给出的字段回填默认值
func TestLoadConfigFromFile(t *testing.T) {
	configPath := writeTempConfig(t, `
llm:
  api_key: "sk-test"
  model: "qwen-max"
  task_models:
    extract: "qwen-plus"
  temperature: 0.3
pipeline:
  stage_max_retries: 5
  min_completeness: 70
  retry_base_delay: "500ms"
language:
  target: "en"
  exempt_fields:
    - "identity.name"
`)

	config, err := LoadConfigFromFileOnly(configPath)
	require.NoError(t, err)
	require.NotNil(t, config)

	assert.Equal(t, "sk-test", config.LLM.APIKey)
	assert.Equal(t, "qwen-max", config.LLM.Model)
	assert.InDelta(t, 0.3, config.LLM.Temperature, 0.001)
	assert.Equal(t, 5, config.Pipeline.StageMaxRetries)
	assert.Equal(t, 70, config.Pipeline.MinCompleteness)
	assert.Equal(t, "en", config.Language.Target)
	assert.Equal(t, []string{"identity.name"}, config.Language.ExemptFields)

	// 未配置的字段回填默认值
	assert.NotEmpty(t, config.LLM.APIURL)
	assert.Equal(t, 4000, config.LLM.MaxTokens)
	assert.True(t, config.RegexFallbackEnabled())
}

// TestLoadConfigMissingFileUsesDefaults 文件不存在时得到可用的默认配置
func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	config, err := LoadConfig(filepath.Join(t.TempDir(), "nowhere.yaml"))
	require.NoError(t, err)
	require.NotNil(t, config)

	assert.Equal(t, "qwen-plus", config.LLM.Model)
	assert.Equal(t, 2, config.Pipeline.StageMaxRetries)
	assert.Equal(t, 50, config.Pipeline.MinCompleteness)
	assert.Equal(t, "zh", config.Language.Target)
}

// TestGetModelForTask 任务级模型覆盖全局模型
func TestGetModelForTask(t *testing.T) {
	config := createDefaultConfig()
	config.LLM.Model = "qwen-plus"
	config.LLM.TaskModels = map[string]string{"render": "qwen-max"}

	assert.Equal(t, "qwen-max", config.GetModelForTask("render"))
	assert.Equal(t, "qwen-plus", config.GetModelForTask("extract"))
	assert.Equal(t, "qwen-plus", config.GetModelForTask("unknown"))
}

// TestRegexFallbackEnabled 未配置视为开启，显式false才关闭
func TestRegexFallbackEnabled(t *testing.T) {
	config := createDefaultConfig()
	config.Pipeline.EnableRegexFallback = nil
	assert.True(t, config.RegexFallbackEnabled())

	off := false
	config.Pipeline.EnableRegexFallback = &off
	assert.False(t, config.RegexFallbackEnabled())

	on := true
	config.Pipeline.EnableRegexFallback = &on
	assert.True(t, config.RegexFallbackEnabled())
}

// TestGetDuration 非法时长字符串回退到默认值
func TestGetDuration(t *testing.T) {
	assert.Equal(t, 500*time.Millisecond, GetDuration("500ms", time.Second))
	assert.Equal(t, time.Second, GetDuration("not-a-duration", time.Second))
	assert.Equal(t, time.Second, GetDuration("", time.Second))
}

// TestApplyEnvOverrides 环境变量覆盖文件配置
func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("LLM_API_KEY", "sk-from-env")
	t.Setenv("LLM_MODEL", "qwen-turbo")

	config := createDefaultConfig()
	config.LLM.APIKey = "sk-from-file"
	applyEnvOverrides(config)

	assert.Equal(t, "sk-from-env", config.LLM.APIKey)
	assert.Equal(t, "qwen-turbo", config.LLM.Model)
}
