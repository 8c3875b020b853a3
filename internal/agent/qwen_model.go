package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"cv-agent-go/internal/logger"
	"cv-agent-go/internal/tracing"
)

const (
	// DashScope的OpenAI兼容端点
	openAICompatibleQwenAPIURL = "https://dashscope.aliyuncs.com/compatible-mode/v1/chat/completions"
	defaultQwenModelName       = "qwen-plus"
)

// QwenChatModel 通过OpenAI兼容接口调用通义千问，实现 model.ToolCallingChatModel。
// 提取任务只用到 Generate；每次调用可以通过eino的调用选项覆盖模型名、
// 温度和输出token上限。
type QwenChatModel struct {
	apiKey      string
	modelName   string
	apiURL      string
	temperature float64
	jsonMode    bool
	httpClient  *http.Client
}

// QwenOption 客户端配置选项
type QwenOption func(*QwenChatModel)

// WithTemperature 设置默认采样温度
func WithTemperature(t float64) QwenOption {
	return func(m *QwenChatModel) {
		m.temperature = t
	}
}

// WithJSONMode 要求服务端强制输出JSON对象
func WithJSONMode(enabled bool) QwenOption {
	return func(m *QwenChatModel) {
		m.jsonMode = enabled
	}
}

// WithHTTPClient 替换底层HTTP客户端
func WithHTTPClient(c *http.Client) QwenOption {
	return func(m *QwenChatModel) {
		if c != nil {
			m.httpClient = c
		}
	}
}

// NewQwenChatModel 创建通义千问客户端
func NewQwenChatModel(apiKey string, modelName string, apiURL string, opts ...QwenOption) (*QwenChatModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("API密钥不能为空")
	}
	if strings.TrimSpace(modelName) == "" {
		modelName = defaultQwenModelName
	}
	if strings.TrimSpace(apiURL) == "" {
		apiURL = openAICompatibleQwenAPIURL
	}

	m := &QwenChatModel{
		apiKey:      apiKey,
		modelName:   modelName,
		apiURL:      apiURL,
		temperature: 0.1,
		jsonMode:    true,
		httpClient:  &http.Client{},
	}
	for _, opt := range opts {
		opt(m)
	}

	logger.Info().
		Str("api_url", m.apiURL).
		Str("model", m.modelName).
		Msg("通义千问客户端已初始化")
	return m, nil
}

// --- OpenAI兼容的请求/响应结构 ---

type openAIResponseFormat struct {
	Type string `json:"type"` // "json_object" 或 "text"
}

type openAIChatCompletionRequest struct {
	Model          string                `json:"model"`
	Messages       []*schema.Message     `json:"messages"`
	Temperature    float64               `json:"temperature"`
	MaxTokens      int                   `json:"max_tokens,omitempty"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIMessage struct {
	Role    string  `json:"role"`
	Content *string `json:"content"`
}

type openAIChatChoice struct {
	Index        int           `json:"index"`
	Message      openAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openAICompletionResponse struct {
	Id      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []openAIChatChoice `json:"choices"`
}

// Generate 实现 model.BaseChatModel 接口
func (m *QwenChatModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	commonOpts := model.GetCommonOptions(&model.Options{}, options...)

	modelName := m.modelName
	if commonOpts.Model != nil && *commonOpts.Model != "" {
		modelName = *commonOpts.Model
	}
	temperature := m.temperature
	if commonOpts.Temperature != nil {
		temperature = float64(*commonOpts.Temperature)
	}

	reqPayload := openAIChatCompletionRequest{
		Model:       modelName,
		Messages:    messages,
		Temperature: temperature,
	}
	if commonOpts.MaxTokens != nil && *commonOpts.MaxTokens > 0 {
		reqPayload.MaxTokens = *commonOpts.MaxTokens
	}
	if m.jsonMode {
		reqPayload.ResponseFormat = &openAIResponseFormat{Type: "json_object"}
	}

	jsonData, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("序列化请求体失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+m.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	logger.Debug().
		Str("model", modelName).
		Int("max_tokens", reqPayload.MaxTokens).
		Int("messages", len(messages)).
		Msg("发送生成请求")

	httpResp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("发送HTTP请求失败: %w", err)
	}
	defer httpResp.Body.Close()

	bodyBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API请求失败，状态 %s: %s", httpResp.Status, tracing.TruncateString(string(bodyBytes), 300))
	}

	var openAIResp openAICompletionResponse
	if err := json.Unmarshal(bodyBytes, &openAIResp); err != nil {
		return nil, fmt.Errorf("反序列化API响应失败: %w", err)
	}
	if len(openAIResp.Choices) == 0 {
		return nil, fmt.Errorf("从API收到空选项: %s", tracing.TruncateString(string(bodyBytes), 300))
	}

	apiMessage := openAIResp.Choices[0].Message
	content := ""
	if apiMessage.Content != nil {
		content = *apiMessage.Content
	}

	role := schema.RoleType(apiMessage.Role)
	if role == "" {
		role = schema.Assistant
	}
	return &schema.Message{Role: role, Content: content}, nil
}

// Stream 实现 model.BaseChatModel 接口。提取流程不走流式，未实现。
func (m *QwenChatModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("QwenChatModel 的 Stream 方法未实现")
}

// WithTools 实现 model.ToolCallingChatModel 接口。
// 提取流程不使用工具调用，绑定即拒绝，避免在运行期静默丢弃工具。
func (m *QwenChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	if len(tools) > 0 {
		return nil, fmt.Errorf("QwenChatModel 不支持工具调用")
	}
	return m, nil
}
