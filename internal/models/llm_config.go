// internal/models/llm_config.go
package models

import "time"

// 受支持的LLM提供商
const (
	ProviderDashScope = "dashscope"
	ProviderXInfer    = "xinference"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGoogle    = "google"
)

// LLM配置状态
const (
	LLMStatusConfigured = "configured"
	LLMStatusReady      = "ready"
	LLMStatusError      = "error"
)

// ProviderSettings 按提供商区分的连接参数
// 每个提供商只携带与自己相关的字段，避免一个松散结构塞满所有可选项
type ProviderSettings struct {
	Provider string `json:"provider"`
	// dashscope/openai/anthropic/google 需要
	APIKey string `json:"api_key,omitempty"`
	// openai兼容服务与xinference可覆盖
	BaseURL string `json:"base_url,omitempty"`
	// anthropic专用
	APIVersion string `json:"api_version,omitempty"`
	// dashscope专用
	Region string `json:"region,omitempty"`
}

// ConfigMap 转成提供商初始化所需的扁平配置
func (p *ProviderSettings) ConfigMap() map[string]string {
	m := map[string]string{}
	if p.APIKey != "" {
		m["api_key"] = p.APIKey
	}
	if p.BaseURL != "" {
		m["base_url"] = p.BaseURL
	}
	if p.APIVersion != "" {
		m["api_version"] = p.APIVersion
	}
	if p.Region != "" {
		m["region"] = p.Region
	}
	return m
}

// LLMConfig 语言模型配置
type LLMConfig struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Provider     string           `json:"provider"`
	ModelName    string           `json:"model_name"`
	Settings     ProviderSettings `json:"settings"`
	MaxTokens    int              `json:"max_tokens,omitempty"`
	Temperature  float32          `json:"temperature"`
	TopP         float32          `json:"top_p"`
	SystemPrompt string           `json:"system_prompt,omitempty"`
	IsDefault    bool             `json:"is_default"`
	Enabled      bool             `json:"enabled"`
	Status       string           `json:"status"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	LastUsed     *time.Time       `json:"last_used,omitempty"`
}

// LLMConfigCreate 创建/更新LLM配置的请求载荷
type LLMConfigCreate struct {
	Name         string           `json:"name"`
	Provider     string           `json:"provider"`
	ModelName    string           `json:"model_name"`
	Settings     ProviderSettings `json:"settings"`
	MaxTokens    int              `json:"max_tokens,omitempty"`
	Temperature  float32          `json:"temperature"`
	TopP         float32          `json:"top_p"`
	SystemPrompt string           `json:"system_prompt,omitempty"`
	IsDefault    bool             `json:"is_default"`
	Enabled      bool             `json:"enabled"`
}

// ValidProvider 检查提供商名称是否受支持
func ValidProvider(name string) bool {
	switch name {
	case ProviderDashScope, ProviderXInfer, ProviderOpenAI, ProviderAnthropic, ProviderGoogle:
		return true
	}
	return false
}
