// internal/services/llm_service.go
package services

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/sableworks/agentconsole/internal/errors"
	"github.com/sableworks/agentconsole/internal/llm"
	"github.com/sableworks/agentconsole/internal/models"
	"github.com/sableworks/agentconsole/internal/storage"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ProviderInfo 前端配置页面需要的提供商元信息
type ProviderInfo struct {
	Name            string   `json:"name"`
	RecommendedList []string `json:"recommended_models"`
}

// LLMService 语言模型配置服务
// 配置的CRUD走仓库；TestConfig 和聊天按配置实例化注册表里的提供商
type LLMService struct {
	repo *storage.LLMConfigRepo
}

// NewLLMService 创建LLM配置服务
func NewLLMService(repo *storage.LLMConfigRepo) *LLMService {
	return &LLMService{repo: repo}
}

// ListConfigs 返回全部配置，默认配置排在最前
func (s *LLMService) ListConfigs() []*models.LLMConfig {
	return s.repo.List()
}

// GetConfig 按ID读取配置
func (s *LLMService) GetConfig(id string) (*models.LLMConfig, error) {
	return s.repo.Get(id)
}

// CreateConfig 校验并保存新配置
// 至多一个默认配置的约束由仓库维护
func (s *LLMService) CreateConfig(payload models.LLMConfigCreate) (*models.LLMConfig, error) {
	if err := validateLLMPayload(&payload); err != nil {
		return nil, err
	}
	return s.repo.Create(payload)
}

// UpdateConfig 整体更新配置
func (s *LLMService) UpdateConfig(id string, payload models.LLMConfigCreate) (*models.LLMConfig, error) {
	if err := validateLLMPayload(&payload); err != nil {
		return nil, err
	}
	return s.repo.Update(id, payload)
}

// DeleteConfig 删除配置；删除默认配置后不自动指定新默认
func (s *LLMService) DeleteConfig(id string) error {
	return s.repo.Delete(id)
}

// ListProviders 返回所有已注册的提供商及推荐模型
func (s *LLMService) ListProviders() []ProviderInfo {
	names := llm.ListProviders()
	infos := make([]ProviderInfo, 0, len(names))
	for _, name := range names {
		infos = append(infos, ProviderInfo{
			Name:            name,
			RecommendedList: llm.GetSupportedModelsForProvider(name),
		})
	}
	return infos
}

// TestConfig 用一次最小补全验证配置可用性并记录结果
func (s *LLMService) TestConfig(ctx context.Context, id string) (*models.LLMConfig, error) {
	cfg, err := s.repo.Get(id)
	if err != nil {
		return nil, err
	}

	testCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, testErr := s.complete(testCtx, cfg, llm.CompletionRequest{
		Prompt:    "ping",
		MaxTokens: 1,
	})

	status := models.LLMStatusReady
	if testErr != nil {
		status = models.LLMStatusError
	}
	if err := s.repo.SetStatus(id, status); err != nil {
		return nil, err
	}

	updated, err := s.repo.Get(id)
	if err != nil {
		return nil, err
	}
	if testErr != nil {
		return updated, apperrors.NewProcessingError("模型连接测试失败", testErr)
	}
	return updated, nil
}

// ResolveConfig 为聊天请求选择配置：指定了模型名就按模型名找，否则用默认配置
func (s *LLMService) ResolveConfig(modelName string) (*models.LLMConfig, error) {
	if modelName != "" {
		return s.repo.FindByModelName(modelName)
	}
	return s.repo.GetDefault()
}

// Complete 按配置执行一次补全，成功后更新 last_used
func (s *LLMService) Complete(ctx context.Context, cfg *models.LLMConfig, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, err := s.complete(ctx, cfg, req)
	if err != nil {
		return nil, err
	}
	// last_used 是展示用途，失败不阻断响应
	_ = s.repo.TouchLastUsed(cfg.ID)
	return resp, nil
}

// Stream 按配置执行流式补全
func (s *LLMService) Stream(ctx context.Context, cfg *models.LLMConfig, req llm.CompletionRequest) (<-chan llm.StreamResponse, error) {
	provider, err := s.buildProvider(cfg)
	if err != nil {
		return nil, err
	}
	ch, err := provider.StreamCompletion(ctx, s.applyConfig(cfg, req))
	if err != nil {
		return nil, err
	}
	_ = s.repo.TouchLastUsed(cfg.ID)
	return ch, nil
}

func (s *LLMService) complete(ctx context.Context, cfg *models.LLMConfig, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	provider, err := s.buildProvider(cfg)
	if err != nil {
		return nil, err
	}
	return provider.CompleteText(ctx, s.applyConfig(cfg, req))
}

// buildProvider 按配置实例化提供商
func (s *LLMService) buildProvider(cfg *models.LLMConfig) (llm.Provider, error) {
	configMap := cfg.Settings.ConfigMap()
	configMap["default_model"] = cfg.ModelName

	provider, err := llm.GetProvider(cfg.Provider, configMap)
	if err != nil {
		return nil, apperrors.NewProcessingError("初始化提供商失败: "+cfg.Provider, err)
	}
	return provider, nil
}

// applyConfig 把配置里的默认参数合并进请求，请求里已有的值优先
func (s *LLMService) applyConfig(cfg *models.LLMConfig, req llm.CompletionRequest) llm.CompletionRequest {
	if req.Model == "" {
		req.Model = cfg.ModelName
	}
	if req.SystemPrompt == "" {
		req.SystemPrompt = cfg.SystemPrompt
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = cfg.MaxTokens
	}
	if req.Temperature == 0 {
		req.Temperature = cfg.Temperature
	}
	if req.TopP == 0 {
		req.TopP = cfg.TopP
	}
	return req
}

func validateLLMPayload(payload *models.LLMConfigCreate) error {
	if strings.TrimSpace(payload.Name) == "" {
		return apperrors.NewValidationError("配置名不能为空", nil)
	}
	if !models.ValidProvider(payload.Provider) {
		return apperrors.NewValidationError("不支持的提供商: "+payload.Provider, nil)
	}
	if strings.TrimSpace(payload.ModelName) == "" {
		return apperrors.NewValidationError("模型名不能为空", nil)
	}
	if payload.Temperature < 0 || payload.Temperature > 2 {
		return apperrors.NewValidationError("temperature 必须在 0 到 2 之间", nil)
	}
	if payload.TopP < 0 || payload.TopP > 1 {
		return apperrors.NewValidationError("top_p 必须在 0 到 1 之间", nil)
	}
	// 本地xinference可以没有密钥，云端提供商必须有
	if payload.Provider != models.ProviderXInfer && payload.Settings.APIKey == "" {
		return apperrors.NewValidationError("该提供商需要API密钥", nil)
	}
	return nil
}
