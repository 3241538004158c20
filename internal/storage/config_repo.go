// internal/storage/config_repo.go
package storage

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sableworks/agentconsole/internal/cache"
	"github.com/sableworks/agentconsole/internal/db"
	apperrors "github.com/sableworks/agentconsole/internal/errors"
	"github.com/sableworks/agentconsole/internal/models"
	"github.com/sableworks/agentconsole/internal/secrets"
)

// MCPConfigRepo MCP工具配置仓库
// 配置整体序列化为JSON存入payload列，结构变更无需迁移
type MCPConfigRepo struct {
	db      db.Db
	configs *cache.Cache[string, *models.MCPConfig]
}

// NewMCPConfigRepo 创建MCP配置仓库
func NewMCPConfigRepo(database db.Db) *MCPConfigRepo {
	return &MCPConfigRepo{
		db:      database,
		configs: cache.NewCache[string, *models.MCPConfig](),
	}
}

// Init 全量加载配置进缓存
func (r *MCPConfigRepo) Init() error {
	rows, err := r.db.Query(`SELECT id, payload FROM mcp_configs`)
	if err != nil {
		return fmt.Errorf("查询MCP配置失败: %w", err)
	}
	defer rows.Close()

	configs := make(map[string]*models.MCPConfig)
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return fmt.Errorf("读取MCP配置行失败: %w", err)
		}
		var cfg models.MCPConfig
		if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
			return fmt.Errorf("解析MCP配置失败: %w", err)
		}
		configs[id] = &cfg
	}
	r.configs.SetTo(configs)
	return rows.Err()
}

// List 返回全部配置，按创建时间排序
func (r *MCPConfigRepo) List() []*models.MCPConfig {
	configs := make([]*models.MCPConfig, 0, r.configs.Len())
	r.configs.Range(func(_ string, cfg *models.MCPConfig) bool {
		configs = append(configs, cfg)
		return true
	})
	sort.Slice(configs, func(i, j int) bool {
		return configs[i].CreatedAt.Before(configs[j].CreatedAt)
	})
	return configs
}

// Get 按ID读取配置
func (r *MCPConfigRepo) Get(id string) (*models.MCPConfig, error) {
	cfg, ok := r.configs.Get(id)
	if !ok {
		return nil, apperrors.NewNotFoundError("MCP配置不存在: "+id, nil)
	}
	return cfg, nil
}

// Create 新建MCP配置，初始状态为 configured
func (r *MCPConfigRepo) Create(payload models.MCPConfigCreate) (*models.MCPConfig, error) {
	now := time.Now().UTC()
	cfg := &models.MCPConfig{
		ID:               uuid.NewString(),
		Name:             payload.Name,
		Description:      payload.Description,
		Command:          payload.Command,
		Args:             payload.Args,
		Env:              payload.Env,
		Transport:        payload.Transport,
		Version:          payload.Version,
		AutoStart:        payload.AutoStart,
		RestartOnFailure: payload.RestartOnFailure,
		Timeout:          payload.Timeout,
		Status:           models.MCPStatusConfigured,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if cfg.Args == nil {
		cfg.Args = []string{}
	}
	if cfg.Env == nil {
		cfg.Env = map[string]string{}
	}

	if err := r.save(cfg, true); err != nil {
		return nil, err
	}
	r.configs.Set(cfg.ID, cfg)
	return cfg, nil
}

// Update 整体更新配置，状态回到 configured 等待重新测试
func (r *MCPConfigRepo) Update(id string, payload models.MCPConfigCreate) (*models.MCPConfig, error) {
	existing, err := r.Get(id)
	if err != nil {
		return nil, err
	}

	updated := *existing
	updated.Name = payload.Name
	updated.Description = payload.Description
	updated.Command = payload.Command
	updated.Args = payload.Args
	updated.Env = payload.Env
	updated.Transport = payload.Transport
	updated.Version = payload.Version
	updated.AutoStart = payload.AutoStart
	updated.RestartOnFailure = payload.RestartOnFailure
	updated.Timeout = payload.Timeout
	updated.Status = models.MCPStatusConfigured
	updated.LastError = ""
	updated.UpdatedAt = time.Now().UTC()

	if err := r.save(&updated, false); err != nil {
		return nil, err
	}
	r.configs.Set(id, &updated)
	return &updated, nil
}

// SetStatus 记录测试结果
func (r *MCPConfigRepo) SetStatus(id, status, lastError string) error {
	cfg, err := r.Get(id)
	if err != nil {
		return err
	}
	updated := *cfg
	updated.Status = status
	updated.LastError = lastError
	updated.UpdatedAt = time.Now().UTC()

	if err := r.save(&updated, false); err != nil {
		return err
	}
	r.configs.Set(id, &updated)
	return nil
}

// Delete 删除配置
func (r *MCPConfigRepo) Delete(id string) error {
	if _, err := r.Get(id); err != nil {
		return err
	}
	if _, err := r.db.Exec(`DELETE FROM mcp_configs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("删除MCP配置失败: %w", err)
	}
	r.configs.Delete(id)
	return nil
}

func (r *MCPConfigRepo) save(cfg *models.MCPConfig, isNew bool) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("序列化MCP配置失败: %w", err)
	}

	if isNew {
		_, err = r.db.Exec(`INSERT INTO mcp_configs (id, payload, created_at, updated_at) VALUES (?, ?, ?, ?)`,
			cfg.ID, string(payload), cfg.CreatedAt, cfg.UpdatedAt)
	} else {
		_, err = r.db.Exec(`UPDATE mcp_configs SET payload = ?, updated_at = ? WHERE id = ?`,
			string(payload), cfg.UpdatedAt, cfg.ID)
	}
	if err != nil {
		return fmt.Errorf("保存MCP配置失败: %w", err)
	}
	return nil
}

// ------------------------------------------------

// LLMConfigRepo 语言模型配置仓库
// 维持"至多一个默认配置"的不变式：设置新默认时清除旧默认
// API密钥落盘前用keeper加密，内存缓存里保持明文
type LLMConfigRepo struct {
	db      db.Db
	keeper  *secrets.Keeper
	configs *cache.Cache[string, *models.LLMConfig]
}

// NewLLMConfigRepo 创建LLM配置仓库；keeper为nil时密钥明文存储
func NewLLMConfigRepo(database db.Db, keeper *secrets.Keeper) *LLMConfigRepo {
	return &LLMConfigRepo{
		db:      database,
		keeper:  keeper,
		configs: cache.NewCache[string, *models.LLMConfig](),
	}
}

// Init 全量加载配置进缓存
func (r *LLMConfigRepo) Init() error {
	rows, err := r.db.Query(`SELECT id, payload FROM llm_configs`)
	if err != nil {
		return fmt.Errorf("查询LLM配置失败: %w", err)
	}
	defer rows.Close()

	configs := make(map[string]*models.LLMConfig)
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return fmt.Errorf("读取LLM配置行失败: %w", err)
		}
		var cfg models.LLMConfig
		if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
			return fmt.Errorf("解析LLM配置失败: %w", err)
		}
		if r.keeper != nil && cfg.Settings.APIKey != "" {
			plain, err := r.keeper.Decrypt(cfg.Settings.APIKey)
			if err != nil {
				return fmt.Errorf("解密API密钥失败 (%s): %w", id, err)
			}
			cfg.Settings.APIKey = plain
		}
		configs[id] = &cfg
	}
	r.configs.SetTo(configs)
	return rows.Err()
}

// List 返回全部配置，默认配置排在最前
func (r *LLMConfigRepo) List() []*models.LLMConfig {
	configs := make([]*models.LLMConfig, 0, r.configs.Len())
	r.configs.Range(func(_ string, cfg *models.LLMConfig) bool {
		configs = append(configs, cfg)
		return true
	})
	sort.Slice(configs, func(i, j int) bool {
		if configs[i].IsDefault != configs[j].IsDefault {
			return configs[i].IsDefault
		}
		return configs[i].CreatedAt.Before(configs[j].CreatedAt)
	})
	return configs
}

// Get 按ID读取配置
func (r *LLMConfigRepo) Get(id string) (*models.LLMConfig, error) {
	cfg, ok := r.configs.Get(id)
	if !ok {
		return nil, apperrors.NewNotFoundError("LLM配置不存在: "+id, nil)
	}
	return cfg, nil
}

// GetDefault 返回当前默认配置，没有时返回未找到错误
func (r *LLMConfigRepo) GetDefault() (*models.LLMConfig, error) {
	var found *models.LLMConfig
	r.configs.Range(func(_ string, cfg *models.LLMConfig) bool {
		if cfg.IsDefault {
			found = cfg
			return false
		}
		return true
	})
	if found == nil {
		return nil, apperrors.NewNotFoundError("未设置默认LLM配置", nil)
	}
	return found, nil
}

// FindByModelName 按模型名查找已启用的配置
func (r *LLMConfigRepo) FindByModelName(modelName string) (*models.LLMConfig, error) {
	var found *models.LLMConfig
	r.configs.Range(func(_ string, cfg *models.LLMConfig) bool {
		if cfg.Enabled && cfg.ModelName == modelName {
			found = cfg
			return false
		}
		return true
	})
	if found == nil {
		return nil, apperrors.NewNotFoundError("没有启用的配置使用模型: "+modelName, nil)
	}
	return found, nil
}

// Create 新建LLM配置；设为默认时清除旧默认
func (r *LLMConfigRepo) Create(payload models.LLMConfigCreate) (*models.LLMConfig, error) {
	now := time.Now().UTC()
	cfg := &models.LLMConfig{
		ID:           uuid.NewString(),
		Name:         payload.Name,
		Provider:     payload.Provider,
		ModelName:    payload.ModelName,
		Settings:     payload.Settings,
		MaxTokens:    payload.MaxTokens,
		Temperature:  payload.Temperature,
		TopP:         payload.TopP,
		SystemPrompt: payload.SystemPrompt,
		IsDefault:    payload.IsDefault,
		Enabled:      payload.Enabled,
		Status:       models.LLMStatusConfigured,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if cfg.IsDefault {
		if err := r.clearDefault(); err != nil {
			return nil, err
		}
	}

	if err := r.save(cfg, true); err != nil {
		return nil, err
	}
	r.configs.Set(cfg.ID, cfg)
	return cfg, nil
}

// Update 整体更新配置
func (r *LLMConfigRepo) Update(id string, payload models.LLMConfigCreate) (*models.LLMConfig, error) {
	existing, err := r.Get(id)
	if err != nil {
		return nil, err
	}

	updated := *existing
	updated.Name = payload.Name
	updated.Provider = payload.Provider
	updated.ModelName = payload.ModelName
	updated.Settings = payload.Settings
	updated.MaxTokens = payload.MaxTokens
	updated.Temperature = payload.Temperature
	updated.TopP = payload.TopP
	updated.SystemPrompt = payload.SystemPrompt
	updated.IsDefault = payload.IsDefault
	updated.Enabled = payload.Enabled
	updated.Status = models.LLMStatusConfigured
	updated.UpdatedAt = time.Now().UTC()

	if updated.IsDefault && !existing.IsDefault {
		if err := r.clearDefault(); err != nil {
			return nil, err
		}
	}

	if err := r.save(&updated, false); err != nil {
		return nil, err
	}
	r.configs.Set(id, &updated)
	return &updated, nil
}

// SetStatus 记录测试结果
func (r *LLMConfigRepo) SetStatus(id, status string) error {
	cfg, err := r.Get(id)
	if err != nil {
		return err
	}
	updated := *cfg
	updated.Status = status
	updated.UpdatedAt = time.Now().UTC()

	if err := r.save(&updated, false); err != nil {
		return err
	}
	r.configs.Set(id, &updated)
	return nil
}

// TouchLastUsed 聊天使用后更新 last_used
func (r *LLMConfigRepo) TouchLastUsed(id string) error {
	cfg, err := r.Get(id)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	updated := *cfg
	updated.LastUsed = &now

	if err := r.save(&updated, false); err != nil {
		return err
	}
	r.configs.Set(id, &updated)
	return nil
}

// Delete 删除配置；删除默认配置后不自动指定新默认
func (r *LLMConfigRepo) Delete(id string) error {
	if _, err := r.Get(id); err != nil {
		return err
	}
	if _, err := r.db.Exec(`DELETE FROM llm_configs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("删除LLM配置失败: %w", err)
	}
	r.configs.Delete(id)
	return nil
}

// clearDefault 清除现有默认标记
func (r *LLMConfigRepo) clearDefault() error {
	var clearErr error
	r.configs.Range(func(id string, cfg *models.LLMConfig) bool {
		if !cfg.IsDefault {
			return true
		}
		updated := *cfg
		updated.IsDefault = false
		updated.UpdatedAt = time.Now().UTC()
		if err := r.save(&updated, false); err != nil {
			clearErr = err
			return false
		}
		r.configs.Set(id, &updated)
		return true
	})
	return clearErr
}

func (r *LLMConfigRepo) save(cfg *models.LLMConfig, isNew bool) error {
	stored := *cfg
	if r.keeper != nil && stored.Settings.APIKey != "" {
		encrypted, err := r.keeper.Encrypt(stored.Settings.APIKey)
		if err != nil {
			return fmt.Errorf("加密API密钥失败: %w", err)
		}
		stored.Settings.APIKey = encrypted
	}

	payload, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("序列化LLM配置失败: %w", err)
	}

	isDefault := 0
	if cfg.IsDefault {
		isDefault = 1
	}

	if isNew {
		_, err = r.db.Exec(`INSERT INTO llm_configs (id, payload, is_default, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			cfg.ID, string(payload), isDefault, cfg.CreatedAt, cfg.UpdatedAt)
	} else {
		_, err = r.db.Exec(`UPDATE llm_configs SET payload = ?, is_default = ?, updated_at = ? WHERE id = ?`,
			string(payload), isDefault, cfg.UpdatedAt, cfg.ID)
	}
	if err != nil {
		return fmt.Errorf("保存LLM配置失败: %w", err)
	}
	return nil
}
